// Package config loads config.yaml from the tally config directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/julianstephens/tally/internal/constants"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
)

// defaultConfigYAML is written on first run
const defaultConfigYAML = `# tally configuration

# Database file (defaults to tally.db in this directory)
# db_path:

debug: false

backup:
  max: 14

# Telemetry sink: none, log or postgres.
# The postgres connection string is kept in the OS keyring (tally telemetry connect).
telemetry:
  sink: none
  # user_id:
`

// Config is the resolved application configuration
type Config struct {
	Dir             string
	DBPath          string
	Debug           bool
	BackupMax       int
	TelemetrySink   string
	TelemetryUserID string
	AppVersion      string
}

// Load reads config.yaml from dir, creating the directory and a default file
// on first run. A missing file is not an error.
func Load(dir string) (*Config, error) {
	dir, err := ExpandPath(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(dir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(constants.ConfigKeyDBPath, filepath.Join(dir, constants.DefaultDBFileName))
	v.SetDefault(constants.ConfigKeyDebug, false)
	v.SetDefault(constants.ConfigKeyBackupMax, constants.MaxBackups)
	v.SetDefault(constants.ConfigKeyTelemetrySink, constants.TelemetrySinkNone)
	v.SetDefault(constants.ConfigKeyAppVersion, constants.Version)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(strings.ToUpper(constants.AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v, dir)
}

func fromViper(v *viper.Viper, dir string) (*Config, error) {
	dbPath, err := ExpandPath(v.GetString(constants.ConfigKeyDBPath))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Dir:             dir,
		DBPath:          dbPath,
		Debug:           v.GetBool(constants.ConfigKeyDebug),
		BackupMax:       v.GetInt(constants.ConfigKeyBackupMax),
		TelemetrySink:   strings.ToLower(v.GetString(constants.ConfigKeyTelemetrySink)),
		TelemetryUserID: v.GetString(constants.ConfigKeyTelemetryUserID),
		AppVersion:      v.GetString(constants.ConfigKeyAppVersion),
	}

	if cfg.BackupMax < 1 {
		return nil, fmt.Errorf("%s must be at least 1, got %d", constants.ConfigKeyBackupMax, cfg.BackupMax)
	}
	switch cfg.TelemetrySink {
	case constants.TelemetrySinkNone, constants.TelemetrySinkLog, constants.TelemetrySinkPostgres:
	default:
		return nil, fmt.Errorf("unknown %s %q (expected none, log or postgres)", constants.ConfigKeyTelemetrySink, cfg.TelemetrySink)
	}
	return cfg, nil
}

func ensureDefaultConfigFile(dir string) error {
	path := filepath.Join(dir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o600)
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
