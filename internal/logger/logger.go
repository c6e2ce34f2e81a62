// Package logger writes tally's diagnostic log. Records go to a rotating file
// under the config directory; debug mode mirrors them to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/tally/internal/constants"
)

// Logger is nil until Init succeeds; the package functions are no-ops before that
var Logger *log.Logger

type Config struct {
	Debug     bool
	ConfigDir string
	// Stderr receives the debug mirror. Defaults to os.Stderr.
	Stderr io.Writer
}

// Path returns where the log file for configDir lives
func Path(configDir string) string {
	return filepath.Join(configDir, "logs", constants.AppName+".log")
}

func Init(cfg Config) error {
	path := Path(cfg.ConfigDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	var out io.Writer = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // MB
		MaxBackups: 2,
		MaxAge:     90, // days
		Compress:   true,
	}
	if cfg.Debug {
		stderr := cfg.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		out = io.MultiWriter(stderr, out)
	}

	Logger = log.NewWithOptions(out, log.Options{
		Level:           levelFor(cfg),
		Prefix:          constants.AppName,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		ReportCaller:    cfg.Debug,
	})
	return nil
}

// Normal runs only keep warnings and errors; habit data never reaches the log
// at those levels.
func levelFor(cfg Config) log.Level {
	if cfg.Debug {
		return log.DebugLevel
	}
	return log.WarnLevel
}

func write(level log.Level, msg string, keyvals []any) {
	if Logger == nil {
		return
	}
	Logger.Helper()
	Logger.Log(level, msg, keyvals...)
}

func Debug(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
	}
	write(log.DebugLevel, msg, keyvals)
}

func Info(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
	}
	write(log.InfoLevel, msg, keyvals)
}

func Warn(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
	}
	write(log.WarnLevel, msg, keyvals)
}

func Error(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
	}
	write(log.ErrorLevel, msg, keyvals)
}

// Component tags every record with the subsystem that wrote it, so
// `grep component=backup` isolates one area of the log.
type Component string

func (c Component) keyvals(keyvals []any) []any {
	return append([]any{"component", string(c)}, keyvals...)
}

func (c Component) Debug(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
	}
	write(log.DebugLevel, msg, c.keyvals(keyvals))
}

func (c Component) Info(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
	}
	write(log.InfoLevel, msg, c.keyvals(keyvals))
}

func (c Component) Warn(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
	}
	write(log.WarnLevel, msg, c.keyvals(keyvals))
}
