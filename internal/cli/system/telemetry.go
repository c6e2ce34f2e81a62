package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/telemetry"
)

type TelemetryCmd struct {
	Connect    TelemetryConnectCmd    `cmd:"" help:"Store the Postgres telemetry connection string in the OS keyring."`
	Status     TelemetryStatusCmd     `cmd:"" help:"Show the telemetry sink configuration."`
	Disconnect TelemetryDisconnectCmd `cmd:"" help:"Remove the stored connection string."`
}

type TelemetryConnectCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string."`
}

func (cmd *TelemetryConnectCmd) Run(ctx *cli.Context) error {
	if err := telemetry.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, telemetry.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		ctx.Println("⚠️  Warning: Connection string contains a password.")
		ctx.Println("   It will be stored as-is in the encrypted OS keyring.")
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return err
	}
	ctx.Println("✓ Connection string stored in OS keyring")
	ctx.Println("  Set telemetry.sink: postgres in config.yaml to start sending events")
	return nil
}

type TelemetryStatusCmd struct{}

func (cmd *TelemetryStatusCmd) Run(ctx *cli.Context) error {
	sink := "none"
	userID := ""
	if ctx.Config != nil {
		sink = ctx.Config.TelemetrySink
		userID = ctx.Config.TelemetryUserID
	}
	ctx.Printf("Sink:    %s\n", sink)
	if userID == "" {
		userID = "(anonymous)"
	}
	ctx.Printf("User id: %s\n", userID)

	connStr, err := keyring.GetConnectionString()
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		ctx.Println("Keyring: no connection string stored")
	case err != nil:
		ctx.Printf("Keyring: %v\n", err)
	default:
		ctx.Printf("Keyring: %s\n", MaskPassword(connStr))
	}
	return nil
}

type TelemetryDisconnectCmd struct{}

func (cmd *TelemetryDisconnectCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteConnectionString(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			ctx.Println("No connection string stored.")
			return nil
		}
		return err
	}
	ctx.Println("✓ Connection string removed from OS keyring")
	return nil
}

// MaskPassword hides the password of a URI or key=value connection string
func MaskPassword(connStr string) string {
	if idx := strings.Index(connStr, "://"); idx != -1 {
		rest := connStr[idx+3:]
		if at := strings.LastIndex(rest, "@"); at != -1 {
			userInfo := rest[:at]
			if colon := strings.Index(userInfo, ":"); colon != -1 {
				return connStr[:idx+3] + userInfo[:colon] + ":****" + rest[at:]
			}
		}
		return connStr
	}

	fields := strings.Fields(connStr)
	for i, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], "password") {
			fields[i] = kv[0] + "=****"
		}
	}
	return strings.Join(fields, " ")
}
