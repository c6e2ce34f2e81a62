package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/cli/backups"
	"github.com/julianstephens/tally/internal/cli/categories"
	"github.com/julianstephens/tally/internal/cli/habits"
	"github.com/julianstephens/tally/internal/cli/settings"
	"github.com/julianstephens/tally/internal/cli/system"
	"github.com/julianstephens/tally/internal/cli/tracking"
	"github.com/julianstephens/tally/internal/cli/transfer"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/lock"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/telemetry"
)

type cliArgs struct {
	Version   kong.VersionFlag
	ConfigDir string `help:"Directory holding config.yaml, logs and (by default) the database." type:"string" default:"${config_dir}"`
	DB        string `help:"Database file path. Overrides db_path from config.yaml." type:"string"`
	Debug     bool   `help:"Log debug output to stderr."`

	Init      system.InitCmd         `cmd:"" help:"Initialize tally storage."`
	Migrate   system.MigrateCmd      `cmd:"" help:"Run database migrations."`
	Doctor    system.DoctorCmd       `cmd:"" help:"Run health checks and diagnostics."`
	Tui       system.TuiCmd          `cmd:"" help:"Launch the interactive daily view." default:"1"`
	Category  categories.CategoryCmd `cmd:"" help:"Manage categories."`
	Habit     habits.HabitCmd        `cmd:"" help:"Manage habits."`
	Log       tracking.LogCmd        `cmd:"" help:"Log a habit for a day."`
	Skip      tracking.SkipCmd       `cmd:"" help:"Mark a day as skipped."`
	Clear     tracking.ClearCmd      `cmd:"" help:"Clear the log entry for a day."`
	Day       tracking.DayCmd        `cmd:"" help:"Show habits and logs for a day."`
	Range     tracking.RangeCmd      `cmd:"" help:"Show log entries between two days."`
	Export    transfer.ExportCmd     `cmd:"" help:"Export all data as a snapshot file."`
	Import    transfer.ImportCmd     `cmd:"" help:"Replace all data with a snapshot file."`
	Sheets    transfer.SheetsCmd     `cmd:"" help:"Export or import spreadsheet (CSV) backups."`
	Backup    backups.BackupCmd      `cmd:"" help:"Manage local backups."`
	Settings  settings.SettingsCmd   `cmd:"" help:"Manage application settings."`
	Telemetry system.TelemetryCmd    `cmd:"" help:"Manage the telemetry sink."`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var flags cliArgs
	parser, err := kong.New(&flags,
		kong.Name(constants.AppName),
		kong.Description("Local-first habit tracker"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":    constants.Version,
			"config_dir": constants.DefaultConfigDir,
		},
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintln(stderr, apperrors.Format(err))
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 1
	}

	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		fmt.Fprintln(stderr, apperrors.Format(err))
		return 1
	}
	if flags.DB != "" {
		dbPath, err := config.ExpandPath(flags.DB)
		if err != nil {
			fmt.Fprintln(stderr, apperrors.Format(err))
			return 1
		}
		cfg.DBPath = dbPath
	}
	if flags.Debug {
		cfg.Debug = true
	}

	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: cfg.Dir}); err != nil {
		fmt.Fprintf(stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		fmt.Fprintln(stderr, apperrors.Format(fmt.Errorf("failed to create data directory: %w", err)))
		return 1
	}

	lk, err := lock.Acquire(filepath.Dir(cfg.DBPath))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			fmt.Fprintln(stderr, apperrors.Formatf("another tally process is using %s", cfg.DBPath))
			return 1
		}
		fmt.Fprintln(stderr, apperrors.Format(err))
		return 1
	}
	defer func() {
		if err := lk.Release(); err != nil {
			logger.Warn("Failed to release lock", "error", err)
		}
	}()

	store := storage.NewSQLiteStore(cfg.DBPath, storage.WithMigrationLog(func(msg string) {
		logger.Info(msg)
	}))
	defer store.Close()

	// init opens the store itself, after an optional wipe
	if kctx.Command() != "init" {
		if err := store.Load(appCtx); err != nil {
			logger.Error("Failed to open store", "path", cfg.DBPath, "error", err)
			fmt.Fprintln(stderr, apperrors.Format(err))
			return 1
		}
	}

	reporter := newReporter(appCtx, cfg, store, kctx.Command() != "init")
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Warn("Failed to close telemetry sink", "error", err)
		}
	}()

	cmdCtx := cli.NewContext(appCtx, store, cfg, reporter)
	cmdCtx.Out = stdout
	if err := kctx.Run(cmdCtx); err != nil {
		logger.Error("Command execution failed", "command", kctx.Command(), "error", err)
		fmt.Fprintln(stderr, apperrors.Format(err))
		return 1
	}
	return 0
}

// newReporter returns a reporter on the configured sink when the user has
// opted in, and a no-op reporter otherwise. Sink failures never stop the CLI.
func newReporter(ctx context.Context, cfg *config.Config, store storage.Provider, loaded bool) *telemetry.Reporter {
	userID := cfg.TelemetryUserID
	if userID == "" {
		userID = "anonymous"
	}
	nop := telemetry.NewReporter(telemetry.NopSink{}, userID, cfg.AppVersion)

	if !loaded || cfg.TelemetrySink == constants.TelemetrySinkNone {
		return nop
	}
	optIn, err := store.GetBool(ctx, constants.SettingTelemetryOptIn, constants.DefaultTelemetryOptIn)
	if err != nil || !optIn {
		return nop
	}

	sink, err := telemetry.OpenSink(cfg.TelemetrySink, keyring.GetConnectionString)
	if err != nil {
		logger.Warn("Telemetry disabled", "sink", cfg.TelemetrySink, "error", fmt.Errorf("%w: %v", apperrors.ErrSinkUnavailable, err))
		return nop
	}
	return telemetry.NewReporter(sink, userID, cfg.AppVersion)
}
