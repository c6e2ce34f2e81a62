package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/tally/internal/cli"
)

type InitCmd struct {
	Force bool `help:"Delete the existing database before initializing."`
	Yes   bool `short:"y" help:"Skip the confirmation prompt."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	dbPath := ctx.Store.GetPath()

	if c.Force {
		if _, err := os.Stat(dbPath); err == nil {
			ok, err := ctx.ConfirmOrSkip(c.Yes, "Delete the existing database?",
				"Every category, habit and log entry in "+dbPath+" will be removed.")
			if err != nil {
				return err
			}
			if !ok {
				ctx.Println("Init cancelled.")
				return nil
			}

			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			for _, suffix := range []string{"", "-wal", "-shm"} {
				if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to delete existing database: %w", err)
				}
			}
			ctx.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(ctx.Ctx); err != nil {
		return err
	}

	version, err := ctx.Store.SchemaVersion(ctx.Ctx)
	if err != nil {
		return err
	}
	ctx.Printf("Initialized tally storage at: %s (schema version %d)\n", dbPath, version)
	return nil
}
