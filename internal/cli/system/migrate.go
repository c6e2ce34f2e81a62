package system

import (
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/storage"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	// Opening the store applies pending migrations
	if err := ctx.Store.Load(ctx.Ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	sqliteStore, ok := ctx.Store.(*storage.SQLiteStore)
	if !ok {
		return fmt.Errorf("migrate command only supports SQLite storage")
	}

	result := sqliteStore.LastMigration()
	if result == nil || result.Applied == 0 {
		version, err := ctx.Store.SchemaVersion(ctx.Ctx)
		if err != nil {
			return err
		}
		ctx.Printf("No migrations to apply. Database is up to date (schema version %d).\n", version)
		return nil
	}

	if result.Fresh {
		ctx.Printf("Created a new database at schema version %d.\n", result.To)
		return nil
	}
	ctx.Printf("Successfully applied %d migration(s): version %d -> %d.\n", result.Applied, result.From, result.To)
	return nil
}
