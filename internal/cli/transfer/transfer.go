package transfer

import (
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/sheets"
	"github.com/julianstephens/tally/internal/snapshot"
)

type ExportCmd struct {
	Output string `arg:"" optional:"" help:"File to write; prints to stdout when omitted."`
}

func (c *ExportCmd) Run(ctx *cli.Context) error {
	snap, err := ctx.Store.ExportSnapshot(ctx.Ctx)
	if err != nil {
		return err
	}

	if c.Output == "" {
		data, err := snap.Encode()
		if err != nil {
			return err
		}
		ctx.Printf("%s\n", data)
	} else {
		if err := snapshot.Write(c.Output, snap); err != nil {
			return err
		}
		ctx.Printf("Exported %s to %s\n", describeCounts(snap.Counts()), c.Output)
	}

	markTransfer(ctx, constants.SettingLastExportAt)
	ctx.Telemetry.SnapshotExported(ctx.Ctx, "file", snap.Counts())
	return nil
}

type ImportCmd struct {
	Input string `arg:"" help:"Snapshot file to import." type:"existingfile"`
	Yes   bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *ImportCmd) Run(ctx *cli.Context) error {
	doc, err := snapshot.Read(c.Input)
	if err != nil {
		return err
	}
	return replaceAll(ctx, doc, "file", c.Yes)
}

type SheetsCmd struct {
	Export SheetsExportCmd `cmd:"" help:"Write one CSV sheet per table plus a manifest."`
	Import SheetsImportCmd `cmd:"" help:"Replace all data with a sheet export."`
}

type SheetsExportCmd struct {
	Dir string `arg:"" help:"Directory to write the sheets into."`
}

func (c *SheetsExportCmd) Run(ctx *cli.Context) error {
	snap, err := ctx.Store.ExportSnapshot(ctx.Ctx)
	if err != nil {
		return err
	}
	manifest, err := sheets.Export(c.Dir, snap)
	if err != nil {
		return err
	}

	for _, s := range manifest.Sheets {
		ctx.Printf("  %-16s %d rows\n", s.File, s.Rows)
	}
	ctx.Printf("Exported sheets to %s\n", c.Dir)

	markTransfer(ctx, constants.SettingLastSheetSync)
	ctx.Telemetry.SnapshotExported(ctx.Ctx, "sheets", snap.Counts())
	return nil
}

type SheetsImportCmd struct {
	Dir string `arg:"" help:"Directory containing manifest.yaml." type:"existingdir"`
	Yes bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *SheetsImportCmd) Run(ctx *cli.Context) error {
	doc, err := sheets.Import(c.Dir)
	if err != nil {
		return err
	}
	if err := replaceAll(ctx, doc, "sheets", c.Yes); err != nil {
		return err
	}
	markTransfer(ctx, constants.SettingLastSheetSync)
	return nil
}

// replaceAll confirms, takes a safety backup and imports doc in place of all data
func replaceAll(ctx *cli.Context, doc *snapshot.Document, channel string, yes bool) error {
	counts := make(map[string]int, len(doc.Tables))
	for table, records := range doc.Tables {
		counts[table] = len(records)
	}

	ok, err := ctx.ConfirmOrSkip(yes, "Replace all data?",
		fmt.Sprintf("Current data is replaced by %s exported %s. A backup is taken first.",
			describeCounts(counts), doc.ExportedAt.Local().Format("2006-01-02 15:04")))
	if err != nil {
		return err
	}
	if !ok {
		ctx.Println("Import cancelled.")
		return nil
	}

	backupPath, err := ctx.BackupManager().CreateBackup(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to back up current data before import: %w", err)
	}
	ctx.Printf("Backed up current data to %s\n", backupPath)

	if err := ctx.Store.ImportSnapshot(ctx.Ctx, doc); err != nil {
		return err
	}

	markTransfer(ctx, constants.SettingLastImportAt)
	ctx.Telemetry.SnapshotImported(ctx.Ctx, channel, counts)
	ctx.Printf("Imported %s\n", describeCounts(counts))
	return nil
}

func markTransfer(ctx *cli.Context, key string) {
	if err := ctx.Store.SetSetting(ctx.Ctx, key, ctx.Now().UTC().Format(time.RFC3339)); err != nil {
		logger.Warn("Failed to record transfer time", "key", key, "error", err)
	}
}

func describeCounts(counts map[string]int) string {
	return fmt.Sprintf("%d categories, %d habits, %d log entries",
		counts[migration.TableCategories], counts[migration.TableHabits], counts[migration.TableLogEntries])
}
