package system

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/validation"
)

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	report, err := ctx.Store.Check(ctx.Ctx)
	if err != nil {
		ctx.Printf("❌ Database reachable: FAIL\n")
		ctx.Printf("   Error: %v\n", err)
		return errors.New("diagnostics failed")
	}
	ctx.Printf("✓ Database reachable: OK\n")

	hasError := false

	if report.SchemaVersion == report.LatestVersion {
		ctx.Printf("✓ Schema version: OK (%d)\n", report.SchemaVersion)
	} else {
		ctx.Printf("❌ Schema version: FAIL (database %d, latest %d)\n", report.SchemaVersion, report.LatestVersion)
		hasError = true
	}

	if len(report.Integrity) == 1 && report.Integrity[0] == "ok" {
		ctx.Printf("✓ Database integrity: OK\n")
	} else {
		ctx.Printf("❌ Database integrity: FAIL\n")
		for _, line := range report.Integrity {
			ctx.Printf("   %s\n", line)
		}
		hasError = true
	}

	var blocking, kept []validation.Conflict
	for _, c := range report.Conflicts {
		if c.Blocking() {
			blocking = append(blocking, c)
		} else {
			kept = append(kept, c)
		}
	}
	if len(blocking) == 0 {
		ctx.Printf("✓ Data validation: OK\n")
	} else {
		ctx.Printf("❌ Data validation: FAIL (%d issue(s))\n", len(blocking))
		for _, c := range blocking {
			ctx.Printf("   %s\n", c.Description)
		}
		hasError = true
	}
	if len(kept) > 0 {
		ctx.Printf("⚠ Log entries of deleted habits: %d kept\n", len(kept))
	}

	backups, err := ctx.BackupManager().ListBackups()
	switch {
	case err != nil:
		ctx.Printf("⚠ Backups present: WARNING\n   %v\n", err)
	case len(backups) == 0:
		ctx.Printf("⚠ Backups present: WARNING\n   No backups found in %s\n", ctx.BackupManager().GetBackupDir())
	default:
		age := ctx.Now().Sub(backups[0].Timestamp)
		ctx.Printf("✓ Backups present: OK (%d, newest %s ago)\n", len(backups), age.Round(time.Minute))
	}

	if err := checkClock(ctx.Now()); err != nil {
		ctx.Printf("❌ Clock/timezone: FAIL\n   Error: %v\n", err)
		hasError = true
	} else {
		ctx.Printf("✓ Clock/timezone: OK (%s)\n", ctx.Now().Location())
	}

	ctx.Println()
	tables := make([]string, 0, len(report.Counts))
	for t := range report.Counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		ctx.Printf("  %-12s %d\n", t, report.Counts[t])
	}
	if ctx.Config != nil {
		ctx.Printf("\nLog file: %s\n", logger.Path(ctx.Config.Dir))
	}

	if hasError {
		return errors.New("diagnostics found problems")
	}
	ctx.Println("\nAll checks passed.")
	return nil
}

func checkClock(now time.Time) error {
	if now.Year() < 2020 {
		return fmt.Errorf("system clock reads %s, which is before any tally release", now.Format(time.RFC3339))
	}
	if now.Location() == nil {
		return errors.New("no local timezone configured")
	}
	return nil
}
