package tracking

import (
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

type DayCmd struct {
	Date  string `arg:"" optional:"" help:"Day to show: YYYY-MM-DD, today, yesterday or -N." default:"today"`
	Group string `help:"Only habits to build (positive) or avoid (negative)." enum:"all,positive,negative" default:"all"`
}

func (c *DayCmd) Run(ctx *cli.Context) error {
	date, err := utils.ResolveDate(c.Date, ctx.Now())
	if err != nil {
		return err
	}

	var group *models.GroupTag
	if c.Group != "all" {
		g := models.GroupTag(c.Group)
		group = &g
	}

	rows, err := ctx.Store.GetHabitsWithLogs(ctx.Ctx, date, group)
	if err != nil {
		return err
	}
	categories, err := ctx.Store.GetCategoriesOrdered(ctx.Ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	ctx.Printf("Habits for %s:\n", date)
	if len(rows) == 0 {
		ctx.Println("\nNo active habits.")
		return nil
	}

	lastCategory := ""
	recorded, due := 0, 0
	for i, row := range rows {
		if i == 0 || row.Habit.CategoryID != lastCategory {
			lastCategory = row.Habit.CategoryID
			ctx.Printf("\n%s\n", names[lastCategory])
		}

		status := "[ ]"
		if row.Log != nil {
			status = "[x]"
			if row.Log.Skipped() {
				status = "[~]"
			}
			recorded++
		}
		note := ""
		if !utils.IsDue(row.Habit, date) {
			note = "  (not due)"
		} else {
			due++
		}
		if row.Log != nil && row.Log.Note != "" {
			note += "  # " + row.Log.Note
		}
		ctx.Printf("  %s %-24s %s%s\n", status, row.Habit.Name, cli.FormatValue(row.Habit, row.Log), note)
	}

	ctx.Printf("\nRecorded: %d/%d (%d due)\n", recorded, len(rows), due)
	return nil
}
