package tracking

import (
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

type RangeCmd struct {
	Start string `arg:"" help:"First day (inclusive)."`
	End   string `arg:"" optional:"" help:"Last day (inclusive); defaults to today." default:"today"`
	Habit string `help:"Only entries for this habit (id or name)."`
}

func (c *RangeCmd) Run(ctx *cli.Context) error {
	start, err := utils.ResolveDate(c.Start, ctx.Now())
	if err != nil {
		return err
	}
	end, err := utils.ResolveDate(c.End, ctx.Now())
	if err != nil {
		return err
	}

	entries, err := ctx.Store.GetLogEntriesInRange(ctx.Ctx, start, end)
	if err != nil {
		return err
	}

	habits, err := ctx.Store.GetHabits(ctx.Ctx, models.HabitFilter{})
	if err != nil {
		return err
	}
	byID := make(map[string]models.Habit, len(habits))
	for _, h := range habits {
		byID[h.ID] = h
	}

	only := ""
	if c.Habit != "" {
		h, err := ctx.FindHabit(c.Habit)
		if err != nil {
			return err
		}
		only = h.ID
	}

	shown, skipped := 0, 0
	for i := range entries {
		e := entries[i]
		if only != "" && e.HabitID != only {
			continue
		}
		h := byID[e.HabitID]
		name := h.Name
		if name == "" {
			name = e.HabitID
		}
		ctx.Printf("%s  %-24s %s\n", e.Date, name, cli.FormatValue(h, &e))
		shown++
		if e.Skipped() {
			skipped++
		}
	}

	if shown == 0 {
		ctx.Printf("No entries between %s and %s.\n", start, end)
		return nil
	}
	ctx.Printf("\n%d entries (%d skipped) between %s and %s\n", shown, skipped, start, end)
	return nil
}
