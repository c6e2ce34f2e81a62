package tracking

import (
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

type LogCmd struct {
	Habit string  `arg:"" help:"Habit id or name."`
	Value string  `arg:"" optional:"" help:"Value to record (yes/no, a rating option, or a number). Yes/no habits default to yes."`
	Date  string  `short:"d" help:"Day to log: YYYY-MM-DD, today, yesterday or -N." default:"today"`
	Note  *string `help:"Note for the day; omit to keep the existing note."`
}

func (c *LogCmd) Run(ctx *cli.Context) error {
	h, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}
	date, err := utils.ResolveDate(c.Date, ctx.Now())
	if err != nil {
		return err
	}

	input := c.Value
	if input == "" && h.Kind == models.KindYesNo {
		input = "yes"
	}
	value, err := models.ParseValue(h.Kind, input)
	if err != nil {
		return err
	}

	if _, err := ctx.Store.LogHabit(ctx.Ctx, h.ID, date, value, c.Note); err != nil {
		return err
	}
	ctx.Telemetry.HabitLogged(ctx.Ctx, h)

	entry, err := ctx.Store.GetLogEntry(ctx.Ctx, h.ID, date)
	if err != nil {
		return err
	}
	ctx.Printf("Logged %q for %s: %s\n", h.Name, date, cli.FormatValue(h, entry))
	return nil
}

type SkipCmd struct {
	Habit  string `arg:"" help:"Habit id or name."`
	Reason string `arg:"" help:"Why the day is skipped."`
	Date   string `short:"d" help:"Day to skip: YYYY-MM-DD, today, yesterday or -N." default:"today"`
}

func (c *SkipCmd) Run(ctx *cli.Context) error {
	h, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}
	date, err := utils.ResolveDate(c.Date, ctx.Now())
	if err != nil {
		return err
	}

	if _, err := ctx.Store.SkipHabit(ctx.Ctx, h.ID, date, c.Reason); err != nil {
		return err
	}
	ctx.Telemetry.HabitSkipped(ctx.Ctx, h)
	ctx.Printf("Skipped %q for %s\n", h.Name, date)
	return nil
}

type ClearCmd struct {
	Habit string `arg:"" help:"Habit id or name."`
	Date  string `short:"d" help:"Day to clear: YYYY-MM-DD, today, yesterday or -N." default:"today"`
}

func (c *ClearCmd) Run(ctx *cli.Context) error {
	h, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}
	date, err := utils.ResolveDate(c.Date, ctx.Now())
	if err != nil {
		return err
	}

	if err := ctx.Store.DeleteLogEntry(ctx.Ctx, h.ID, date); err != nil {
		return err
	}
	ctx.Printf("Cleared %q for %s\n", h.Name, date)
	return nil
}
