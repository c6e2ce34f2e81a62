package habits

import (
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
)

type HabitCmd struct {
	Add     HabitAddCmd     `cmd:"" help:"Add a new habit."`
	List    HabitListCmd    `cmd:"" help:"List habits."`
	Show    HabitShowCmd    `cmd:"" help:"Show one habit."`
	Edit    HabitEditCmd    `cmd:"" help:"Edit a habit."`
	Archive HabitArchiveCmd `cmd:"" help:"Archive a habit (hidden from the daily view, logs kept)."`
	Enable  HabitEnableCmd  `cmd:"" help:"Re-enable an archived habit."`
	Delete  HabitDeleteCmd  `cmd:"" help:"Delete a habit."`
	Reorder HabitReorderCmd `cmd:"" help:"Set the display order of habits."`
}

type HabitAddCmd struct {
	Name        string   `arg:"" help:"Habit name."`
	Category    string   `help:"Category id or name." default:"positive"`
	Kind        string   `help:"How the habit is tracked." enum:"yes_no,rating,duration,count" default:"yes_no"`
	Options     []string `help:"Rating options, lowest first." sep:","`
	Unit        string   `help:"Unit for duration and count habits."`
	Target      *float64 `help:"Daily target for duration and count habits."`
	Interval    string   `help:"Tracking cadence." enum:"daily,weekly,monthly" default:"daily"`
	Day         *int     `help:"Weekday for weekly habits (0=Sunday)."`
	Date        *int     `help:"Day of month for monthly habits (1-31)."`
	Reminder    string   `help:"Reminder time (HH:MM)."`
	Description string   `help:"Optional description."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	cat, err := ctx.FindCategory(c.Category)
	if err != nil {
		return err
	}

	habit := models.Habit{
		Name:         c.Name,
		Description:  c.Description,
		CategoryID:   cat.ID,
		Kind:         models.HabitKind(c.Kind),
		Options:      c.Options,
		Unit:         c.Unit,
		Target:       c.Target,
		Interval:     models.Interval(c.Interval),
		TrackingDay:  c.Day,
		TrackingDate: c.Date,
	}
	if c.Reminder != "" {
		habit.Reminder = &models.Reminder{Enabled: true, Time: c.Reminder}
	}

	created, err := ctx.Store.CreateHabit(ctx.Ctx, habit)
	if err != nil {
		return err
	}
	ctx.Telemetry.HabitCreated(ctx.Ctx, created)
	ctx.Printf("Added habit %q to %s (%s)\n", created.Name, cat.Name, created.ID)
	return nil
}

type HabitListCmd struct {
	Category string `help:"Only habits in this category (id or name)."`
	Archived bool   `help:"Include archived habits."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	filter := models.HabitFilter{ActiveOnly: !c.Archived}
	if c.Category != "" {
		cat, err := ctx.FindCategory(c.Category)
		if err != nil {
			return err
		}
		filter.CategoryID = cat.ID
	}

	habits, err := ctx.Store.GetHabits(ctx.Ctx, filter)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	for _, h := range habits {
		status := ""
		if !h.IsActive {
			status = " [ARCHIVED]"
		}
		ctx.Printf("%-24s %-9s %-8s %s%s\n", h.Name, h.Kind, FormatInterval(h), h.ID, status)
	}
	return nil
}

type HabitShowCmd struct {
	Habit string `arg:"" help:"Habit id or name."`
}

func (c *HabitShowCmd) Run(ctx *cli.Context) error {
	h, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}
	cat, err := ctx.Store.GetCategory(ctx.Ctx, h.CategoryID)
	if err != nil {
		return err
	}

	ctx.Printf("Name:      %s\n", h.Name)
	ctx.Printf("ID:        %s\n", h.ID)
	if h.Description != "" {
		ctx.Printf("About:     %s\n", h.Description)
	}
	ctx.Printf("Category:  %s (%s)\n", cat.Name, cat.Group)
	ctx.Printf("Kind:      %s\n", h.Kind)
	if len(h.Options) > 0 {
		ctx.Printf("Options:   %s\n", strings.Join(h.Options, ", "))
	}
	if h.Unit != "" {
		ctx.Printf("Unit:      %s\n", h.Unit)
	}
	if h.Target != nil {
		ctx.Printf("Target:    %g\n", *h.Target)
	}
	ctx.Printf("Interval:  %s\n", FormatInterval(h))
	if h.Reminder != nil && h.Reminder.Enabled {
		ctx.Printf("Reminder:  %s\n", h.Reminder.Time)
	}
	ctx.Printf("Active:    %v\n", h.IsActive)
	ctx.Printf("Created:   %s\n", h.CreatedAt.Local().Format("2006-01-02 15:04"))
	return nil
}

type HabitEditCmd struct {
	Habit       string   `arg:"" help:"Habit id or name."`
	Name        *string  `help:"New name."`
	Description *string  `help:"New description."`
	Category    *string  `help:"Move to another category (id or name)."`
	Kind        *string  `help:"New kind (yes_no, rating, duration, count)."`
	Options     []string `help:"New rating options." sep:","`
	Unit        *string  `help:"New unit."`
	Target      *float64 `help:"New target."`
	Interval    *string  `help:"New cadence (daily, weekly, monthly); pass --day or --date with it."`
	Day         *int     `help:"Weekday for weekly habits (0=Sunday)."`
	Date        *int     `help:"Day of month for monthly habits."`
	Reminder    *string  `help:"Reminder time (HH:MM), or 'off'."`
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	h, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}

	patch := models.HabitPatch{
		Name:         c.Name,
		Description:  c.Description,
		Options:      c.Options,
		Unit:         c.Unit,
		Target:       c.Target,
		TrackingDay:  c.Day,
		TrackingDate: c.Date,
	}
	if c.Category != nil {
		cat, err := ctx.FindCategory(*c.Category)
		if err != nil {
			return err
		}
		patch.CategoryID = &cat.ID
	}
	if c.Kind != nil {
		k := models.HabitKind(*c.Kind)
		patch.Kind = &k
	}
	if c.Interval != nil {
		i := models.Interval(*c.Interval)
		patch.Interval = &i
	}
	if c.Reminder != nil {
		if *c.Reminder == "off" {
			patch.Reminder = &models.Reminder{Enabled: false}
		} else {
			patch.Reminder = &models.Reminder{Enabled: true, Time: *c.Reminder}
		}
	}

	updated, err := ctx.Store.UpdateHabit(ctx.Ctx, h.ID, patch)
	if err != nil {
		return err
	}
	ctx.Printf("Updated habit %q\n", updated.Name)
	return nil
}

type HabitArchiveCmd struct {
	Habit string `arg:"" help:"Habit id or name."`
}

func (c *HabitArchiveCmd) Run(ctx *cli.Context) error {
	h, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}
	if err := ctx.Store.ArchiveHabit(ctx.Ctx, h.ID); err != nil {
		return err
	}
	ctx.Printf("Archived habit %q\n", h.Name)
	return nil
}

type HabitEnableCmd struct {
	Habit string `arg:"" help:"Habit id or name."`
}

func (c *HabitEnableCmd) Run(ctx *cli.Context) error {
	h, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}
	if err := ctx.Store.EnableHabit(ctx.Ctx, h.ID); err != nil {
		return err
	}
	ctx.Printf("Enabled habit %q\n", h.Name)
	return nil
}

type HabitDeleteCmd struct {
	Habit    string `arg:"" help:"Habit id or name."`
	KeepLogs bool   `help:"Keep the habit's log entries."`
	Yes      bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	h, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}

	description := "Its log entries are deleted too."
	if c.KeepLogs {
		description = "Its log entries are kept."
	}
	ok, err := ctx.ConfirmOrSkip(c.Yes, fmt.Sprintf("Delete habit %q?", h.Name), description)
	if err != nil {
		return err
	}
	if !ok {
		ctx.Println("Delete cancelled.")
		return nil
	}

	if err := ctx.Store.DeleteHabit(ctx.Ctx, h.ID, !c.KeepLogs); err != nil {
		return err
	}
	ctx.Printf("Deleted habit %q\n", h.Name)
	return nil
}

type HabitReorderCmd struct {
	Habits []string `arg:"" help:"Habit ids or names in the new order."`
}

func (c *HabitReorderCmd) Run(ctx *cli.Context) error {
	ids := make([]string, 0, len(c.Habits))
	for _, ref := range c.Habits {
		h, err := ctx.FindHabit(ref)
		if err != nil {
			return err
		}
		ids = append(ids, h.ID)
	}
	if err := ctx.Store.ReorderHabits(ctx.Ctx, ids); err != nil {
		return err
	}
	ctx.Printf("Reordered %d habits\n", len(ids))
	return nil
}

// FormatInterval renders a habit's cadence
func FormatInterval(h models.Habit) string {
	switch h.Interval {
	case models.IntervalWeekly:
		if h.TrackingDay != nil && *h.TrackingDay >= 0 && *h.TrackingDay <= 6 {
			return "weekly on " + weekdays[*h.TrackingDay]
		}
		return "weekly"
	case models.IntervalMonthly:
		if h.TrackingDate != nil {
			return fmt.Sprintf("monthly on day %d", *h.TrackingDate)
		}
		return "monthly"
	default:
		return "daily"
	}
}

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
