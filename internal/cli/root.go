package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/config"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/telemetry"
	"github.com/julianstephens/tally/internal/utils"
)

// Context is bound to every command's Run method
type Context struct {
	Ctx       context.Context
	Store     storage.Provider
	Config    *config.Config
	Telemetry *telemetry.Reporter
	Out       io.Writer
	Now       func() time.Time

	// Confirm asks a yes/no question; replaced in tests
	Confirm func(title, description string) (bool, error)
}

// NewContext wires a command context with interactive defaults
func NewContext(ctx context.Context, store storage.Provider, cfg *config.Config, reporter *telemetry.Reporter) *Context {
	if reporter == nil {
		reporter = telemetry.NewReporter(nil, "", "")
	}
	return &Context{
		Ctx:       ctx,
		Store:     store,
		Config:    cfg,
		Telemetry: reporter,
		Out:       os.Stdout,
		Now:       time.Now,
		Confirm:   confirmPrompt,
	}
}

func confirmPrompt(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// Printf writes to the command output
func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.Out, args...)
}

// BackupManager returns the local backup manager for the active database
func (c *Context) BackupManager() *backup.Manager {
	maxBackups := 0
	if c.Config != nil {
		maxBackups = c.Config.BackupMax
	}
	return backup.NewManager(c.Store, backup.DefaultDir(c.Store.GetPath()), maxBackups)
}

// PerformAutomaticBackup creates a backup and only logs failures
func (c *Context) PerformAutomaticBackup() {
	if _, err := c.BackupManager().Auto(c.Ctx); err != nil {
		logger.Debug("Automatic backup skipped", "error", err)
	}
}

// Today returns the current calendar day
func (c *Context) Today() string {
	return utils.Today(c.Now())
}

// FindHabit resolves a habit by id, or by case-insensitive name among all habits
func (c *Context) FindHabit(ref string) (models.Habit, error) {
	h, err := c.Store.GetHabit(c.Ctx, ref)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, apperrors.ErrEntityNotFound) {
		return models.Habit{}, err
	}

	habits, err := c.Store.GetHabits(c.Ctx, models.HabitFilter{})
	if err != nil {
		return models.Habit{}, err
	}
	var matches []models.Habit
	for _, h := range habits {
		if strings.EqualFold(h.Name, ref) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return models.Habit{}, apperrors.NotFound("habit", ref)
	case 1:
		return matches[0], nil
	default:
		return models.Habit{}, fmt.Errorf("%d habits are named %q, use the habit id", len(matches), ref)
	}
}

// FindCategory resolves a category by id or case-insensitive name
func (c *Context) FindCategory(ref string) (models.Category, error) {
	categories, err := c.Store.GetCategoriesOrdered(c.Ctx)
	if err != nil {
		return models.Category{}, err
	}
	for _, cat := range categories {
		if cat.ID == ref {
			return cat, nil
		}
	}
	for _, cat := range categories {
		if strings.EqualFold(cat.Name, ref) {
			return cat, nil
		}
	}
	return models.Category{}, apperrors.NotFound("category", ref)
}

// ConfirmOrSkip returns true when yes is set or the user agrees
func (c *Context) ConfirmOrSkip(yes bool, title, description string) (bool, error) {
	if yes {
		return true, nil
	}
	ok, err := c.Confirm(title, description)
	if err != nil {
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	return ok, nil
}

// FormatValue renders a logged value for terminal output
func FormatValue(h models.Habit, e *models.LogEntry) string {
	if e == nil {
		return "-"
	}
	if e.Skipped() {
		return "skipped (" + e.SkippedReason + ")"
	}
	if b, ok := e.Value.Bool(); ok {
		if b {
			return "done"
		}
		return "not done"
	}
	if n, ok := e.Value.Number(); ok && h.Unit != "" {
		return fmt.Sprintf("%g %s", n, h.Unit)
	}
	return e.Value.String()
}
