package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

// ValidateDate checks the calendar-day form used by log entries
func ValidateDate(date string) error {
	if _, err := time.Parse(constants.DateFormat, date); err != nil {
		return apperrors.Invalid("date", "invalid date %q (expected YYYY-MM-DD)", date)
	}
	return nil
}

// ValidateTimeOfDay checks an HH:MM reminder time
func ValidateTimeOfDay(value string) error {
	if _, err := time.Parse(constants.TimeFormat, value); err != nil {
		return apperrors.Invalid("reminder.time", "invalid time %q (expected HH:MM)", value)
	}
	return nil
}

// ValidateCategory checks a category before it is written
func ValidateCategory(c models.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperrors.Invalid("name", "category name is required")
	}
	if !c.Group.Valid() {
		return apperrors.Invalid("group", "unknown group %q (expected positive or negative)", c.Group)
	}
	return nil
}

// ValidateHabit enforces the kind and interval invariants of a habit
func ValidateHabit(h models.Habit) error {
	if strings.TrimSpace(h.Name) == "" {
		return apperrors.Invalid("name", "habit name is required")
	}
	if h.CategoryID == "" {
		return apperrors.Invalid("categoryId", "category is required")
	}
	if !h.Kind.Valid() {
		return apperrors.Invalid("kind", "unknown habit kind %q", h.Kind)
	}

	// options exist iff the habit is a rating habit
	if h.Kind == models.KindRating {
		if len(h.Options) < 2 {
			return apperrors.Invalid("options", "rating habits need at least 2 options, got %d", len(h.Options))
		}
		seen := make(map[string]bool, len(h.Options))
		for _, opt := range h.Options {
			if strings.TrimSpace(opt) == "" {
				return apperrors.Invalid("options", "rating options cannot be empty")
			}
			if seen[opt] {
				return apperrors.Invalid("options", "duplicate rating option %q", opt)
			}
			seen[opt] = true
		}
	} else if len(h.Options) > 0 {
		return apperrors.Invalid("options", "only rating habits have options")
	}

	if h.Target != nil {
		if !finite(*h.Target) {
			return apperrors.Invalid("target", "target must be a finite number")
		}
		if *h.Target < 0 {
			return apperrors.Invalid("target", "target cannot be negative")
		}
	}

	if !h.Interval.Valid() {
		return apperrors.Invalid("interval", "unknown interval %q", h.Interval)
	}
	switch h.Interval {
	case models.IntervalDaily:
		if h.TrackingDay != nil || h.TrackingDate != nil {
			return apperrors.Invalid("interval", "daily habits take no tracking day or date")
		}
	case models.IntervalWeekly:
		if h.TrackingDay == nil {
			return apperrors.Invalid("trackingDay", "weekly habits need a tracking day (0-6)")
		}
		if *h.TrackingDay < 0 || *h.TrackingDay > 6 {
			return apperrors.Invalid("trackingDay", "tracking day %d out of range (0-6)", *h.TrackingDay)
		}
		if h.TrackingDate != nil {
			return apperrors.Invalid("trackingDate", "weekly habits take no tracking date")
		}
	case models.IntervalMonthly:
		if h.TrackingDate == nil {
			return apperrors.Invalid("trackingDate", "monthly habits need a tracking date (1-31)")
		}
		if *h.TrackingDate < 1 || *h.TrackingDate > 31 {
			return apperrors.Invalid("trackingDate", "tracking date %d out of range (1-31)", *h.TrackingDate)
		}
		if h.TrackingDay != nil {
			return apperrors.Invalid("trackingDay", "monthly habits take no tracking day")
		}
	}

	if h.Reminder != nil && h.Reminder.Enabled {
		if err := ValidateTimeOfDay(h.Reminder.Time); err != nil {
			return err
		}
	}
	return nil
}

// ValidateLogValue checks that a value matches the runtime type its habit's kind expects
func ValidateLogValue(h models.Habit, v models.Value) error {
	switch h.Kind {
	case models.KindYesNo:
		if _, ok := v.Bool(); !ok {
			return apperrors.Invalid("value", "habit %q expects a yes/no value, got %s", h.Name, v.Type())
		}
	case models.KindRating:
		s, ok := v.Text()
		if !ok {
			return apperrors.Invalid("value", "habit %q expects a rating, got %s", h.Name, v.Type())
		}
		for _, opt := range h.Options {
			if opt == s {
				return nil
			}
		}
		return apperrors.Invalid("value", "rating %q is not one of %s", s, strings.Join(h.Options, ", "))
	case models.KindDuration, models.KindCount:
		n, ok := v.Number()
		if !ok {
			return apperrors.Invalid("value", "habit %q expects a number, got %s", h.Name, v.Type())
		}
		if !finite(n) {
			return apperrors.Invalid("value", "value must be a finite number")
		}
		if n < 0 {
			return apperrors.Invalid("value", "value cannot be negative")
		}
	default:
		return apperrors.Invalid("kind", "unknown habit kind %q", h.Kind)
	}
	return nil
}

// ConflictType names a dataset-level inconsistency
type ConflictType string

const (
	ConflictFixedCategories ConflictType = "fixed_categories"
	ConflictOrphanHabit     ConflictType = "orphan_habit"
	ConflictOrphanLogEntry  ConflictType = "orphan_log_entry"
	ConflictDuplicateDay    ConflictType = "duplicate_day"
	ConflictInvalidHabit    ConflictType = "invalid_habit"
)

// Conflict is one problem found by ValidateDataset
type Conflict struct {
	Type        ConflictType
	Description string
	IDs         []string
}

// Result collects the conflicts found in a dataset
type Result struct {
	Conflicts []Conflict
}

// HasConflicts reports whether any conflict was found
func (r Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Blocking reports whether the conflict makes a dataset unusable. Log entries
// kept after their habit was deleted are valid history.
func (c Conflict) Blocking() bool {
	return c.Type != ConflictOrphanLogEntry
}

// BlockingConflicts returns the conflicts that must be fixed before a dataset is accepted
func (r Result) BlockingConflicts() []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if c.Blocking() {
			out = append(out, c)
		}
	}
	return out
}

// ValidateDataset checks relationships across tables: the fixed category
// invariant, dangling foreign keys and duplicate (habit, day) pairs.
func ValidateDataset(categories []models.Category, habits []models.Habit, entries []models.LogEntry) Result {
	var result Result

	fixed := map[models.GroupTag][]string{}
	categoryIDs := make(map[string]bool, len(categories))
	for _, c := range categories {
		categoryIDs[c.ID] = true
		if c.IsFixed {
			fixed[c.Group] = append(fixed[c.Group], c.ID)
		}
	}
	if len(fixed[models.GroupPositive]) != 1 || len(fixed[models.GroupNegative]) != 1 {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type: ConflictFixedCategories,
			Description: fmt.Sprintf("expected one fixed category per group, found %d positive and %d negative",
				len(fixed[models.GroupPositive]), len(fixed[models.GroupNegative])),
			IDs: append(fixed[models.GroupPositive], fixed[models.GroupNegative]...),
		})
	}

	habitIDs := make(map[string]bool, len(habits))
	for _, h := range habits {
		habitIDs[h.ID] = true
		if !categoryIDs[h.CategoryID] {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictOrphanHabit,
				Description: fmt.Sprintf("habit %q references missing category %q", h.Name, h.CategoryID),
				IDs:         []string{h.ID},
			})
		}
		if err := ValidateHabit(h); err != nil {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidHabit,
				Description: fmt.Sprintf("habit %q: %v", h.Name, err),
				IDs:         []string{h.ID},
			})
		}
	}

	days := make(map[string]string, len(entries))
	for _, e := range entries {
		if !habitIDs[e.HabitID] {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictOrphanLogEntry,
				Description: fmt.Sprintf("log entry on %s references missing habit %q", e.Date, e.HabitID),
				IDs:         []string{e.ID},
			})
		}
		key := e.HabitID + "|" + e.Date
		if other, ok := days[key]; ok {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateDay,
				Description: fmt.Sprintf("habit %q has two entries on %s", e.HabitID, e.Date),
				IDs:         []string{other, e.ID},
			})
			continue
		}
		days[key] = e.ID
	}

	return result
}

func finite(n float64) bool { return !math.IsNaN(n) && !math.IsInf(n, 0) }
