package models

import "time"

// HabitKind selects how a habit is tracked and which Value type its log entries hold
type HabitKind string

const (
	KindYesNo    HabitKind = "yes_no"
	KindRating   HabitKind = "rating"
	KindDuration HabitKind = "duration"
	KindCount    HabitKind = "count"
)

// Valid reports whether k is a known habit kind
func (k HabitKind) Valid() bool {
	switch k {
	case KindYesNo, KindRating, KindDuration, KindCount:
		return true
	}
	return false
}

// Interval is the tracking cadence of a habit
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Valid reports whether i is a known interval
func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// Reminder is an optional time-of-day nudge
type Reminder struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time,omitempty"` // HH:MM format
}

// Habit is a trackable definition owned by a category
type Habit struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Image        string    `json:"image,omitempty"`
	CategoryID   string    `json:"categoryId"`
	Kind         HabitKind `json:"kind"`
	Options      []string  `json:"options,omitempty"` // rating habits only
	Unit         string    `json:"unit,omitempty"`    // duration and count habits
	Target       *float64  `json:"target,omitempty"`
	Interval     Interval  `json:"interval"`
	TrackingDay  *int      `json:"trackingDay,omitempty"`  // 0-6, weekly only
	TrackingDate *int      `json:"trackingDate,omitempty"` // 1-31, monthly only
	Reminder     *Reminder `json:"reminder,omitempty"`
	Order        int       `json:"order"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HabitPatch holds the mutable fields of a habit. Nil fields are left untouched.
//
// Changing Interval also replaces the scheduling data: TrackingDay and TrackingDate
// are taken from the patch as-is so the pair stays consistent with the new interval.
type HabitPatch struct {
	Name         *string
	Description  *string
	Image        *string
	CategoryID   *string
	Kind         *HabitKind
	Options      []string
	Unit         *string
	Target       *float64
	Interval     *Interval
	TrackingDay  *int
	TrackingDate *int
	Reminder     *Reminder
}

// Apply copies the set fields of p onto h
func (p HabitPatch) Apply(h *Habit) {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Image != nil {
		h.Image = *p.Image
	}
	if p.CategoryID != nil {
		h.CategoryID = *p.CategoryID
	}
	if p.Kind != nil {
		h.Kind = *p.Kind
		if h.Kind != KindRating {
			h.Options = nil
		}
	}
	if p.Options != nil {
		h.Options = append([]string(nil), p.Options...)
	}
	if p.Unit != nil {
		h.Unit = *p.Unit
	}
	if p.Target != nil {
		t := *p.Target
		h.Target = &t
	}
	if p.Interval != nil {
		h.Interval = *p.Interval
		h.TrackingDay = p.TrackingDay
		h.TrackingDate = p.TrackingDate
	} else {
		if p.TrackingDay != nil {
			h.TrackingDay = p.TrackingDay
		}
		if p.TrackingDate != nil {
			h.TrackingDate = p.TrackingDate
		}
	}
	if p.Reminder != nil {
		r := *p.Reminder
		h.Reminder = &r
	}
}

// HabitFilter narrows GetHabits
type HabitFilter struct {
	CategoryID string
	ActiveOnly bool
}

// HabitWithLog pairs an active habit with its entry for one day, if any
type HabitWithLog struct {
	Habit Habit
	Log   *LogEntry
}
