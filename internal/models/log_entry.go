package models

import "time"

// LogEntry is one observation of a habit on one calendar day.
// (HabitID, Date) is unique.
type LogEntry struct {
	ID            string    `json:"id"`
	HabitID       string    `json:"habitId"`
	Date          string    `json:"date"` // YYYY-MM-DD format
	Value         Value     `json:"value"`
	Note          string    `json:"note,omitempty"`
	SkippedReason string    `json:"skippedReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Skipped reports whether the day was explicitly skipped rather than logged
func (e LogEntry) Skipped() bool {
	return e.SkippedReason != ""
}
