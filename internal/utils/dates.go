package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// Today returns the calendar day of now in its own location
func Today(now time.Time) string {
	return now.Format(constants.DateFormat)
}

// ResolveDate turns user input into a YYYY-MM-DD day. Accepts an empty
// string or "today", "yesterday", a relative offset like "-3", or a date.
func ResolveDate(input string, now time.Time) (string, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	switch input {
	case "", "today":
		return Today(now), nil
	case "yesterday":
		return Today(now.AddDate(0, 0, -1)), nil
	}

	if strings.HasPrefix(input, "-") || strings.HasPrefix(input, "+") {
		offset, err := strconv.Atoi(input)
		if err != nil {
			return "", fmt.Errorf("invalid day offset %q", input)
		}
		return Today(now.AddDate(0, 0, offset)), nil
	}

	if _, err := time.Parse(constants.DateFormat, input); err != nil {
		return "", fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", input)
	}
	return input, nil
}

// ShiftDate moves a YYYY-MM-DD day by n days
func ShiftDate(date string, n int) (string, error) {
	t, err := time.Parse(constants.DateFormat, date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}

// DatesInRange lists every day from start to end inclusive
func DatesInRange(start, end string) ([]string, error) {
	s, err := time.Parse(constants.DateFormat, start)
	if err != nil {
		return nil, err
	}
	e, err := time.Parse(constants.DateFormat, end)
	if err != nil {
		return nil, err
	}
	if s.After(e) {
		return nil, fmt.Errorf("start %s is after end %s", start, end)
	}

	var days []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(constants.DateFormat))
	}
	return days, nil
}

// IsDue reports whether a habit is scheduled on date. Monthly habits whose
// tracking date is past the end of a short month fall on its last day.
func IsDue(h models.Habit, date string) bool {
	t, err := time.Parse(constants.DateFormat, date)
	if err != nil {
		return false
	}

	switch h.Interval {
	case models.IntervalWeekly:
		if h.TrackingDay == nil {
			return true
		}
		return int(t.Weekday()) == *h.TrackingDay
	case models.IntervalMonthly:
		if h.TrackingDate == nil {
			return true
		}
		lastDay := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		want := *h.TrackingDate
		if want > lastDay {
			want = lastDay
		}
		return t.Day() == want
	default:
		return true
	}
}
