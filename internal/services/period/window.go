package period

import (
	"fmt"
	"time"

	"github.com/ternarybob/nousnews/internal/models"
)

// Window is a half-open aggregation interval [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// For returns the calendar window of the timeframe containing at.
// All boundaries are UTC: hours floor to the hour, days to midnight,
// weeks to Monday midnight, months to the first of the month.
func For(tf models.Timeframe, at time.Time) Window {
	t := at.UTC()
	switch tf {
	case models.TimeframeHour:
		start := t.Truncate(time.Hour)
		return Window{Start: start, End: start.Add(time.Hour)}
	case models.TimeframeDay:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: start.Add(24 * time.Hour)}
	case models.TimeframeWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		start := day.AddDate(0, 0, -offset)
		return Window{Start: start, End: start.AddDate(0, 0, 7)}
	case models.TimeframeMonth:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: start.AddDate(0, 1, 0)}
	}
	// Unknown timeframes behave like hours so callers never get a zero window
	start := t.Truncate(time.Hour)
	return Window{Start: start, End: start.Add(time.Hour)}
}

// RollingDay returns the sliding 24-hour window ending at the top of
// the hour after now. The current partial hour is included.
func RollingDay(now time.Time) Window {
	end := now.UTC().Truncate(time.Hour).Add(time.Hour)
	return Window{Start: end.Add(-24 * time.Hour), End: end}
}

// Next returns the period start immediately after start
func Next(tf models.Timeframe, start time.Time) time.Time {
	switch tf {
	case models.TimeframeHour:
		return start.Add(time.Hour)
	case models.TimeframeDay:
		return start.Add(24 * time.Hour)
	case models.TimeframeWeek:
		return start.AddDate(0, 0, 7)
	case models.TimeframeMonth:
		return start.AddDate(0, 1, 0)
	}
	return start.Add(time.Hour)
}

// LatestClosedStart returns the start of the most recent period whose
// end is at or before now. ok is false when no period has closed yet
// relative to the timeframe (cannot happen for real clock values).
func LatestClosedStart(tf models.Timeframe, now time.Time) (time.Time, bool) {
	current := For(tf, now)
	prev := previousStart(tf, current.Start)
	if prev.IsZero() {
		return time.Time{}, false
	}
	return prev, true
}

func previousStart(tf models.Timeframe, start time.Time) time.Time {
	switch tf {
	case models.TimeframeHour:
		return start.Add(-time.Hour)
	case models.TimeframeDay:
		return start.Add(-24 * time.Hour)
	case models.TimeframeWeek:
		return start.AddDate(0, 0, -7)
	case models.TimeframeMonth:
		return start.AddDate(0, -1, 0)
	}
	return start.Add(-time.Hour)
}

// DueStarts enumerates period starts from `from` (inclusive, aligned by
// the caller) whose windows have fully closed by now. When max > 0 only
// the most recent max entries are kept, so a long-idle instance catches
// up on recent periods instead of replaying history.
func DueStarts(tf models.Timeframe, from, now time.Time, max int) []time.Time {
	if from.IsZero() {
		return nil
	}

	var starts []time.Time
	for s := For(tf, from).Start; ; s = Next(tf, s) {
		end := For(tf, s).End
		if end.After(now.UTC()) {
			break
		}
		starts = append(starts, s)
	}

	if max > 0 && len(starts) > max {
		starts = starts[len(starts)-max:]
	}
	return starts
}

// CardSlug builds the canonical slug for a card period
func CardSlug(tf models.Timeframe, start time.Time) string {
	s := start.UTC()
	switch tf {
	case models.TimeframeHour:
		return s.Format("hour-2006-01-02-15")
	case models.TimeframeDay:
		// "day24" contains Format layout digits, so keep it out of the layout
		return "day24-" + s.Format("2006-01-02-15")
	case models.TimeframeWeek:
		return fmt.Sprintf("week-%d-%02d", s.Year(), mondayWeekNumber(s))
	case models.TimeframeMonth:
		return s.Format("month-2006-01")
	}
	return s.Format("period-2006-01-02-15")
}

// mondayWeekNumber is the Monday-based week-of-year where days before
// the year's first Monday fall in week 0.
func mondayWeekNumber(t time.Time) int {
	yday := t.YearDay()
	wday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return (yday - 1 - wday + 7) / 7
}

// Label renders a human-readable period label for prompts and titles
func Label(tf models.Timeframe, start time.Time) string {
	s := start.UTC()
	switch tf {
	case models.TimeframeHour:
		return s.Format("15:04 UTC, 2 January 2006")
	case models.TimeframeDay:
		return s.Format("2 January 2006")
	case models.TimeframeWeek:
		return fmt.Sprintf("week of %s", s.Format("2 January 2006"))
	case models.TimeframeMonth:
		return s.Format("January 2006")
	}
	return s.Format("2 January 2006")
}
