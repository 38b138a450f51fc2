package timeutil

import (
	"fmt"
	"time"
)

// TimeOfDay is a clock time with minute granularity, independent of date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a "HH:MM" string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time format %q: expected HH:MM", s)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// FromTime extracts the time-of-day component of t
func FromTime(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes returns the time of day as minutes since midnight
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// IsWithinWindow reports whether now falls inside the daily operating window.
// A window with start == stop is unbounded (24/7 operation). A window with
// start > stop spans midnight (e.g. 22:00-06:00).
func IsWithinWindow(now, start, stop TimeOfDay) bool {
	n, s, e := now.Minutes(), start.Minutes(), stop.Minutes()

	switch {
	case s == e:
		return true
	case s < e:
		return s <= n && n <= e
	default:
		return n >= s || n <= e
	}
}

// TimestampedName builds a filename of the form "<base>_<YYYYMMDD_HHMMSS><ext>".
// The extension may be given with or without a leading dot.
func TimestampedName(base string, ts time.Time, ext string) string {
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return base + "_" + ts.Format("20060102_150405") + ext
}

// DayNumber returns the 1-based day number of t relative to a start date,
// ignoring time-of-day. Returns 0 when t precedes the start date.
func DayNumber(start, t time.Time) int {
	sy, sm, sd := start.Date()
	ty, tm, td := t.Date()
	startDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	tDay := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)

	days := int(tDay.Sub(startDay).Hours()/24) + 1
	if days < 1 {
		return 0
	}
	return days
}

// LoadLocation resolves an IANA timezone name, falling back to UTC on error.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
