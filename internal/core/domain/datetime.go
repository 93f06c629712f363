package domain

import (
	"fmt"
	"time"
)

// DateTimeLayout is the wire and storage format of interval endpoints:
// second precision, no zone.
const DateTimeLayout = "2006-01-02 15:04:05"

// WallClock reinterprets t's wall-clock reading in loc, dropping sub-second
// precision. Stored timestamps carry no zone, so every read goes through here.
func WallClock(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, 0, loc)
}

func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date-time %q: %w", s, err)
	}
	return t, nil
}

func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SinceMidnight returns the time-of-day of t as an offset from its midnight.
func SinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}
