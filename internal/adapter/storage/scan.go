package storage

import (
	"fmt"
	"time"

	"github.com/rl1809/rent-market/internal/core/domain"
)

// wallTime scans a zone-less timestamp column into the market location.
// Drivers hand these back as time.Time, string or []byte depending on the
// database and DSN options.
type wallTime struct {
	time.Time
	loc *time.Location
}

func (w *wallTime) Scan(src any) error {
	loc := w.loc
	if loc == nil {
		loc = time.Local
	}

	switch v := src.(type) {
	case time.Time:
		w.Time = domain.WallClock(v, loc)
		return nil
	case string:
		return w.parse(v, loc)
	case []byte:
		return w.parse(string(v), loc)
	case nil:
		return fmt.Errorf("scan timestamp: unexpected NULL")
	}
	return fmt.Errorf("scan timestamp: unsupported type %T", src)
}

var wallTimeLayouts = []string{
	domain.DateTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

func (w *wallTime) parse(s string, loc *time.Location) error {
	for _, layout := range wallTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			w.Time = domain.WallClock(t, loc)
			return nil
		}
	}
	return fmt.Errorf("scan timestamp: unrecognised value %q", s)
}
