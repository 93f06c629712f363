// Package pricing turns a rental interval and per-unit rate into billable
// units and a total.
package pricing

import (
	"math"
	"time"

	"github.com/rl1809/rent-market/internal/core/domain"
)

type Quote struct {
	Units int64
	Unit  domain.RentUnit
	Rate  float64
	Total float64
}

// Calculate bills every started unit in full. The caller guarantees
// end > start.
func Calculate(start, end time.Time, unit domain.RentUnit, rate float64) Quote {
	units := CeilUnits(end.Sub(start), unit.Duration())
	return Quote{
		Units: units,
		Unit:  unit,
		Rate:  rate,
		Total: roundCents(float64(units) * rate),
	}
}

// CalculateFor prices an interval against a product's rent terms.
func CalculateFor(start, end time.Time, terms domain.RentTerms) Quote {
	return Calculate(start, end, terms.Unit, terms.Price)
}

// CeilUnits counts whole seconds, matching the precision of stored
// endpoints.
func CeilUnits(d, unit time.Duration) int64 {
	d = d.Truncate(time.Second)
	n := int64(d / unit)
	if d%unit > 0 {
		n++
	}
	return n
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
