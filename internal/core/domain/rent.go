package domain

import (
	"fmt"
	"strings"
	"time"
)

type RentUnit string

const (
	RentPerHour RentUnit = "HOUR"
	RentPerDay  RentUnit = "DAY"
)

func ParseRentUnit(s string) (RentUnit, error) {
	switch u := RentUnit(strings.ToUpper(strings.TrimSpace(s))); u {
	case RentPerHour, RentPerDay:
		return u, nil
	case "PER_HOUR":
		return RentPerHour, nil
	case "PER_DAY":
		return RentPerDay, nil
	}
	return "", fmt.Errorf("unknown rent unit %q", s)
}

// Duration is the length of one billable unit.
func (u RentUnit) Duration() time.Duration {
	switch u {
	case RentPerHour:
		return time.Hour
	case RentPerDay:
		return 24 * time.Hour
	}
	panic(fmt.Sprintf("domain: unhandled rent unit %q", string(u)))
}

func (u RentUnit) Label() string {
	switch u {
	case RentPerHour:
		return "hour(s)"
	case RentPerDay:
		return "day(s)"
	}
	panic(fmt.Sprintf("domain: unhandled rent unit %q", string(u)))
}

// RentTerms is immutable once a booking has been priced against it.
type RentTerms struct {
	ID    string
	Price float64
	Unit  RentUnit
}
