package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrIllegalTransition = errors.New("illegal status transition")

type ListingKind string

const (
	ListedForSale ListingKind = "SALE"
	ListedForRent ListingKind = "RENT"
	ListedForBoth ListingKind = "BOTH"
)

func (k ListingKind) AllowsRent() bool {
	return k == ListedForRent || k == ListedForBoth
}

func (k ListingKind) AllowsSale() bool {
	return k == ListedForSale || k == ListedForBoth
}

func ParseListingKind(s string) (ListingKind, error) {
	switch k := ListingKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case ListedForSale, ListedForRent, ListedForBoth:
		return k, nil
	}
	return "", fmt.Errorf("unknown listing kind %q", s)
}

// AvailabilityStatus is the persisted state of a product. SOLD and DELETED
// are terminal.
type AvailabilityStatus string

const (
	StatusAvailable AvailabilityStatus = "AVAILABLE"
	StatusRented    AvailabilityStatus = "RENTED"
	StatusSold      AvailabilityStatus = "SOLD"
	StatusDeleted   AvailabilityStatus = "DELETED"
)

func ParseAvailabilityStatus(s string) (AvailabilityStatus, error) {
	switch st := AvailabilityStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusAvailable, StatusRented, StatusSold, StatusDeleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown availability status %q", s)
}

func (s AvailabilityStatus) Terminal() bool {
	switch s {
	case StatusSold, StatusDeleted:
		return true
	case StatusAvailable, StatusRented:
		return false
	}
	panic(fmt.Sprintf("domain: unhandled availability status %q", string(s)))
}

// Sources lists the statuses a product may move to s from.
func (s AvailabilityStatus) Sources() []AvailabilityStatus {
	switch s {
	case StatusAvailable:
		return []AvailabilityStatus{StatusRented}
	case StatusRented, StatusSold, StatusDeleted:
		return []AvailabilityStatus{StatusAvailable, StatusRented}
	}
	panic(fmt.Sprintf("domain: unhandled availability status %q", string(s)))
}

func CanTransition(from, to AvailabilityStatus) bool {
	for _, src := range to.Sources() {
		if src == from {
			return true
		}
	}
	return false
}

// EligibleStatuses are the statuses under which a product still accepts
// bookings and purchases.
var EligibleStatuses = []AvailabilityStatus{StatusAvailable, StatusRented}

type Product struct {
	ID           string
	OwnerID      string
	ListedFor    ListingKind
	SellingPrice float64
	RentTermsID  string // empty when the product is not rentable
	Status       AvailabilityStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MoveTo applies a status transition in memory and returns the statuses the
// stored row must still hold for the write to be valid.
func (p *Product) MoveTo(next AvailabilityStatus, at time.Time) ([]AvailabilityStatus, error) {
	if !CanTransition(p.Status, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, p.Status, next)
	}
	p.Status = next
	p.UpdatedAt = at
	return next.Sources(), nil
}

func (p *Product) OwnedBy(userID string) bool {
	return p.OwnerID != "" && p.OwnerID == userID
}
