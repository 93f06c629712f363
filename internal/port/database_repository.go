package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/rent-market/internal/core/domain"
)

// Constraint signals raised by stores. They are expected under concurrency
// and must be translated into conflicts, never surfaced as system errors.
var (
	ErrOverlappingBooking = errors.New("overlapping booking")
	ErrDuplicatePurchase  = errors.New("duplicate purchase")
	ErrStatusChanged      = errors.New("product status changed concurrently")
)

type ProductStore interface {
	// FindByID returns nil, nil when the product does not exist.
	FindByID(ctx context.Context, id string) (*domain.Product, error)

	// FindEligible is FindByID restricted to AVAILABLE and RENTED products.
	FindEligible(ctx context.Context, id string) (*domain.Product, error)

	// Save writes p.Status and p.UpdatedAt if the stored status is one of
	// from; otherwise it returns ErrStatusChanged.
	Save(ctx context.Context, p *domain.Product, from ...domain.AvailabilityStatus) error
}

type RentTermsStore interface {
	// FindByID returns nil, nil when the terms do not exist.
	FindByID(ctx context.Context, id string) (*domain.RentTerms, error)
}

type BookingStore interface {
	// FindLatestByProduct returns the booking with the greatest end time, or
	// nil when the product has never been booked.
	FindLatestByProduct(ctx context.Context, productID string) (*domain.Booking, error)

	FindByProductOrderByEndDesc(ctx context.Context, productID string) ([]domain.Booking, error)

	// ExistsOverlapping is an advisory probe over the closed interval
	// [start, end]. Insert is the authoritative check.
	ExistsOverlapping(ctx context.Context, productID string, start, end time.Time) (bool, error)

	// Insert returns ErrOverlappingBooking when the storage-level exclusion
	// guarantee rejects the row.
	Insert(ctx context.Context, b domain.Booking) error
}

type PurchaseStore interface {
	ExistsForProduct(ctx context.Context, productID string) (bool, error)

	// Insert returns ErrDuplicatePurchase when the product already has a
	// purchase.
	Insert(ctx context.Context, p domain.Purchase) error
}

// Stores groups the repositories bound to one connection or transaction.
type Stores interface {
	Products() ProductStore
	RentTerms() RentTermsStore
	Bookings() BookingStore
	Purchases() PurchaseStore
}

// DatabaseRepository is the engine's view of persistent storage. Stores
// outside WithinTx run each call in its own implicit transaction.
type DatabaseRepository interface {
	Stores

	// WithinTx runs fn in a single transaction. The transaction commits only
	// if fn returns nil; any error rolls it back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}
