package service

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/core/pricing"
)

// Market is the engine as seen by transports.
type Market struct {
	Tracker   *AvailabilityTracker
	Guard     *BookingGuard
	Finalizer *PurchaseFinalizer
	Remover   *ProductRemover
}

func NewMarket(deps Deps, policy BookingPolicy) (*Market, error) {
	if deps.DB == nil {
		return nil, errors.New("market: database repository is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("market: clock is required")
	}
	tracker := NewAvailabilityTracker(deps)
	return &Market{
		Tracker:   tracker,
		Guard:     NewBookingGuard(deps, policy),
		Finalizer: NewPurchaseFinalizer(deps, tracker),
		Remover:   NewProductRemover(deps),
	}, nil
}

func (m *Market) ResolveAvailability(ctx context.Context, p *domain.Product) (domain.Availability, error) {
	return m.Tracker.Resolve(ctx, p)
}

func (m *Market) Lookup(ctx context.Context, productID string) (AvailabilityResult, error) {
	return m.Tracker.Lookup(ctx, productID)
}

func (m *Market) TryBook(ctx context.Context, req BookingRequest) (BookingResult, error) {
	return m.Guard.TryBook(ctx, req)
}

func (m *Market) TryPurchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	return m.Finalizer.TryPurchase(ctx, req)
}

func (m *Market) TryDelete(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	return m.Remover.TryDelete(ctx, req)
}

func (m *Market) Quote(ctx context.Context, productID string, start, end time.Time) (pricing.Quote, *domain.Rejection, error) {
	return m.Guard.Quote(ctx, productID, start, end)
}

// Location is the zone interval endpoints are interpreted in.
func (m *Market) Location() *time.Location {
	return m.Tracker.Clock.Now().Location()
}
