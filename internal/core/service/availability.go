package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

type AvailabilityResult struct {
	Product      *domain.Product
	Availability domain.Availability
	Rejected     *domain.Rejection
}

// AvailabilityTracker derives a product's status from its latest booking on
// every read. There is no background expiry; a RENTED product whose rental
// has ended is corrected to AVAILABLE the next time anyone looks at it.
type AvailabilityTracker struct {
	Deps
}

func NewAvailabilityTracker(deps Deps) *AvailabilityTracker {
	return &AvailabilityTracker{Deps: deps}
}

// Lookup loads the product and resolves it.
func (t *AvailabilityTracker) Lookup(ctx context.Context, productID string) (AvailabilityResult, error) {
	p, err := t.DB.Products().FindByID(ctx, productID)
	if err != nil {
		return AvailabilityResult{}, t.systemError("find product", err, zap.String("product_id", productID))
	}
	if p == nil {
		return AvailabilityResult{Rejected: domain.Invalid(domain.ReasonNotFound, "Product not found")}, nil
	}

	a, err := t.Resolve(ctx, p)
	if err != nil {
		return AvailabilityResult{}, err
	}
	return AvailabilityResult{Product: p, Availability: a}, nil
}

// Resolve returns the current availability of p, persisting the correction
// to AVAILABLE when the stored status is stale. p.Status is updated to
// match what was persisted.
func (t *AvailabilityTracker) Resolve(ctx context.Context, p *domain.Product) (domain.Availability, error) {
	switch p.Status {
	case domain.StatusSold, domain.StatusDeleted:
		return domain.Availability{Status: p.Status}, nil
	case domain.StatusAvailable, domain.StatusRented:
	default:
		return domain.Availability{}, t.systemError("resolve availability",
			errors.New("unknown stored status "+string(p.Status)), zap.String("product_id", p.ID))
	}

	now := t.Clock.Now()
	latest, err := t.DB.Bookings().FindLatestByProduct(ctx, p.ID)
	if err != nil {
		return domain.Availability{}, t.systemError("find latest booking", err, zap.String("product_id", p.ID))
	}
	if latest != nil && latest.Ongoing(now) {
		return rented(latest), nil
	}
	if p.Status == domain.StatusAvailable {
		return domain.Availability{Status: domain.StatusAvailable}, nil
	}

	return t.correct(ctx, p)
}

// correct moves a RENTED product back to AVAILABLE. The status write happens
// before the booking re-check so that a booking committing concurrently
// either waits for this transaction or is seen by it.
func (t *AvailabilityTracker) correct(ctx context.Context, p *domain.Product) (domain.Availability, error) {
	now := t.Clock.Now()
	next := *p
	from, err := next.MoveTo(domain.StatusAvailable, now)
	if err != nil {
		return domain.Availability{}, t.systemError("correct availability", err, zap.String("product_id", p.ID))
	}

	var running *domain.Booking
	err = t.DB.WithinTx(ctx, func(ctx context.Context, tx port.Stores) error {
		if err := tx.Products().Save(ctx, &next, from...); err != nil {
			return err
		}
		latest, err := tx.Bookings().FindLatestByProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		if latest != nil && latest.Ongoing(now) {
			running = latest
			return errRentalStarted
		}
		return nil
	})

	switch {
	case err == nil:
		*p = next
		t.logger().Info("rental period over, product available again", zap.String("product_id", p.ID))
		t.publish(ctx, domain.Event{
			Type:      domain.EventAvailabilityCorrected,
			ProductID: p.ID,
			Data:      map[string]any{"from": string(domain.StatusRented), "to": string(domain.StatusAvailable)},
		})
		return domain.Availability{Status: domain.StatusAvailable}, nil
	case errors.Is(err, errRentalStarted):
		return rented(running), nil
	case errors.Is(err, port.ErrStatusChanged):
		// Someone else moved the product first; report what they wrote.
		return t.reload(ctx, p)
	default:
		return domain.Availability{}, t.systemError("correct availability", err, zap.String("product_id", p.ID))
	}
}

var errRentalStarted = errors.New("rental started during correction")

func (t *AvailabilityTracker) reload(ctx context.Context, p *domain.Product) (domain.Availability, error) {
	fresh, err := t.DB.Products().FindByID(ctx, p.ID)
	if err != nil {
		return domain.Availability{}, t.systemError("find product", err, zap.String("product_id", p.ID))
	}
	if fresh == nil {
		return domain.Availability{}, t.systemError("find product", errors.New("product vanished"), zap.String("product_id", p.ID))
	}
	*p = *fresh
	if p.Status == domain.StatusRented {
		// A new booking landed; its window is authoritative.
		latest, err := t.DB.Bookings().FindLatestByProduct(ctx, p.ID)
		if err != nil {
			return domain.Availability{}, t.systemError("find latest booking", err, zap.String("product_id", p.ID))
		}
		if latest != nil && latest.Ongoing(t.Clock.Now()) {
			return rented(latest), nil
		}
		return domain.Availability{Status: domain.StatusAvailable}, nil
	}
	return domain.Availability{Status: p.Status}, nil
}

func rented(b *domain.Booking) domain.Availability {
	start, end := b.Start, b.End
	return domain.Availability{Status: domain.StatusRented, RentStart: &start, RentEnd: &end}
}
