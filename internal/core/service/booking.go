package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/core/pricing"
	"github.com/rl1809/rent-market/internal/port"
)

type BookingPolicy struct {
	// SameDayCutoff is the time of day after which rentals starting today
	// are refused.
	SameDayCutoff time.Duration

	// Precheck probes for overlapping bookings before opening the write
	// transaction, for a friendlier early answer. Correctness does not
	// depend on it.
	Precheck bool
}

func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{SameDayCutoff: DefaultSameDayCutoff, Precheck: true}
}

type BookingRequest struct {
	ProductID string
	RenterID  string
	Start     time.Time
	End       time.Time
}

type BookingResult struct {
	Booking  *domain.Booking
	Quote    pricing.Quote
	Message  string
	Rejected *domain.Rejection
}

func (r BookingResult) OK() bool { return r.Rejected == nil && r.Booking != nil }

const msgAlreadyBooked = "Product already booked for this period"

// BookingGuard grants rental intervals. Overlap is ultimately decided by the
// store's exclusion guarantee at insert time; two requests can both pass
// every check here before either commits.
type BookingGuard struct {
	Deps
	policy BookingPolicy
}

func NewBookingGuard(deps Deps, policy BookingPolicy) *BookingGuard {
	return &BookingGuard{Deps: deps, policy: policy}
}

func (g *BookingGuard) TryBook(ctx context.Context, req BookingRequest) (BookingResult, error) {
	log := g.logger().With(
		zap.String("product_id", req.ProductID),
		zap.String("renter_id", req.RenterID),
		zap.String("rent_start", domain.FormatDateTime(req.Start)),
		zap.String("rent_end", domain.FormatDateTime(req.End)))
	log.Debug("attempting to book product")

	now := g.Clock.Now()
	if r := g.checkInterval(req.Start, req.End, now); r != nil {
		log.Warn("booking rejected", zap.String("reason", string(r.Reason)))
		return BookingResult{Rejected: r}, nil
	}

	product, err := g.DB.Products().FindEligible(ctx, req.ProductID)
	if err != nil {
		return BookingResult{}, g.systemError("find eligible product", err, zap.String("product_id", req.ProductID))
	}
	if product == nil {
		log.Warn("booking rejected", zap.String("reason", string(domain.ReasonNotAvailable)))
		return BookingResult{Rejected: domain.Invalid(domain.ReasonNotAvailable, "Product not available")}, nil
	}

	terms, err := g.loadTerms(ctx, product)
	if err != nil {
		return BookingResult{}, g.systemError("find rent terms", err, zap.String("product_id", req.ProductID))
	}
	if terms == nil {
		log.Warn("booking rejected", zap.String("reason", string(domain.ReasonNotRentable)))
		return BookingResult{Rejected: domain.Invalid(domain.ReasonNotRentable, "Rent info missing")}, nil
	}

	if g.policy.Precheck {
		taken, err := g.DB.Bookings().ExistsOverlapping(ctx, product.ID, req.Start, req.End)
		if err != nil {
			return BookingResult{}, g.systemError("probe overlapping bookings", err, zap.String("product_id", req.ProductID))
		}
		if taken {
			log.Warn("booking rejected by pre-check", zap.String("reason", string(domain.ReasonOverlap)))
			return BookingResult{Rejected: domain.Conflict(domain.ReasonOverlap, msgAlreadyBooked)}, nil
		}
	}

	quote := pricing.CalculateFor(req.Start, req.End, *terms)
	log.Debug("calculated rent", zap.Int64("units", quote.Units), zap.Float64("total", quote.Total))

	booking := domain.Booking{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		RentTermsID: terms.ID,
		RenterID:    req.RenterID,
		Start:       req.Start,
		End:         req.End,
		Units:       quote.Units,
		Unit:        quote.Unit,
		Total:       quote.Total,
		Status:      domain.BookingBooked,
		CreatedAt:   now,
	}

	err = g.DB.WithinTx(ctx, func(ctx context.Context, tx port.Stores) error {
		if err := tx.Bookings().Insert(ctx, booking); err != nil {
			return err
		}
		next := *product
		from, err := next.MoveTo(domain.StatusRented, now)
		if err != nil {
			return err
		}
		return tx.Products().Save(ctx, &next, from...)
	})
	switch {
	case errors.Is(err, port.ErrOverlappingBooking):
		log.Warn("conflict while booking product", zap.Error(err))
		return BookingResult{Rejected: domain.Conflict(domain.ReasonOverlap, msgAlreadyBooked)}, nil
	case errors.Is(err, port.ErrStatusChanged), errors.Is(err, domain.ErrIllegalTransition):
		log.Warn("product left the market while booking", zap.Error(err))
		return BookingResult{Rejected: domain.Invalid(domain.ReasonNotAvailable, "Product not available")}, nil
	case err != nil:
		return BookingResult{}, g.systemError("book product", err,
			zap.String("product_id", req.ProductID), zap.String("renter_id", req.RenterID))
	}

	log.Info("successfully booked product", zap.String("booking_id", booking.ID))
	g.publish(ctx, domain.Event{
		Type:      domain.EventBookingCreated,
		ProductID: product.ID,
		ActorID:   req.RenterID,
		Data: map[string]any{
			"booking_id": booking.ID,
			"rent_start": domain.FormatDateTime(booking.Start),
			"rent_end":   domain.FormatDateTime(booking.End),
			"units":      booking.Units,
			"unit":       string(booking.Unit),
			"total":      booking.Total,
		},
	})

	return BookingResult{
		Booking: &booking,
		Quote:   quote,
		Message: fmt.Sprintf("Booked %d %s; total rent: %.2f", quote.Units, quote.Unit.Label(), quote.Total),
	}, nil
}

// checkInterval applies the timing rules. The same-day cutoff is checked
// before the past-start rule: a same-day start after the cutoff is refused
// for the cutoff whether or not that start has already passed.
func (g *BookingGuard) checkInterval(start, end, now time.Time) *domain.Rejection {
	if !end.After(start) {
		return domain.Invalid(domain.ReasonInvalidInterval, "Invalid rental period")
	}
	if domain.SameDate(start, now) && domain.SinceMidnight(now) > g.policy.SameDayCutoff {
		return domain.Invalid(domain.ReasonCutoffViolation,
			fmt.Sprintf("Same-day rentals must be booked before %s", formatCutoff(g.policy.SameDayCutoff)))
	}
	if start.Before(now) {
		return domain.Invalid(domain.ReasonInvalidInterval, "Invalid rental period")
	}
	return nil
}

func (g *BookingGuard) loadTerms(ctx context.Context, p *domain.Product) (*domain.RentTerms, error) {
	if !p.ListedFor.AllowsRent() || p.RentTermsID == "" {
		return nil, nil
	}
	return g.DB.RentTerms().FindByID(ctx, p.RentTermsID)
}

// Quote prices an interval for a product without booking it.
func (g *BookingGuard) Quote(ctx context.Context, productID string, start, end time.Time) (pricing.Quote, *domain.Rejection, error) {
	if !end.After(start) {
		return pricing.Quote{}, domain.Invalid(domain.ReasonInvalidInterval, "Invalid rental period"), nil
	}
	product, err := g.DB.Products().FindEligible(ctx, productID)
	if err != nil {
		return pricing.Quote{}, nil, g.systemError("find eligible product", err, zap.String("product_id", productID))
	}
	if product == nil {
		return pricing.Quote{}, domain.Invalid(domain.ReasonNotAvailable, "Product not available"), nil
	}
	terms, err := g.loadTerms(ctx, product)
	if err != nil {
		return pricing.Quote{}, nil, g.systemError("find rent terms", err, zap.String("product_id", productID))
	}
	if terms == nil {
		return pricing.Quote{}, domain.Invalid(domain.ReasonNotRentable, "Rent info missing"), nil
	}
	return pricing.CalculateFor(start, end, *terms), nil, nil
}

func formatCutoff(d time.Duration) string {
	return time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format("15:04")
}
