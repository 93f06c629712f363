package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

// DefaultSameDayCutoff is the latest time of day at which a rental starting
// the same day may still be booked.
const DefaultSameDayCutoff = 10 * time.Hour

// Deps are the collaborators shared by every engine component. Cache and
// Events are optional.
type Deps struct {
	DB     port.DatabaseRepository
	Cache  port.CacheRepository
	Events port.EventPublisher
	Clock  port.Clock
	Log    *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

func (d Deps) publish(ctx context.Context, ev domain.Event) {
	if d.Events == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = d.Clock.Now()
	}
	if err := d.Events.Publish(ctx, ev); err != nil {
		d.logger().Warn("event publish failed",
			zap.String("event_type", string(ev.Type)),
			zap.String("product_id", ev.ProductID),
			zap.Error(err))
	}
}

// systemError logs err with full context and returns the opaque error that
// callers see.
func (d Deps) systemError(op string, err error, fields ...zap.Field) error {
	d.logger().Error(op+" failed", append(fields, zap.Error(err))...)
	return &domain.SystemError{Op: op, Err: err}
}

// rejection carries an expected outcome out of a WithinTx callback so the
// transaction rolls back without being treated as a failure.
type rejection struct {
	r *domain.Rejection
}

func (e rejection) Error() string { return e.r.Error() }

func reject(r *domain.Rejection) error { return rejection{r: r} }

func asRejection(err error) (*domain.Rejection, bool) {
	var rj rejection
	if errors.As(err, &rj) {
		return rj.r, true
	}
	return nil, false
}

// ensureNotRunning fails with ONGOING_BOOKING when the product's latest
// booking has not ended. Called inside transactions after the product row
// has been written, so a booking committed concurrently is visible.
func ensureNotRunning(ctx context.Context, tx port.Stores, productID string, now time.Time, message string) error {
	latest, err := tx.Bookings().FindLatestByProduct(ctx, productID)
	if err != nil {
		return err
	}
	if latest != nil && latest.Ongoing(now) {
		return reject(domain.Conflict(domain.ReasonOngoingBooking, message))
	}
	return nil
}
