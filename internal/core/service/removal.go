package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

type DeleteRequest struct {
	ProductID string
	CallerID  string
}

type DeleteResult struct {
	Message  string
	Rejected *domain.Rejection
}

func (r DeleteResult) OK() bool { return r.Rejected == nil }

const msgDeleteOngoing = "Cannot delete product with ongoing bookings"

// ProductRemover soft-deletes products. Only the owner may delete, and never
// while a rental is still running.
type ProductRemover struct {
	Deps
}

func NewProductRemover(deps Deps) *ProductRemover {
	return &ProductRemover{Deps: deps}
}

func (r *ProductRemover) TryDelete(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	log := r.logger().With(zap.String("product_id", req.ProductID), zap.String("caller_id", req.CallerID))
	log.Info("attempting to soft-delete product")

	product, err := r.DB.Products().FindByID(ctx, req.ProductID)
	if err != nil {
		return DeleteResult{}, r.systemError("find product", err, zap.String("product_id", req.ProductID))
	}
	if product == nil {
		log.Warn("product not found")
		return DeleteResult{Rejected: domain.Invalid(domain.ReasonNotFound, "Product not found with ID: "+req.ProductID)}, nil
	}
	if !product.OwnedBy(req.CallerID) {
		log.Warn("caller is not authorized to delete product")
		return DeleteResult{Rejected: domain.Invalid(domain.ReasonNotOwner, "You are not authorized to delete this product.")}, nil
	}
	if product.Status.Terminal() {
		return DeleteResult{Rejected: domain.Invalid(domain.ReasonNotAvailable, "Product is already "+string(product.Status))}, nil
	}

	now := r.Clock.Now()
	bookings, err := r.DB.Bookings().FindByProductOrderByEndDesc(ctx, product.ID)
	if err != nil {
		return DeleteResult{}, r.systemError("list bookings", err, zap.String("product_id", req.ProductID))
	}
	if len(bookings) > 0 && bookings[0].Ongoing(now) {
		log.Warn("product has ongoing booking", zap.String("rent_end", domain.FormatDateTime(bookings[0].End)))
		return DeleteResult{Rejected: domain.Conflict(domain.ReasonOngoingBooking, msgDeleteOngoing)}, nil
	}

	err = r.DB.WithinTx(ctx, func(ctx context.Context, tx port.Stores) error {
		next := *product
		from, err := next.MoveTo(domain.StatusDeleted, now)
		if err != nil {
			return err
		}
		if err := tx.Products().Save(ctx, &next, from...); err != nil {
			return err
		}
		return ensureNotRunning(ctx, tx, product.ID, now, msgDeleteOngoing)
	})
	if rj, ok := asRejection(err); ok {
		log.Warn("delete rejected", zap.String("reason", string(rj.Reason)))
		return DeleteResult{Rejected: rj}, nil
	}
	switch {
	case errors.Is(err, port.ErrStatusChanged):
		log.Warn("product changed while deleting", zap.Error(err))
		return DeleteResult{Rejected: domain.Invalid(domain.ReasonNotAvailable, "Product not available")}, nil
	case err != nil:
		return DeleteResult{}, r.systemError("delete product", err, zap.String("product_id", req.ProductID))
	}

	log.Info("soft-deleted product")
	r.publish(ctx, domain.Event{Type: domain.EventProductDeleted, ProductID: product.ID, ActorID: req.CallerID})
	return DeleteResult{Message: "Product soft-deleted (status set to DELETED) for ID: " + product.ID}, nil
}
