package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

type PurchaseRequest struct {
	ProductID string
	BuyerID   string
}

type PurchaseResult struct {
	Purchase *domain.Purchase
	Message  string
	Rejected *domain.Rejection
}

func (r PurchaseResult) OK() bool { return r.Rejected == nil && r.Purchase != nil }

const (
	msgAlreadySold    = "Product has already been sold."
	msgOngoingBooking = "Product has an ongoing rent booking."
)

// PurchaseFinalizer sells a product at most once. The purchase table's
// uniqueness guarantee is what makes that hold under concurrent buyers.
type PurchaseFinalizer struct {
	Deps
	tracker *AvailabilityTracker
}

func NewPurchaseFinalizer(deps Deps, tracker *AvailabilityTracker) *PurchaseFinalizer {
	return &PurchaseFinalizer{Deps: deps, tracker: tracker}
}

func (f *PurchaseFinalizer) TryPurchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	log := f.logger().With(zap.String("product_id", req.ProductID), zap.String("buyer_id", req.BuyerID))
	log.Debug("attempting to purchase product")

	if f.Cache != nil {
		sold, err := f.Cache.IsSold(ctx, req.ProductID)
		if err != nil {
			log.Warn("sold hint lookup failed", zap.Error(err))
		} else if sold {
			log.Warn("product is already sold (cached)")
			return alreadySold(), nil
		}
	}

	exists, err := f.DB.Purchases().ExistsForProduct(ctx, req.ProductID)
	if err != nil {
		return PurchaseResult{}, f.systemError("check existing purchase", err, zap.String("product_id", req.ProductID))
	}
	if exists {
		log.Warn("product is already sold")
		return alreadySold(), nil
	}

	product, err := f.DB.Products().FindByID(ctx, req.ProductID)
	if err != nil {
		return PurchaseResult{}, f.systemError("find product", err, zap.String("product_id", req.ProductID))
	}
	if r := saleEligibility(product); r != nil {
		log.Warn("purchase rejected", zap.String("reason", string(r.Reason)))
		return PurchaseResult{Rejected: r}, nil
	}

	availability, err := f.tracker.Resolve(ctx, product)
	if err != nil {
		return PurchaseResult{}, err
	}
	switch availability.Status {
	case domain.StatusRented:
		log.Warn("product has an ongoing rent booking")
		return PurchaseResult{Rejected: domain.Conflict(domain.ReasonOngoingBooking, msgOngoingBooking)}, nil
	case domain.StatusSold:
		return alreadySold(), nil
	case domain.StatusDeleted:
		return PurchaseResult{Rejected: domain.Invalid(domain.ReasonNotAvailable, "Product not available")}, nil
	case domain.StatusAvailable:
	}

	now := f.Clock.Now()
	purchase := domain.Purchase{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		BuyerID:     req.BuyerID,
		PurchasedAt: now,
	}

	err = f.DB.WithinTx(ctx, func(ctx context.Context, tx port.Stores) error {
		next := *product
		from, err := next.MoveTo(domain.StatusSold, now)
		if err != nil {
			return err
		}
		if err := tx.Products().Save(ctx, &next, from...); err != nil {
			return err
		}
		if err := ensureNotRunning(ctx, tx, product.ID, now, msgOngoingBooking); err != nil {
			return err
		}
		return tx.Purchases().Insert(ctx, purchase)
	})
	if rj, ok := asRejection(err); ok {
		log.Warn("purchase rejected", zap.String("reason", string(rj.Reason)))
		return PurchaseResult{Rejected: rj}, nil
	}
	switch {
	case errors.Is(err, port.ErrDuplicatePurchase), errors.Is(err, port.ErrStatusChanged):
		// A concurrent buyer committed first, or the product was deleted
		// under us; either way this sale cannot happen.
		log.Warn("duplicate purchase attempt", zap.Error(err))
		return f.afterLostRace(ctx, req.ProductID)
	case err != nil:
		return PurchaseResult{}, f.systemError("purchase product", err,
			zap.String("product_id", req.ProductID), zap.String("buyer_id", req.BuyerID))
	}

	if f.Cache != nil {
		if err := f.Cache.MarkSold(ctx, product.ID); err != nil {
			log.Warn("failed to record sold hint", zap.Error(err))
		}
	}
	log.Info("recorded purchase", zap.String("purchase_id", purchase.ID))
	f.publish(ctx, domain.Event{
		Type:      domain.EventProductSold,
		ProductID: product.ID,
		ActorID:   req.BuyerID,
		Data:      map[string]any{"purchase_id": purchase.ID},
	})

	return PurchaseResult{Purchase: &purchase, Message: "Product has been successfully purchased"}, nil
}

// afterLostRace decides between ALREADY_SOLD and NOT_AVAILABLE once the
// status write or purchase insert lost to another transaction.
func (f *PurchaseFinalizer) afterLostRace(ctx context.Context, productID string) (PurchaseResult, error) {
	p, err := f.DB.Products().FindByID(ctx, productID)
	if err != nil {
		return PurchaseResult{}, f.systemError("find product", err, zap.String("product_id", productID))
	}
	if p != nil && p.Status == domain.StatusDeleted {
		return PurchaseResult{Rejected: domain.Invalid(domain.ReasonNotAvailable, "Product not available")}, nil
	}
	return alreadySold(), nil
}

func saleEligibility(p *domain.Product) *domain.Rejection {
	if p == nil {
		return domain.Invalid(domain.ReasonNotFound, "Product not found")
	}
	switch p.Status {
	case domain.StatusSold:
		return domain.Conflict(domain.ReasonAlreadySold, msgAlreadySold)
	case domain.StatusDeleted:
		return domain.Invalid(domain.ReasonNotAvailable, "Product not available")
	case domain.StatusAvailable, domain.StatusRented:
	}
	if !p.ListedFor.AllowsSale() {
		return domain.Invalid(domain.ReasonNotForSale, "Product is not listed for sale")
	}
	return nil
}

func alreadySold() PurchaseResult {
	return PurchaseResult{Rejected: domain.Conflict(domain.ReasonAlreadySold, msgAlreadySold)}
}
