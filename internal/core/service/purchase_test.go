package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

func purchase(t *testing.T, h *harness, productID, buyer string) PurchaseResult {
	t.Helper()
	res, err := h.market.TryPurchase(context.Background(), PurchaseRequest{ProductID: productID, BuyerID: buyer})
	require.NoError(t, err)
	return res
}

func TestTryPurchase_Success(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForSale)

	res := purchase(t, h, p.ID, "buyer-1")
	require.True(t, res.OK(), "rejected: %v", res.Rejected)
	assert.Equal(t, "buyer-1", res.Purchase.BuyerID)
	assert.Equal(t, "Product has been successfully purchased", res.Message)

	assert.Equal(t, domain.StatusSold, h.status(t, p.ID))
	exists, err := h.db.Purchases().ExistsForProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	sold, _ := h.cache.IsSold(context.Background(), p.ID)
	assert.True(t, sold)
	assert.Len(t, h.events.ofType(domain.EventProductSold), 1)
}

func TestTryPurchase_AlreadySold(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForSale)
	require.True(t, purchase(t, h, p.ID, "buyer-1").OK())

	res := purchase(t, h, p.ID, "buyer-2")
	require.NotNil(t, res.Rejected)
	assert.True(t, res.Rejected.IsConflict())
	assert.Equal(t, domain.ReasonAlreadySold, res.Rejected.Reason)
	assert.Equal(t, msgAlreadySold, res.Rejected.Message)
}

func TestTryPurchase_AlreadySoldWithoutHint(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForSale)
	require.True(t, purchase(t, h, p.ID, "buyer-1").OK())

	// A fresh cache has no hint; the stored purchase still decides.
	h.cache.sold = map[string]bool{}
	res := purchase(t, h, p.ID, "buyer-2")
	require.NotNil(t, res.Rejected)
	assert.Equal(t, domain.ReasonAlreadySold, res.Rejected.Reason)
}

func TestTryPurchase_OngoingBooking(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForBoth)
	require.True(t, h.book(t, p.ID, at(6, 10, 0), at(6, 12, 0)).OK())

	res := purchase(t, h, p.ID, "buyer-1")
	require.NotNil(t, res.Rejected)
	assert.True(t, res.Rejected.IsConflict())
	assert.Equal(t, domain.ReasonOngoingBooking, res.Rejected.Reason)
	assert.Equal(t, domain.StatusRented, h.status(t, p.ID))
}

func TestTryPurchase_AfterRentalEnded(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForBoth)
	require.True(t, h.book(t, p.ID, at(6, 10, 0), at(6, 12, 0)).OK())

	h.clock.Set(at(6, 12, 0).Add(time.Second))
	res := purchase(t, h, p.ID, "buyer-1")
	require.True(t, res.OK(), "rejected: %v", res.Rejected)
	assert.Equal(t, domain.StatusSold, h.status(t, p.ID))

	// A sold product accepts no further bookings.
	h.clock.Set(at(7, 8, 0))
	booked := h.book(t, p.ID, at(8, 10, 0), at(8, 12, 0))
	require.NotNil(t, booked.Rejected)
	assert.Equal(t, domain.ReasonNotAvailable, booked.Rejected.Reason)
}

func TestTryPurchase_Ineligible(t *testing.T) {
	h := newHarness(t)

	rentOnly := h.listing(t, domain.ListedForRent)
	res := purchase(t, h, rentOnly.ID, "buyer-1")
	require.NotNil(t, res.Rejected)
	assert.True(t, res.Rejected.IsInvalid())
	assert.Equal(t, domain.ReasonNotForSale, res.Rejected.Reason)

	deleted := h.listing(t, domain.ListedForSale, withStatus(domain.StatusDeleted))
	res = purchase(t, h, deleted.ID, "buyer-1")
	require.NotNil(t, res.Rejected)
	assert.Equal(t, domain.ReasonNotAvailable, res.Rejected.Reason)

	res = purchase(t, h, "missing", "buyer-1")
	require.NotNil(t, res.Rejected)
	assert.Equal(t, domain.ReasonNotFound, res.Rejected.Reason)
}

func TestTryPurchase_SoldHintShortCircuits(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForSale)
	require.NoError(t, h.cache.MarkSold(context.Background(), p.ID))

	res := purchase(t, h, p.ID, "buyer-1")
	require.NotNil(t, res.Rejected)
	assert.Equal(t, domain.ReasonAlreadySold, res.Rejected.Reason)
	assert.Equal(t, domain.StatusAvailable, h.status(t, p.ID))
}

func TestTryPurchase_Concurrent(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForSale)

	var successCount, soldCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.market.TryPurchase(context.Background(), PurchaseRequest{ProductID: p.ID, BuyerID: "buyer"})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			switch {
			case res.OK():
				successCount.Add(1)
			case res.Rejected.Reason == domain.ReasonAlreadySold:
				soldCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(19), soldCount.Load())

	var rows int
	require.NoError(t, h.db.DB().QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM product_purchases WHERE product_id = ?", p.ID).Scan(&rows))
	assert.Equal(t, 1, rows)
	assert.Equal(t, domain.StatusSold, h.status(t, p.ID))
}

// interleavedDB runs beforeTx ahead of every transaction and lets
// purchaseErr replace the in-transaction purchase insert, reproducing
// what a concurrent writer would have done in between.
type interleavedDB struct {
	port.DatabaseRepository
	beforeTx    func(ctx context.Context)
	purchaseErr error
}

func (d *interleavedDB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Stores) error) error {
	if d.beforeTx != nil {
		d.beforeTx(ctx)
	}
	return d.DatabaseRepository.WithinTx(ctx, func(ctx context.Context, tx port.Stores) error {
		return fn(ctx, interleavedStores{Stores: tx, purchaseErr: d.purchaseErr})
	})
}

type interleavedStores struct {
	port.Stores
	purchaseErr error
}

func (s interleavedStores) Purchases() port.PurchaseStore {
	if s.purchaseErr == nil {
		return s.Stores.Purchases()
	}
	return rejectingPurchases{PurchaseStore: s.Stores.Purchases(), err: s.purchaseErr}
}

type rejectingPurchases struct {
	port.PurchaseStore
	err error
}

func (p rejectingPurchases) Insert(context.Context, domain.Purchase) error { return p.err }

func (h *harness) marketOver(t *testing.T, db port.DatabaseRepository) *Market {
	t.Helper()
	m, err := NewMarket(Deps{
		DB:     db,
		Cache:  h.cache,
		Events: h.events,
		Clock:  h.clock,
		Log:    zaptest.NewLogger(t),
	}, DefaultBookingPolicy())
	require.NoError(t, err)
	return m
}

func TestTryPurchase_DuplicatePurchaseInsert(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForSale)
	m := h.marketOver(t, &interleavedDB{DatabaseRepository: h.db, purchaseErr: port.ErrDuplicatePurchase})

	res, err := m.TryPurchase(context.Background(), PurchaseRequest{ProductID: p.ID, BuyerID: "buyer-1"})
	require.NoError(t, err)
	require.NotNil(t, res.Rejected)
	assert.True(t, res.Rejected.IsConflict())
	assert.Equal(t, domain.ReasonAlreadySold, res.Rejected.Reason)
	assert.Equal(t, msgAlreadySold, res.Rejected.Message)

	// The SOLD write was rolled back with the failed insert.
	assert.Equal(t, domain.StatusAvailable, h.status(t, p.ID))
	sold, _ := h.cache.IsSold(context.Background(), p.ID)
	assert.False(t, sold)
	assert.Empty(t, h.events.ofType(domain.EventProductSold))
}

func TestTryPurchase_DeletedBeforeCommit(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForSale)
	m := h.marketOver(t, &interleavedDB{
		DatabaseRepository: h.db,
		beforeTx: func(ctx context.Context) {
			deleted := p
			deleted.Status = domain.StatusDeleted
			require.NoError(t, h.db.Products().Save(ctx, &deleted, domain.StatusAvailable))
		},
	})

	res, err := m.TryPurchase(context.Background(), PurchaseRequest{ProductID: p.ID, BuyerID: "buyer-1"})
	require.NoError(t, err)
	require.NotNil(t, res.Rejected)
	assert.True(t, res.Rejected.IsInvalid())
	assert.Equal(t, domain.ReasonNotAvailable, res.Rejected.Reason)

	assert.Equal(t, domain.StatusDeleted, h.status(t, p.ID))
	exists, err := h.db.Purchases().ExistsForProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}
