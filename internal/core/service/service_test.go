package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/rent-market/internal/adapter/clock"
	"github.com/rl1809/rent-market/internal/adapter/storage"
	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

// Mock CacheRepository
type mockCacheRepo struct {
	sold           map[string]bool
	idempotencySet map[string]bool
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		sold:           make(map[string]bool),
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCacheRepo) MarkSold(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sold[productID] = true
	return nil
}

func (m *mockCacheRepo) IsSold(ctx context.Context, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sold[productID], nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(typ domain.EventType) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Tuesday 08:00, before the same-day cutoff.
var testNow = time.Date(2030, 3, 5, 8, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2030, 3, day, hour, minute, 0, 0, time.UTC)
}

type harness struct {
	db     *storage.SQLAdapter
	clock  *clock.Fixed
	cache  *mockCacheRepo
	events *recordingPublisher
	market *Market
}

func newHarness(t testing.TB) *harness {
	return newHarnessWithPolicy(t, DefaultBookingPolicy())
}

func newHarnessWithPolicy(t testing.TB, policy BookingPolicy) *harness {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.DriverSQLite,
		filepath.Join(t.TempDir(), "market.db"), storage.PoolConfig{}, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		db:     db,
		clock:  clock.NewFixed(testNow),
		cache:  newMockCacheRepo(),
		events: &recordingPublisher{},
	}
	h.market, err = NewMarket(Deps{
		DB:     db,
		Cache:  h.cache,
		Events: h.events,
		Clock:  h.clock,
		Log:    zaptest.NewLogger(t),
	}, policy)
	require.NoError(t, err)
	return h
}

type listingOption func(p *domain.Product, terms **domain.RentTerms)

func withStatus(st domain.AvailabilityStatus) listingOption {
	return func(p *domain.Product, _ **domain.RentTerms) { p.Status = st }
}

func withOwner(owner string) listingOption {
	return func(p *domain.Product, _ **domain.RentTerms) { p.OwnerID = owner }
}

func withTerms(price float64, unit domain.RentUnit) listingOption {
	return func(_ *domain.Product, terms **domain.RentTerms) {
		*terms = &domain.RentTerms{ID: uuid.NewString(), Price: price, Unit: unit}
	}
}

func (h *harness) listing(t testing.TB, kind domain.ListingKind, opts ...listingOption) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:           uuid.NewString(),
		OwnerID:      "owner-1",
		ListedFor:    kind,
		SellingPrice: 500,
		Status:       domain.StatusAvailable,
		CreatedAt:    testNow.Add(-24 * time.Hour),
		UpdatedAt:    testNow.Add(-24 * time.Hour),
	}
	var terms *domain.RentTerms
	if kind.AllowsRent() {
		terms = &domain.RentTerms{ID: uuid.NewString(), Price: 10, Unit: domain.RentPerHour}
	}
	for _, opt := range opts {
		opt(&p, &terms)
	}
	require.NoError(t, h.db.InsertListing(context.Background(), p, terms))
	if terms != nil {
		p.RentTermsID = terms.ID
	}
	return p
}

func (h *harness) status(t testing.TB, productID string) domain.AvailabilityStatus {
	t.Helper()
	p, err := h.db.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Status
}

func (h *harness) book(t testing.TB, productID string, start, end time.Time) BookingResult {
	t.Helper()
	res, err := h.market.TryBook(context.Background(), BookingRequest{
		ProductID: productID,
		RenterID:  "renter-1",
		Start:     start,
		End:       end,
	})
	require.NoError(t, err)
	return res
}

// failingDB fails every call, standing in for a database outage.
type failingDB struct{ err error }

func (f failingDB) Products() port.ProductStore    { return failingProducts(f) }
func (f failingDB) RentTerms() port.RentTermsStore { return failingRentTerms(f) }
func (f failingDB) Bookings() port.BookingStore    { return failingBookings(f) }
func (f failingDB) Purchases() port.PurchaseStore  { return failingPurchases(f) }

func (f failingDB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Stores) error) error {
	return f.err
}

type failingProducts struct{ err error }

func (f failingProducts) FindByID(context.Context, string) (*domain.Product, error) {
	return nil, f.err
}

func (f failingProducts) FindEligible(context.Context, string) (*domain.Product, error) {
	return nil, f.err
}

func (f failingProducts) Save(context.Context, *domain.Product, ...domain.AvailabilityStatus) error {
	return f.err
}

type failingRentTerms struct{ err error }

func (f failingRentTerms) FindByID(context.Context, string) (*domain.RentTerms, error) {
	return nil, f.err
}

type failingBookings struct{ err error }

func (f failingBookings) FindLatestByProduct(context.Context, string) (*domain.Booking, error) {
	return nil, f.err
}

func (f failingBookings) FindByProductOrderByEndDesc(context.Context, string) ([]domain.Booking, error) {
	return nil, f.err
}

func (f failingBookings) ExistsOverlapping(context.Context, string, time.Time, time.Time) (bool, error) {
	return false, f.err
}

func (f failingBookings) Insert(context.Context, domain.Booking) error { return f.err }

type failingPurchases struct{ err error }

func (f failingPurchases) ExistsForProduct(context.Context, string) (bool, error) {
	return false, f.err
}

func (f failingPurchases) Insert(context.Context, domain.Purchase) error { return f.err }

func newFailingMarket(t testing.TB, err error) *Market {
	t.Helper()
	m, mErr := NewMarket(Deps{
		DB:    failingDB{err: err},
		Clock: clock.NewFixed(testNow),
		Log:   zaptest.NewLogger(t),
	}, DefaultBookingPolicy())
	require.NoError(t, mErr)
	return m
}

func TestSystemErrors(t *testing.T) {
	dbErr := errors.New("connection refused")
	m := newFailingMarket(t, dbErr)
	ctx := context.Background()

	var sysErr *domain.SystemError

	_, err := m.Lookup(ctx, "p-1")
	require.ErrorAs(t, err, &sysErr)
	require.ErrorIs(t, err, dbErr)

	_, err = m.TryBook(ctx, BookingRequest{ProductID: "p-1", RenterID: "r", Start: at(6, 10, 0), End: at(6, 12, 0)})
	require.ErrorAs(t, err, &sysErr)
	require.Equal(t, "find eligible product", sysErr.Op)

	_, err = m.TryPurchase(ctx, PurchaseRequest{ProductID: "p-1", BuyerID: "b"})
	require.ErrorAs(t, err, &sysErr)

	_, err = m.TryDelete(ctx, DeleteRequest{ProductID: "p-1", CallerID: "owner-1"})
	require.ErrorAs(t, err, &sysErr)
}

func TestNewMarket_RequiresCollaborators(t *testing.T) {
	_, err := NewMarket(Deps{Clock: clock.NewFixed(testNow)}, DefaultBookingPolicy())
	require.Error(t, err)

	_, err = NewMarket(Deps{DB: failingDB{err: errors.New("down")}}, DefaultBookingPolicy())
	require.Error(t, err)
}
