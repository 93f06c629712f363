package handler

import (
	"context"
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
	"github.com/rl1809/rent-market/internal/core/service"
)

const (
	testSecret = "test-secret"
	testIssuer = "rent-market"
)

// Tuesday 08:00, before the same-day cutoff.
var testNow = time.Date(2030, 3, 5, 8, 0, 0, 0, time.UTC)

type memoryCache struct {
	mu   sync.Mutex
	sold map[string]bool
	keys map[string]bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{sold: map[string]bool{}, keys: map[string]bool{}}
}

func (m *memoryCache) MarkSold(_ context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sold[productID] = true
	return nil
}

func (m *memoryCache) IsSold(_ context.Context, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sold[productID], nil
}

func (m *memoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryCache) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *memoryCache) claimed(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key]
}

type fixture struct {
	db     *storage.SQLAdapter
	clock  *clock.Fixed
	cache  *memoryCache
	market *service.Market
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.DriverSQLite,
		filepath.Join(t.TempDir(), "market.db"), storage.PoolConfig{}, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{db: db, clock: clock.NewFixed(testNow), cache: newMemoryCache()}
	f.market, err = service.NewMarket(service.Deps{
		DB:    db,
		Cache: f.cache,
		Clock: f.clock,
		Log:   zaptest.NewLogger(t),
	}, service.DefaultBookingPolicy())
	require.NoError(t, err)
	return f
}

// listing stores a product owned by owner-1 with 10.00 per hour terms when
// kind allows renting.
func (f *fixture) listing(t *testing.T, kind domain.ListingKind) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:           uuid.NewString(),
		OwnerID:      "owner-1",
		ListedFor:    kind,
		SellingPrice: 250,
		Status:       domain.StatusAvailable,
		CreatedAt:    testNow.Add(-time.Hour),
		UpdatedAt:    testNow.Add(-time.Hour),
	}
	var terms *domain.RentTerms
	if kind.AllowsRent() {
		terms = &domain.RentTerms{ID: uuid.NewString(), Price: 10, Unit: domain.RentPerHour}
	}
	require.NoError(t, f.db.InsertListing(context.Background(), p, terms))
	return p
}
