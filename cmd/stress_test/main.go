package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/rent-market/internal/adapter/clock"
	"github.com/rl1809/rent-market/internal/adapter/storage"
	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/core/service"
)

type options struct {
	Driver        string `env:"DB_DRIVER" envDefault:"sqlite"`
	DSN           string `env:"DB_DSN"`
	TotalRequests int    `env:"STRESS_REQUESTS" envDefault:"50"`
}

type tally struct {
	success  atomic.Int32
	rejected atomic.Int32
	failed   atomic.Int32
}

func (t *tally) record(rejected *domain.Rejection, err error) {
	switch {
	case err != nil:
		t.failed.Add(1)
	case rejected != nil:
		t.rejected.Add(1)
	default:
		t.success.Add(1)
	}
}

func main() {
	opts, err := env.ParseAs[options]()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if opts.DSN == "" {
		opts.DSN = filepath.Join(os.TempDir(), "rent-market-stress-"+uuid.NewString()+".db")
		defer os.Remove(opts.DSN)
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, opts.Driver, opts.DSN, storage.PoolConfig{MaxOpenConns: 50, MaxIdleConns: 25}, time.Local)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	market, err := service.NewMarket(service.Deps{
		DB:    db,
		Clock: clock.NewSystem(time.Local),
		Log:   zap.NewNop(),
	}, service.DefaultBookingPolicy())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tomorrow := time.Now().Truncate(time.Hour).Add(24 * time.Hour)
	forSale := seed(ctx, db, domain.ListedForSale)
	forRent := seed(ctx, db, domain.ListedForRent)
	spread := seed(ctx, db, domain.ListedForRent)

	var purchases, overlapping, disjoint tally
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < opts.TotalRequests; i++ {
		wg.Add(3)
		go func(user string) {
			defer wg.Done()
			res, err := market.TryPurchase(ctx, service.PurchaseRequest{ProductID: forSale, BuyerID: user})
			purchases.record(res.Rejected, err)
		}(fmt.Sprintf("user-%d", i))

		go func(user string) {
			defer wg.Done()
			res, err := market.TryBook(ctx, service.BookingRequest{
				ProductID: forRent, RenterID: user, Start: tomorrow, End: tomorrow.Add(2 * time.Hour),
			})
			overlapping.record(res.Rejected, err)
		}(fmt.Sprintf("user-%d", i))

		// Each renter gets a distinct hour, one minute short of the next.
		go func(i int) {
			defer wg.Done()
			from := tomorrow.Add(time.Duration(i) * time.Hour)
			res, err := market.TryBook(ctx, service.BookingRequest{
				ProductID: spread, RenterID: fmt.Sprintf("user-%d", i), Start: from, End: from.Add(59 * time.Minute),
			})
			disjoint.record(res.Rejected, err)
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Driver:           %s\n", db.Driver())
	fmt.Printf("Requests/group:   %d\n", opts.TotalRequests)
	report("Purchases", &purchases)
	report("Overlapping", &overlapping)
	report("Disjoint", &disjoint)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	n := int32(opts.TotalRequests)
	check("exactly one purchase succeeded", purchases.success.Load() == 1 && purchases.rejected.Load() == n-1)
	check("exactly one overlapping booking succeeded", overlapping.success.Load() == 1 && overlapping.rejected.Load() == n-1)
	check("every disjoint booking succeeded", disjoint.success.Load() == n)

	bookings, err := db.Bookings().FindByProductOrderByEndDesc(ctx, forRent)
	if err != nil {
		fmt.Printf("FAIL: list bookings: %v\n", err)
		return
	}
	check("one booking stored for the contested product", len(bookings) == 1)
}

func seed(ctx context.Context, db *storage.SQLAdapter, kind domain.ListingKind) string {
	now := time.Now()
	p := domain.Product{
		ID:           uuid.NewString(),
		OwnerID:      "stress-owner",
		ListedFor:    kind,
		SellingPrice: 100,
		Status:       domain.StatusAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var terms *domain.RentTerms
	if kind.AllowsRent() {
		terms = &domain.RentTerms{ID: uuid.NewString(), Price: 5, Unit: domain.RentPerHour}
	}
	if err := db.InsertListing(ctx, p, terms); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed product: %v\n", err)
		os.Exit(1)
	}
	return p.ID
}

func report(name string, t *tally) {
	fmt.Printf("%-17s success=%d rejected=%d errors=%d\n", name+":", t.success.Load(), t.rejected.Load(), t.failed.Load())
}

func check(what string, ok bool) {
	if ok {
		fmt.Printf("PASS: %s\n", what)
	} else {
		fmt.Printf("FAIL: %s\n", what)
	}
}
