package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/rent-market/internal/core/domain"
)

func TestTryBook_Success(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForRent)

	res := h.book(t, p.ID, at(6, 10, 0), at(6, 12, 30))
	require.True(t, res.OK(), "rejected: %v", res.Rejected)
	assert.Equal(t, int64(3), res.Booking.Units)
	assert.Equal(t, 30.0, res.Booking.Total)
	assert.Equal(t, domain.RentPerHour, res.Booking.Unit)
	assert.Equal(t, "Booked 3 hour(s); total rent: 30.00", res.Message)

	assert.Equal(t, domain.StatusRented, h.status(t, p.ID))
	require.Len(t, h.events.ofType(domain.EventBookingCreated), 1)
	assert.Equal(t, res.Booking.ID, h.events.ofType(domain.EventBookingCreated)[0].Data["booking_id"])
}

func TestTryBook_DailyRate(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForBoth, withTerms(20, domain.RentPerDay))

	res := h.book(t, p.ID, at(6, 10, 0), at(7, 11, 0))
	require.True(t, res.OK())
	assert.Equal(t, int64(2), res.Booking.Units)
	assert.Equal(t, 40.0, res.Booking.Total)
	assert.Equal(t, "Booked 2 day(s); total rent: 40.00", res.Message)
}

func TestTryBook_IntervalRules(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		start  time.Time
		end    time.Time
		reason domain.Reason
	}{
		{"end before start", testNow, at(6, 12, 0), at(6, 10, 0), domain.ReasonInvalidInterval},
		{"empty interval", testNow, at(6, 12, 0), at(6, 12, 0), domain.ReasonInvalidInterval},
		{"start in the past", testNow, at(4, 10, 0), at(6, 10, 0), domain.ReasonInvalidInterval},
		{"same day after cutoff", at(5, 10, 1), at(5, 15, 0), at(5, 17, 0), domain.ReasonCutoffViolation},
		{"past same-day start after cutoff", at(5, 10, 1), at(5, 9, 30), at(5, 11, 30), domain.ReasonCutoffViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			p := h.listing(t, domain.ListedForRent)
			h.clock.Set(tt.now)

			res := h.book(t, p.ID, tt.start, tt.end)
			require.NotNil(t, res.Rejected)
			assert.True(t, res.Rejected.IsInvalid())
			assert.Equal(t, tt.reason, res.Rejected.Reason)
			assert.Equal(t, domain.StatusAvailable, h.status(t, p.ID))
		})
	}
}

func TestTryBook_CutoffBoundary(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForRent)

	// Exactly at the cutoff is still allowed.
	h.clock.Set(at(5, 10, 0))
	res := h.book(t, p.ID, at(5, 13, 0), at(5, 14, 0))
	require.True(t, res.OK(), "rejected: %v", res.Rejected)

	// Later days are unaffected by the cutoff.
	h.clock.Set(at(5, 18, 0))
	res = h.book(t, p.ID, at(6, 13, 0), at(6, 14, 0))
	require.True(t, res.OK(), "rejected: %v", res.Rejected)
}

func TestTryBook_NotAvailable(t *testing.T) {
	h := newHarness(t)
	for _, st := range []domain.AvailabilityStatus{domain.StatusSold, domain.StatusDeleted} {
		p := h.listing(t, domain.ListedForBoth, withStatus(st))

		res := h.book(t, p.ID, at(6, 10, 0), at(6, 12, 0))
		require.NotNil(t, res.Rejected)
		assert.Equal(t, domain.ReasonNotAvailable, res.Rejected.Reason)
	}

	res := h.book(t, "missing", at(6, 10, 0), at(6, 12, 0))
	require.NotNil(t, res.Rejected)
	assert.Equal(t, domain.ReasonNotAvailable, res.Rejected.Reason)
}

func TestTryBook_NotRentable(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForSale)

	res := h.book(t, p.ID, at(6, 10, 0), at(6, 12, 0))
	require.NotNil(t, res.Rejected)
	assert.True(t, res.Rejected.IsInvalid())
	assert.Equal(t, domain.ReasonNotRentable, res.Rejected.Reason)
}

func TestTryBook_Overlap(t *testing.T) {
	for _, precheck := range []bool{true, false} {
		h := newHarnessWithPolicy(t, BookingPolicy{SameDayCutoff: DefaultSameDayCutoff, Precheck: precheck})
		p := h.listing(t, domain.ListedForRent)
		first := h.book(t, p.ID, at(6, 10, 0), at(6, 12, 0))
		require.True(t, first.OK())

		for _, iv := range [][2]time.Time{
			{at(6, 11, 0), at(6, 13, 0)}, // partial
			{at(6, 9, 0), at(6, 13, 0)},  // containing
			{at(6, 12, 0), at(6, 14, 0)}, // touching end
			{at(6, 8, 0), at(6, 10, 0)},  // touching start
		} {
			require.True(t, first.Booking.Overlaps(iv[0], iv[1]), "interval=%v", iv)
			res := h.book(t, p.ID, iv[0], iv[1])
			require.NotNil(t, res.Rejected, "precheck=%v interval=%v", precheck, iv)
			assert.True(t, res.Rejected.IsConflict())
			assert.Equal(t, domain.ReasonOverlap, res.Rejected.Reason)
			assert.Equal(t, msgAlreadyBooked, res.Rejected.Message)
		}

		require.False(t, first.Booking.Overlaps(at(6, 12, 1), at(6, 14, 0)))
		res := h.book(t, p.ID, at(6, 12, 1), at(6, 14, 0))
		assert.True(t, res.OK(), "precheck=%v rejected: %v", precheck, res.Rejected)
	}
}

func TestTryBook_Concurrent(t *testing.T) {
	h := newHarnessWithPolicy(t, BookingPolicy{SameDayCutoff: DefaultSameDayCutoff})
	p := h.listing(t, domain.ListedForRent)

	var successCount, conflictCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(6, 10, i)
			res, err := h.market.TryBook(context.Background(), BookingRequest{
				ProductID: p.ID,
				RenterID:  "renter",
				Start:     start,
				End:       start.Add(time.Hour),
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if res.OK() {
				successCount.Add(1)
			} else if res.Rejected.IsConflict() {
				conflictCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(19), conflictCount.Load())

	bookings, err := h.db.Bookings().FindByProductOrderByEndDesc(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestQuote(t *testing.T) {
	h := newHarness(t)
	p := h.listing(t, domain.ListedForRent, withTerms(12.5, domain.RentPerHour))

	q, rj, err := h.market.Quote(context.Background(), p.ID, at(6, 10, 0), at(6, 11, 1))
	require.NoError(t, err)
	require.Nil(t, rj)
	assert.Equal(t, int64(2), q.Units)
	assert.Equal(t, 25.0, q.Total)

	_, rj, err = h.market.Quote(context.Background(), p.ID, at(6, 11, 0), at(6, 10, 0))
	require.NoError(t, err)
	require.NotNil(t, rj)
	assert.Equal(t, domain.ReasonInvalidInterval, rj.Reason)

	// Quoting never books.
	assert.Equal(t, domain.StatusAvailable, h.status(t, p.ID))
}
