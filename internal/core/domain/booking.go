package domain

import "time"

type BookingStatus string

const BookingBooked BookingStatus = "BOOKED"

// Booking is written once by the booking guard and never updated. Whether it
// is still running is derived from End at read time.
type Booking struct {
	ID          string
	ProductID   string
	RentTermsID string
	RenterID    string
	Start       time.Time
	End         time.Time
	Units       int64
	Unit        RentUnit
	Total       float64
	Status      BookingStatus
	CreatedAt   time.Time
}

// Ongoing reports whether the booking has not ended yet at now.
func (b Booking) Ongoing(now time.Time) bool {
	return b.End.After(now)
}

// Overlaps treats both intervals as closed, so bookings that only touch at an
// endpoint overlap.
func (b Booking) Overlaps(start, end time.Time) bool {
	return !b.Start.After(end) && !start.After(b.End)
}
