package domain

import (
	"fmt"
	"time"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeInvalid  Outcome = "INVALID"
	OutcomeConflict Outcome = "CONFLICT"
)

type Reason string

const (
	ReasonInvalidInterval  Reason = "INVALID_INTERVAL"
	ReasonCutoffViolation  Reason = "CUTOFF_VIOLATION"
	ReasonNotFound         Reason = "NOT_FOUND"
	ReasonNotAvailable     Reason = "NOT_AVAILABLE"
	ReasonNotRentable      Reason = "NOT_RENTABLE"
	ReasonNotForSale       Reason = "NOT_FOR_SALE"
	ReasonNotOwner         Reason = "NOT_OWNER"
	ReasonOverlap          Reason = "OVERLAP"
	ReasonAlreadySold      Reason = "ALREADY_SOLD"
	ReasonOngoingBooking   Reason = "ONGOING_BOOKING"
	ReasonDuplicateRequest Reason = "DUPLICATE_REQUEST"
)

// Rejection is an expected business outcome: the caller sent something
// invalid, or the product's state does not allow the operation. It is not a
// system failure.
type Rejection struct {
	Outcome Outcome
	Reason  Reason
	Message string
}

func Invalid(reason Reason, message string) *Rejection {
	return &Rejection{Outcome: OutcomeInvalid, Reason: reason, Message: message}
}

func Conflict(reason Reason, message string) *Rejection {
	return &Rejection{Outcome: OutcomeConflict, Reason: reason, Message: message}
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s (%s): %s", r.Outcome, r.Reason, r.Message)
}

func (r *Rejection) IsConflict() bool { return r != nil && r.Outcome == OutcomeConflict }

func (r *Rejection) IsInvalid() bool { return r != nil && r.Outcome == OutcomeInvalid }

// SystemError wraps an unexpected storage or runtime failure. Transports
// show callers a generic message; Err is for logs only.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// Availability is the resolved status of a product. RentStart and RentEnd
// are set only while RENTED.
type Availability struct {
	Status    AvailabilityStatus
	RentStart *time.Time
	RentEnd   *time.Time
}
