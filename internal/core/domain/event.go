package domain

import "time"

type EventType string

const (
	EventBookingCreated        EventType = "booking.created"
	EventProductSold           EventType = "product.sold"
	EventProductDeleted        EventType = "product.deleted"
	EventAvailabilityCorrected EventType = "availability.corrected"
)

// Event is published after the transaction that produced it has committed.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	ProductID  string         `json:"product_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}
