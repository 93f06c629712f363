package domain

import "time"

type Purchase struct {
	ID          string
	ProductID   string
	BuyerID     string
	PurchasedAt time.Time
}
