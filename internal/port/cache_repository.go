package port

import "context"

// CacheRepository holds hints that let hot paths skip the database. Nothing
// read from it is trusted for correctness.
type CacheRepository interface {
	// MarkSold records that a product has been sold.
	MarkSold(ctx context.Context, productID string) error

	// IsSold reports whether MarkSold has been recorded for the product.
	IsSold(ctx context.Context, productID string) (bool, error)

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key so the request can be retried.
	ReleaseIdempotency(ctx context.Context, key string) error
}
