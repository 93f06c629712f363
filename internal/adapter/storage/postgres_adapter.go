package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

const (
	pgExclusionViolation pq.ErrorCode = "23P01"
	pgUniqueViolation    pq.ErrorCode = "23505"
)

// postgresDialect relies on an exclusion constraint over a generated closed
// range, so overlapping inserts fail in the database itself.
type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

func (postgresDialect) rebind(query string) string {
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) schema() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`CREATE TABLE IF NOT EXISTS rent_terms (
			id         VARCHAR(36) PRIMARY KEY,
			rent_price NUMERIC(12, 2) NOT NULL,
			rent_unit  VARCHAR(8) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id                  VARCHAR(36) PRIMARY KEY,
			owner_id            VARCHAR(64) NOT NULL,
			listed_for          VARCHAR(8) NOT NULL,
			selling_price       NUMERIC(12, 2) NOT NULL DEFAULT 0,
			rent_terms_id       VARCHAR(36) REFERENCES rent_terms (id),
			availability_status VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
			created_at          TIMESTAMP NOT NULL,
			updated_at          TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rent_bookings (
			id              VARCHAR(36) PRIMARY KEY,
			product_id      VARCHAR(36) NOT NULL REFERENCES products (id),
			rent_terms_id   VARCHAR(36) NOT NULL REFERENCES rent_terms (id),
			renter_id       VARCHAR(64) NOT NULL,
			rent_start_time TIMESTAMP NOT NULL,
			rent_end_time   TIMESTAMP NOT NULL,
			units           BIGINT NOT NULL,
			rent_unit       VARCHAR(8) NOT NULL,
			total_rent      NUMERIC(14, 2) NOT NULL,
			status          VARCHAR(16) NOT NULL,
			created_at      TIMESTAMP NOT NULL,
			period          TSRANGE GENERATED ALWAYS AS (tsrange(rent_start_time, rent_end_time, '[]')) STORED,
			CONSTRAINT no_overlapping_bookings EXCLUDE USING GIST (product_id WITH =, period WITH &&)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rent_bookings_period ON rent_bookings USING GIST (product_id, period)`,
		`CREATE TABLE IF NOT EXISTS product_purchases (
			id           VARCHAR(36) PRIMARY KEY,
			product_id   VARCHAR(36) NOT NULL REFERENCES products (id),
			buyer_id     VARCHAR(64) NOT NULL,
			purchased_at TIMESTAMP NOT NULL,
			CONSTRAINT uq_product_purchases_product UNIQUE (product_id)
		)`,
	}
}

func (postgresDialect) translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch {
	case pqErr.Code == pgExclusionViolation:
		return errors.Join(port.ErrOverlappingBooking, err)
	case pqErr.Code == pgUniqueViolation && pqErr.Table == "product_purchases":
		return errors.Join(port.ErrDuplicatePurchase, err)
	}
	return err
}

func (postgresDialect) beforeBookingInsert(context.Context, querier, domain.Booking) error {
	return nil
}
