package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

const (
	mysqlDuplicateEntry = 1062
	mysqlPurchaseKey    = "uq_product_purchases_product"
)

// mysqlDialect has no range exclusion, so each booking transaction locks the
// product row and probes for overlap before inserting. Every booking for a
// product therefore commits one at a time.
type mysqlDialect struct{}

func (mysqlDialect) name() string { return DriverMySQL }

func (mysqlDialect) rebind(query string) string { return query }

func (mysqlDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS rent_terms (
			id         VARCHAR(36) PRIMARY KEY,
			rent_price DECIMAL(12, 2) NOT NULL,
			rent_unit  VARCHAR(8) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id                  VARCHAR(36) PRIMARY KEY,
			owner_id            VARCHAR(64) NOT NULL,
			listed_for          VARCHAR(8) NOT NULL,
			selling_price       DECIMAL(12, 2) NOT NULL DEFAULT 0,
			rent_terms_id       VARCHAR(36) NULL,
			availability_status VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
			created_at          DATETIME NOT NULL,
			updated_at          DATETIME NOT NULL,
			CONSTRAINT fk_products_rent_terms FOREIGN KEY (rent_terms_id) REFERENCES rent_terms (id)
		)`,
		`CREATE TABLE IF NOT EXISTS rent_bookings (
			id              VARCHAR(36) PRIMARY KEY,
			product_id      VARCHAR(36) NOT NULL,
			rent_terms_id   VARCHAR(36) NOT NULL,
			renter_id       VARCHAR(64) NOT NULL,
			rent_start_time DATETIME NOT NULL,
			rent_end_time   DATETIME NOT NULL,
			units           BIGINT NOT NULL,
			rent_unit       VARCHAR(8) NOT NULL,
			total_rent      DECIMAL(14, 2) NOT NULL,
			status          VARCHAR(16) NOT NULL,
			created_at      DATETIME NOT NULL,
			INDEX idx_rent_bookings_period (product_id, rent_start_time, rent_end_time),
			CONSTRAINT fk_rent_bookings_product FOREIGN KEY (product_id) REFERENCES products (id),
			CONSTRAINT fk_rent_bookings_terms FOREIGN KEY (rent_terms_id) REFERENCES rent_terms (id)
		)`,
		`CREATE TABLE IF NOT EXISTS product_purchases (
			id           VARCHAR(36) PRIMARY KEY,
			product_id   VARCHAR(36) NOT NULL,
			buyer_id     VARCHAR(64) NOT NULL,
			purchased_at DATETIME NOT NULL,
			UNIQUE KEY uq_product_purchases_product (product_id),
			CONSTRAINT fk_product_purchases_product FOREIGN KEY (product_id) REFERENCES products (id)
		)`,
	}
}

func (mysqlDialect) translate(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry && strings.Contains(myErr.Message, mysqlPurchaseKey) {
		return errors.Join(port.ErrDuplicatePurchase, err)
	}
	return err
}

func (d mysqlDialect) beforeBookingInsert(ctx context.Context, q querier, b domain.Booking) error {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM products WHERE id = ? FOR UPDATE`, b.ProductID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrStatusChanged
	}
	if err != nil {
		return fmt.Errorf("lock product: %w", err)
	}

	taken, err := existsOverlapping(ctx, q, d, b.ProductID, b.Start, b.End)
	if err != nil {
		return err
	}
	if taken {
		return port.ErrOverlappingBooking
	}
	return nil
}

// mysqlDSN makes UPDATE report matched rather than changed rows, which the
// status compare-and-set depends on.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ClientFoundRows = true
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
