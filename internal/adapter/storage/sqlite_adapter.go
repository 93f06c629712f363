package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

const sqliteOverlapTrigger = "no_overlapping_bookings"

// sqliteDialect enforces the no-overlap rule with a BEFORE INSERT trigger.
// Writers are serialized by SQLite itself, so the trigger's probe cannot
// race another insert.
type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS rent_terms (
			id         TEXT PRIMARY KEY,
			rent_price REAL NOT NULL,
			rent_unit  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id                  TEXT PRIMARY KEY,
			owner_id            TEXT NOT NULL,
			listed_for          TEXT NOT NULL,
			selling_price       REAL NOT NULL DEFAULT 0,
			rent_terms_id       TEXT REFERENCES rent_terms (id),
			availability_status TEXT NOT NULL DEFAULT 'AVAILABLE',
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rent_bookings (
			id              TEXT PRIMARY KEY,
			product_id      TEXT NOT NULL REFERENCES products (id),
			rent_terms_id   TEXT NOT NULL REFERENCES rent_terms (id),
			renter_id       TEXT NOT NULL,
			rent_start_time TEXT NOT NULL,
			rent_end_time   TEXT NOT NULL,
			units           INTEGER NOT NULL,
			rent_unit       TEXT NOT NULL,
			total_rent      REAL NOT NULL,
			status          TEXT NOT NULL,
			created_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rent_bookings_period
			ON rent_bookings (product_id, rent_start_time, rent_end_time)`,
		`CREATE TRIGGER IF NOT EXISTS ` + sqliteOverlapTrigger + `
			BEFORE INSERT ON rent_bookings
			FOR EACH ROW WHEN EXISTS (
				SELECT 1 FROM rent_bookings
				WHERE product_id = NEW.product_id
				  AND rent_start_time <= NEW.rent_end_time
				  AND rent_end_time >= NEW.rent_start_time
			)
			BEGIN
				SELECT RAISE(ABORT, '` + sqliteOverlapTrigger + `');
			END`,
		`CREATE TABLE IF NOT EXISTS product_purchases (
			id           TEXT PRIMARY KEY,
			product_id   TEXT NOT NULL UNIQUE REFERENCES products (id),
			buyer_id     TEXT NOT NULL,
			purchased_at TEXT NOT NULL
		)`,
	}
}

func (sqliteDialect) translate(err error) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}
	msg := sqlErr.Error()
	switch {
	case strings.Contains(msg, sqliteOverlapTrigger):
		return errors.Join(port.ErrOverlappingBooking, err)
	case sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE && strings.Contains(msg, "product_purchases.product_id"),
		strings.Contains(msg, "UNIQUE constraint failed: product_purchases.product_id"):
		return errors.Join(port.ErrDuplicatePurchase, err)
	}
	return err
}

func (sqliteDialect) beforeBookingInsert(context.Context, querier, domain.Booking) error {
	return nil
}

// sqliteDSN enables foreign keys, waits on a busy database instead of
// failing, and takes the write lock when a transaction begins.
func sqliteDSN(path string) string {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}
