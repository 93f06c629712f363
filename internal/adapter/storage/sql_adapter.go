package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect isolates what differs between the supported databases: schema,
// placeholders, and how each one reports the two constraint signals.
type dialect interface {
	name() string
	rebind(query string) string
	schema() []string
	translate(err error) error

	// beforeBookingInsert runs inside the booking transaction, before the
	// insert. Databases without range exclusion enforce it here.
	beforeBookingInsert(ctx context.Context, q querier, b domain.Booking) error
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLAdapter implements port.DatabaseRepository over database/sql.
type SQLAdapter struct {
	db  *sql.DB
	d   dialect
	loc *time.Location
}

var _ port.DatabaseRepository = (*SQLAdapter)(nil)

func newSQLAdapter(db *sql.DB, d dialect, loc *time.Location) *SQLAdapter {
	if loc == nil {
		loc = time.Local
	}
	return &SQLAdapter{db: db, d: d, loc: loc}
}

// Open connects to driver, applies the pool settings, verifies the
// connection and applies the schema.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig, loc *time.Location) (*SQLAdapter, error) {
	var (
		d          dialect
		driverName string
		err        error
	)
	switch driver {
	case DriverPostgres:
		d, driverName = postgresDialect{}, "postgres"
	case DriverMySQL:
		d, driverName = mysqlDialect{}, "mysql"
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	case DriverSQLite:
		d, driverName = sqliteDialect{}, "sqlite"
		dsn = sqliteDSN(dsn)
		// SQLite has a single writer; one connection keeps transactions
		// from tripping over SQLITE_BUSY.
		pool.MaxOpenConns, pool.MaxIdleConns = 1, 1
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	a := newSQLAdapter(db, d, loc)
	if err := a.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Migrate creates the schema if it is missing. Every statement is
// idempotent.
func (a *SQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range a.d.schema() {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", a.d.name(), err)
		}
	}
	return nil
}

func (a *SQLAdapter) DB() *sql.DB { return a.db }

func (a *SQLAdapter) Driver() string { return a.d.name() }

func (a *SQLAdapter) Close() error { return a.db.Close() }

func (a *SQLAdapter) stores(q querier, inTx bool) sqlStores {
	s := sqlStores{q: q, d: a.d, loc: a.loc}
	if !inTx {
		s.owner = a
	}
	return s
}

func (a *SQLAdapter) Products() port.ProductStore    { return a.stores(a.db, false).Products() }
func (a *SQLAdapter) RentTerms() port.RentTermsStore { return a.stores(a.db, false).RentTerms() }
func (a *SQLAdapter) Bookings() port.BookingStore    { return a.stores(a.db, false).Bookings() }
func (a *SQLAdapter) Purchases() port.PurchaseStore  { return a.stores(a.db, false).Purchases() }

func (a *SQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Stores) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, a.stores(tx, true)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return a.d.translate(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// InsertListing writes a product and its rent terms. Listing management
// lives outside the engine; fixtures and tooling use this to seed data.
func (a *SQLAdapter) InsertListing(ctx context.Context, p domain.Product, terms *domain.RentTerms) error {
	return a.WithinTx(ctx, func(ctx context.Context, tx port.Stores) error {
		s := tx.(sqlStores)
		if terms != nil {
			if _, err := s.q.ExecContext(ctx, s.d.rebind(`
				INSERT INTO rent_terms (id, rent_price, rent_unit) VALUES (?, ?, ?)`),
				terms.ID, terms.Price, string(terms.Unit),
			); err != nil {
				return fmt.Errorf("insert rent terms: %w", err)
			}
			p.RentTermsID = terms.ID
		}

		var rentTermsID sql.NullString
		if p.RentTermsID != "" {
			rentTermsID = sql.NullString{String: p.RentTermsID, Valid: true}
		}
		if p.Status == "" {
			p.Status = domain.StatusAvailable
		}
		if _, err := s.q.ExecContext(ctx, s.d.rebind(`
			INSERT INTO products (id, owner_id, listed_for, selling_price, rent_terms_id,
				availability_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			p.ID, p.OwnerID, string(p.ListedFor), p.SellingPrice, rentTermsID,
			string(p.Status), domain.FormatDateTime(p.CreatedAt), domain.FormatDateTime(p.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	})
}
