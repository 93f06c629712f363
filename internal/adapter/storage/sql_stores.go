package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

// sqlStores binds the repositories to a connection pool or a transaction.
// owner is set only outside a transaction.
type sqlStores struct {
	q     querier
	d     dialect
	loc   *time.Location
	owner *SQLAdapter
}

func (s sqlStores) Products() port.ProductStore    { return productStore{s} }
func (s sqlStores) RentTerms() port.RentTermsStore { return rentTermsStore{s} }
func (s sqlStores) Bookings() port.BookingStore    { return bookingStore{s} }
func (s sqlStores) Purchases() port.PurchaseStore  { return purchaseStore{s} }

const productColumns = `id, owner_id, listed_for, selling_price, rent_terms_id,
	availability_status, created_at, updated_at`

type productStore struct{ sqlStores }

func (s productStore) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.q.QueryRowContext(ctx, s.d.rebind(`
		SELECT `+productColumns+`
		FROM products WHERE id = ?`), id)
	return s.scan(row)
}

func (s productStore) FindEligible(ctx context.Context, id string) (*domain.Product, error) {
	args := append([]any{id}, statusArgs(domain.EligibleStatuses)...)
	row := s.q.QueryRowContext(ctx, s.d.rebind(`
		SELECT `+productColumns+`
		FROM products
		WHERE id = ? AND availability_status IN (`+placeholders(len(domain.EligibleStatuses))+`)`), args...)
	return s.scan(row)
}

func (s productStore) Save(ctx context.Context, p *domain.Product, from ...domain.AvailabilityStatus) error {
	if len(from) == 0 {
		return errors.New("save product: no source statuses")
	}
	args := append([]any{string(p.Status), domain.FormatDateTime(p.UpdatedAt), p.ID}, statusArgs(from)...)
	result, err := s.q.ExecContext(ctx, s.d.rebind(`
		UPDATE products
		SET availability_status = ?, updated_at = ?
		WHERE id = ? AND availability_status IN (`+placeholders(len(from))+`)`), args...)
	if err != nil {
		return fmt.Errorf("update product status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product status: rows affected: %w", err)
	}
	if rows == 0 {
		return port.ErrStatusChanged
	}
	return nil
}

func (s productStore) scan(row *sql.Row) (*domain.Product, error) {
	var (
		p                    domain.Product
		listedFor, status    string
		rentTermsID          sql.NullString
		createdAt, updatedAt wallTime
	)
	createdAt.loc, updatedAt.loc = s.loc, s.loc

	err := row.Scan(&p.ID, &p.OwnerID, &listedFor, &p.SellingPrice, &rentTermsID,
		&status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	if p.ListedFor, err = domain.ParseListingKind(listedFor); err != nil {
		return nil, fmt.Errorf("product %s: %w", p.ID, err)
	}
	if p.Status, err = domain.ParseAvailabilityStatus(status); err != nil {
		return nil, fmt.Errorf("product %s: %w", p.ID, err)
	}
	p.RentTermsID = rentTermsID.String
	p.CreatedAt, p.UpdatedAt = createdAt.Time, updatedAt.Time
	return &p, nil
}

type rentTermsStore struct{ sqlStores }

func (s rentTermsStore) FindByID(ctx context.Context, id string) (*domain.RentTerms, error) {
	var (
		terms domain.RentTerms
		unit  string
	)
	err := s.q.QueryRowContext(ctx, s.d.rebind(`
		SELECT id, rent_price, rent_unit FROM rent_terms WHERE id = ?`), id,
	).Scan(&terms.ID, &terms.Price, &unit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query rent terms: %w", err)
	}

	if terms.Unit, err = domain.ParseRentUnit(unit); err != nil {
		return nil, fmt.Errorf("rent terms %s: %w", terms.ID, err)
	}
	return &terms, nil
}

const bookingColumns = `id, product_id, rent_terms_id, renter_id, rent_start_time, rent_end_time,
	units, rent_unit, total_rent, status, created_at`

type bookingStore struct{ sqlStores }

func (s bookingStore) FindLatestByProduct(ctx context.Context, productID string) (*domain.Booking, error) {
	rows, err := s.q.QueryContext(ctx, s.d.rebind(`
		SELECT `+bookingColumns+`
		FROM rent_bookings
		WHERE product_id = ?
		ORDER BY rent_end_time DESC
		LIMIT 1`), productID)
	if err != nil {
		return nil, fmt.Errorf("query latest booking: %w", err)
	}
	bookings, err := s.scanAll(rows)
	if err != nil || len(bookings) == 0 {
		return nil, err
	}
	return &bookings[0], nil
}

func (s bookingStore) FindByProductOrderByEndDesc(ctx context.Context, productID string) ([]domain.Booking, error) {
	rows, err := s.q.QueryContext(ctx, s.d.rebind(`
		SELECT `+bookingColumns+`
		FROM rent_bookings
		WHERE product_id = ?
		ORDER BY rent_end_time DESC`), productID)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	return s.scanAll(rows)
}

func (s bookingStore) ExistsOverlapping(ctx context.Context, productID string, start, end time.Time) (bool, error) {
	return existsOverlapping(ctx, s.q, s.d, productID, start, end)
}

func (s bookingStore) Insert(ctx context.Context, b domain.Booking) error {
	if s.owner != nil {
		// The exclusion check of some dialects needs a transaction.
		return s.owner.WithinTx(ctx, func(ctx context.Context, tx port.Stores) error {
			return tx.Bookings().Insert(ctx, b)
		})
	}

	if err := s.d.beforeBookingInsert(ctx, s.q, b); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, s.d.rebind(`
		INSERT INTO rent_bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		b.ID, b.ProductID, b.RentTermsID, b.RenterID,
		domain.FormatDateTime(b.Start), domain.FormatDateTime(b.End),
		b.Units, string(b.Unit), b.Total, string(b.Status), domain.FormatDateTime(b.CreatedAt),
	)
	if err != nil {
		return s.d.translate(fmt.Errorf("insert booking: %w", err))
	}
	return nil
}

func (s bookingStore) scanAll(rows *sql.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var (
			b                     domain.Booking
			unit, status          string
			start, end, createdAt wallTime
		)
		start.loc, end.loc, createdAt.loc = s.loc, s.loc, s.loc

		if err := rows.Scan(&b.ID, &b.ProductID, &b.RentTermsID, &b.RenterID, &start, &end,
			&b.Units, &unit, &b.Total, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}

		var err error
		if b.Unit, err = domain.ParseRentUnit(unit); err != nil {
			return nil, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		b.Status = domain.BookingStatus(status)
		b.Start, b.End, b.CreatedAt = start.Time, end.Time, createdAt.Time
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

// existsOverlapping treats both intervals as closed, matching the storage
// guarantee: bookings that only touch at an endpoint overlap.
func existsOverlapping(ctx context.Context, q querier, d dialect, productID string, start, end time.Time) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, d.rebind(`
		SELECT EXISTS (
			SELECT 1 FROM rent_bookings
			WHERE product_id = ? AND rent_start_time <= ? AND rent_end_time >= ?
		)`), productID, domain.FormatDateTime(end), domain.FormatDateTime(start),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe overlapping bookings: %w", err)
	}
	return exists, nil
}

type purchaseStore struct{ sqlStores }

func (s purchaseStore) ExistsForProduct(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, s.d.rebind(`
		SELECT EXISTS (SELECT 1 FROM product_purchases WHERE product_id = ?)`), productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query purchase: %w", err)
	}
	return exists, nil
}

func (s purchaseStore) Insert(ctx context.Context, p domain.Purchase) error {
	_, err := s.q.ExecContext(ctx, s.d.rebind(`
		INSERT INTO product_purchases (id, product_id, buyer_id, purchased_at)
		VALUES (?, ?, ?, ?)`),
		p.ID, p.ProductID, p.BuyerID, domain.FormatDateTime(p.PurchasedAt),
	)
	if err != nil {
		return s.d.translate(fmt.Errorf("insert purchase: %w", err))
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func statusArgs(statuses []domain.AvailabilityStatus) []any {
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	return args
}
