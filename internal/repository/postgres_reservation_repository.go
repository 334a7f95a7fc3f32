package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

// reservationColumns is the select list shared by every reservation query
const reservationColumns = `
	id, reservation_code, supplier_id, pickup_office_id, dropoff_office_id,
	pickup_datetime, dropoff_datetime, rental_days, car_category_id,
	supplier_car_product_id, customer_id, sales_channel_id,
	currency_code, public_price_total, supplier_cost_total, discount_total,
	taxes_total, fees_total, commission_total,
	status, payment_status, supplier_reservation_code, supplier_confirmed_at,
	supplier_name_snapshot, pickup_office_code_snapshot, pickup_office_name_snapshot,
	dropoff_office_code_snapshot, dropoff_office_name_snapshot,
	car_acriss_code_snapshot, car_category_name_snapshot, car_product_code_snapshot,
	utm_source, utm_medium, utm_campaign,
	lock_version, created_at, updated_at
`

// PostgresReservationRepository implements ReservationRepository using PostgreSQL
type PostgresReservationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresReservationRepository creates a new PostgresReservationRepository
func NewPostgresReservationRepository(pool *pgxpool.Pool) *PostgresReservationRepository {
	return &PostgresReservationRepository{pool: pool}
}

// Create creates a reservation and its children in its own transaction
func (r *PostgresReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.CreateTx(ctx, tx, reservation); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateTx creates a reservation and its children within a transaction
func (r *PostgresReservationRepository) CreateTx(ctx context.Context, tx pgx.Tx, reservation *domain.Reservation) error {
	query := `
		INSERT INTO reservations (
			reservation_code, supplier_id, pickup_office_id, dropoff_office_id,
			pickup_datetime, dropoff_datetime, rental_days, car_category_id,
			supplier_car_product_id, customer_id, sales_channel_id,
			currency_code, public_price_total, supplier_cost_total, discount_total,
			taxes_total, fees_total, commission_total,
			status, payment_status,
			supplier_name_snapshot, pickup_office_code_snapshot, pickup_office_name_snapshot,
			dropoff_office_code_snapshot, dropoff_office_name_snapshot,
			car_acriss_code_snapshot, car_category_name_snapshot, car_product_code_snapshot,
			utm_source, utm_medium, utm_campaign,
			lock_version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34
		)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		reservation.ReservationCode,
		reservation.SupplierID,
		reservation.PickupOfficeID,
		reservation.DropoffOfficeID,
		reservation.PickupDatetime,
		reservation.DropoffDatetime,
		reservation.RentalDays,
		reservation.CarCategoryID,
		reservation.SupplierCarProductID,
		reservation.CustomerID,
		reservation.SalesChannelID,
		reservation.CurrencyCode,
		reservation.PublicPriceTotal,
		reservation.SupplierCostTotal,
		reservation.DiscountTotal,
		reservation.TaxesTotal,
		reservation.FeesTotal,
		reservation.CommissionTotal,
		reservation.Status.String(),
		reservation.PaymentStatus.String(),
		reservation.SupplierNameSnapshot,
		reservation.PickupOfficeCodeSnapshot,
		reservation.PickupOfficeNameSnapshot,
		reservation.DropoffOfficeCodeSnapshot,
		reservation.DropoffOfficeNameSnapshot,
		reservation.CarAcrissCodeSnapshot,
		reservation.CarCategoryNameSnapshot,
		reservation.CarProductCodeSnapshot,
		reservation.UTMSource,
		reservation.UTMMedium,
		reservation.UTMCampaign,
		reservation.LockVersion,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	).Scan(&reservation.ID)

	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	for i := range reservation.Drivers {
		d := &reservation.Drivers[i]
		d.ReservationID = reservation.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO reservation_drivers (reservation_id, first_name, last_name, email, phone, is_primary)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, d.ReservationID, d.FirstName, d.LastName, d.Email, d.Phone, d.IsPrimary).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to create reservation driver: %w", err)
		}
	}

	for i := range reservation.Contacts {
		c := &reservation.Contacts[i]
		c.ReservationID = reservation.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO reservation_contacts (reservation_id, contact_type, full_name, email, phone)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, c.ReservationID, c.ContactType, c.FullName, c.Email, c.Phone).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("failed to create reservation contact: %w", err)
		}
	}

	for i := range reservation.PricingItems {
		p := &reservation.PricingItems[i]
		p.ReservationID = reservation.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO reservation_pricing_items (reservation_id, description, unit_price, quantity, total)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, p.ReservationID, p.Description, p.UnitPrice, p.Quantity, p.Total).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to create reservation pricing item: %w", err)
		}
	}

	return nil
}

// GetByID loads a reservation and its children by primary key
func (r *PostgresReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByCode loads a reservation and its children by reservation code
func (r *PostgresReservationRepository) GetByCode(ctx context.Context, code string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_code = $1`
	return r.getOne(ctx, query, code)
}

func (r *PostgresReservationRepository) getOne(ctx context.Context, query string, arg any) (*domain.Reservation, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	reservation, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	if err := r.loadChildren(ctx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// Update writes the reservation back, bumping lock_version. A stale version
// loses the race and gets ErrOptimisticConcurrency.
func (r *PostgresReservationRepository) Update(ctx context.Context, reservation *domain.Reservation) error {
	return r.update(ctx, r.pool, reservation)
}

// UpdateTx is Update within a caller-owned transaction
func (r *PostgresReservationRepository) UpdateTx(ctx context.Context, tx pgx.Tx, reservation *domain.Reservation) error {
	return r.update(ctx, tx, reservation)
}

// queryExecer is satisfied by both *pgxpool.Pool and pgx.Tx
type queryExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresReservationRepository) update(ctx context.Context, db queryExecer, reservation *domain.Reservation) error {
	query := `
		UPDATE reservations SET
			status = $2,
			payment_status = $3,
			supplier_reservation_code = $4,
			supplier_confirmed_at = $5,
			discount_total = $6,
			taxes_total = $7,
			fees_total = $8,
			commission_total = $9,
			lock_version = lock_version + 1,
			updated_at = $10
		WHERE id = $1 AND lock_version = $11
	`

	result, err := db.Exec(ctx, query,
		reservation.ID,
		reservation.Status.String(),
		reservation.PaymentStatus.String(),
		nullStr(reservation.SupplierReservationCode),
		reservation.SupplierConfirmedAt,
		reservation.DiscountTotal,
		reservation.TaxesTotal,
		reservation.FeesTotal,
		reservation.CommissionTotal,
		time.Now().UTC(),
		reservation.LockVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM reservations WHERE id = $1)", reservation.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check reservation existence: %w", err)
		}
		if !exists {
			return domain.ErrReservationNotFound
		}
		return domain.ErrOptimisticConcurrency
	}

	reservation.LockVersion++
	return nil
}

// CodeExists reports whether a reservation code is already taken
func (r *PostgresReservationRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM reservations WHERE reservation_code = $1)", code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reservation code: %w", err)
	}
	return exists, nil
}

// HasOverlapping reports whether an open reservation for the same car category
// and supplier overlaps the requested window. Two windows overlap when
// existing.pickup < requested.dropoff and existing.dropoff > requested.pickup.
func (r *PostgresReservationRepository) HasOverlapping(ctx context.Context, carCategoryID, supplierID int64, pickup, dropoff time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM reservations
			WHERE car_category_id = $1
			  AND supplier_id = $2
			  AND status IN ('PENDING', 'ON_REQUEST', 'CONFIRMED')
			  AND pickup_datetime < $4
			  AND dropoff_datetime > $3
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, carCategoryID, supplierID, pickup, dropoff).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping reservations: %w", err)
	}
	return exists, nil
}

// ListPaidUnconfirmed returns reservations that took a payment but never made
// it to CONFIRMED within the given age. The reconciliation sweep feeds on it.
func (r *PostgresReservationRepository) ListPaidUnconfirmed(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE payment_status = 'PAID'
		  AND status IN ('PENDING', 'ON_REQUEST')
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, time.Now().UTC().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid unconfirmed reservations: %w", err)
	}
	defer rows.Close()

	reservations, err := scanReservations(rows)
	if err != nil {
		return nil, err
	}

	// The replay rebuilds the full supplier booking request, so the children
	// must come along.
	for _, reservation := range reservations {
		if err := r.loadChildren(ctx, reservation); err != nil {
			return nil, err
		}
	}
	return reservations, nil
}

// List returns reservations matching the filter, newest first. Children are
// not loaded; listings only need the aggregate row.
func (r *PostgresReservationRepository) List(ctx context.Context, filter ReservationFilter) ([]*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE 1=1`
	args := []any{}
	idx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status.String())
		idx++
	}
	if filter.PaymentStatus != "" {
		query += fmt.Sprintf(" AND payment_status = $%d", idx)
		args = append(args, filter.PaymentStatus.String())
		idx++
	}
	if filter.CustomerID != 0 {
		query += fmt.Sprintf(" AND customer_id = $%d", idx)
		args = append(args, filter.CustomerID)
		idx++
	}
	if filter.SupplierID != 0 {
		query += fmt.Sprintf(" AND supplier_id = $%d", idx)
		args = append(args, filter.SupplierID)
		idx++
	}
	if !filter.PickupFrom.IsZero() {
		query += fmt.Sprintf(" AND pickup_datetime >= $%d", idx)
		args = append(args, filter.PickupFrom)
		idx++
	}
	if !filter.PickupTo.IsZero() {
		query += fmt.Sprintf(" AND pickup_datetime < $%d", idx)
		args = append(args, filter.PickupTo)
		idx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	return scanReservations(rows)
}

func (r *PostgresReservationRepository) loadChildren(ctx context.Context, reservation *domain.Reservation) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reservation_id, first_name, last_name, email, phone, is_primary
		FROM reservation_drivers WHERE reservation_id = $1 ORDER BY id
	`, reservation.ID)
	if err != nil {
		return fmt.Errorf("failed to load drivers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d domain.Driver
		if err := rows.Scan(&d.ID, &d.ReservationID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.IsPrimary); err != nil {
			return fmt.Errorf("failed to scan driver: %w", err)
		}
		reservation.Drivers = append(reservation.Drivers, d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating drivers: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, reservation_id, contact_type, full_name, email, phone
		FROM reservation_contacts WHERE reservation_id = $1 ORDER BY id
	`, reservation.ID)
	if err != nil {
		return fmt.Errorf("failed to load contacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.ReservationID, &c.ContactType, &c.FullName, &c.Email, &c.Phone); err != nil {
			return fmt.Errorf("failed to scan contact: %w", err)
		}
		reservation.Contacts = append(reservation.Contacts, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating contacts: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, reservation_id, description, unit_price, quantity, total
		FROM reservation_pricing_items WHERE reservation_id = $1 ORDER BY id
	`, reservation.ID)
	if err != nil {
		return fmt.Errorf("failed to load pricing items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.PricingItem
		if err := rows.Scan(&p.ID, &p.ReservationID, &p.Description, &p.UnitPrice, &p.Quantity, &p.Total); err != nil {
			return fmt.Errorf("failed to scan pricing item: %w", err)
		}
		reservation.PricingItems = append(reservation.PricingItems, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating pricing items: %w", err)
	}

	return nil
}

// scanReservation scans one reservation row
func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	reservation := &domain.Reservation{}
	var (
		status          string
		paymentStatus   string
		supplierResCode *string
		utmSource       *string
		utmMedium       *string
		utmCampaign     *string
	)

	err := row.Scan(
		&reservation.ID,
		&reservation.ReservationCode,
		&reservation.SupplierID,
		&reservation.PickupOfficeID,
		&reservation.DropoffOfficeID,
		&reservation.PickupDatetime,
		&reservation.DropoffDatetime,
		&reservation.RentalDays,
		&reservation.CarCategoryID,
		&reservation.SupplierCarProductID,
		&reservation.CustomerID,
		&reservation.SalesChannelID,
		&reservation.CurrencyCode,
		&reservation.PublicPriceTotal,
		&reservation.SupplierCostTotal,
		&reservation.DiscountTotal,
		&reservation.TaxesTotal,
		&reservation.FeesTotal,
		&reservation.CommissionTotal,
		&status,
		&paymentStatus,
		&supplierResCode,
		&reservation.SupplierConfirmedAt,
		&reservation.SupplierNameSnapshot,
		&reservation.PickupOfficeCodeSnapshot,
		&reservation.PickupOfficeNameSnapshot,
		&reservation.DropoffOfficeCodeSnapshot,
		&reservation.DropoffOfficeNameSnapshot,
		&reservation.CarAcrissCodeSnapshot,
		&reservation.CarCategoryNameSnapshot,
		&reservation.CarProductCodeSnapshot,
		&utmSource,
		&utmMedium,
		&utmCampaign,
		&reservation.LockVersion,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	reservation.Status = domain.ReservationStatus(status)
	reservation.PaymentStatus = domain.PaymentStatus(paymentStatus)
	if supplierResCode != nil {
		reservation.SupplierReservationCode = *supplierResCode
	}
	if utmSource != nil {
		reservation.UTMSource = *utmSource
	}
	if utmMedium != nil {
		reservation.UTMMedium = *utmMedium
	}
	if utmCampaign != nil {
		reservation.UTMCampaign = *utmCampaign
	}

	return reservation, nil
}

// scanReservations scans rows into a Reservation slice
func scanReservations(rows pgx.Rows) ([]*domain.Reservation, error) {
	var reservations []*domain.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}
	return reservations, nil
}

// nullStr converts string to *string, returning nil for empty strings
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure PostgresReservationRepository implements ReservationRepository
var _ ReservationRepository = (*PostgresReservationRepository)(nil)
