package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

// PostgresCatalogRepository reads supplier, office and customer reference rows
type PostgresCatalogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalogRepository creates a new PostgresCatalogRepository
func NewPostgresCatalogRepository(pool *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{pool: pool}
}

// GetSupplier loads a supplier by id
func (r *PostgresCatalogRepository) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	supplier := &domain.Supplier{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, name, code, is_active FROM suppliers WHERE id = $1", id,
	).Scan(&supplier.ID, &supplier.Name, &supplier.Code, &supplier.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSupplierNotFound
		}
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return supplier, nil
}

// GetOffice loads an office by id
func (r *PostgresCatalogRepository) GetOffice(ctx context.Context, id int64) (*domain.Office, error) {
	office := &domain.Office{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, supplier_id, code, name, city_id, is_active FROM offices WHERE id = $1", id,
	).Scan(&office.ID, &office.SupplierID, &office.Code, &office.Name, &office.CityID, &office.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOfficeNotFound
		}
		return nil, fmt.Errorf("failed to get office: %w", err)
	}
	return office, nil
}

// GetCustomer loads a customer by id
func (r *PostgresCatalogRepository) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	customer := &domain.Customer{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, email, first_name, last_name FROM app_customers WHERE id = $1", id,
	).Scan(&customer.ID, &customer.Email, &customer.FirstName, &customer.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return customer, nil
}

// Ensure PostgresCatalogRepository implements CatalogRepository
var _ CatalogRepository = (*PostgresCatalogRepository)(nil)
