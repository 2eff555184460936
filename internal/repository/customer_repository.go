package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository instantiates repository.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

const customerColumns = `id::text, email, first_name, last_name, phone, preferences, created_at, updated_at`

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id=$1`
	var c domain.Customer
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Email,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.Preferences,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *customerRepository) Create(ctx context.Context, in domain.Customer) (*domain.Customer, error) {
	query := `
        INSERT INTO customers (email, first_name, last_name, phone)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + customerColumns
	var c domain.Customer
	if err := r.pool.QueryRow(ctx, query, in.Email, in.FirstName, in.LastName, in.Phone).Scan(
		&c.ID,
		&c.Email,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.Preferences,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *customerRepository) Update(ctx context.Context, id string, update domain.CustomerUpdate) (*domain.Customer, error) {
	query := `
        UPDATE customers SET
            first_name=COALESCE($1, first_name),
            last_name=COALESCE($2, last_name),
            phone=COALESCE($3, phone),
            updated_at=NOW()
        WHERE id=$4
        RETURNING ` + customerColumns
	var c domain.Customer
	if err := r.pool.QueryRow(ctx, query, update.FirstName, update.LastName, update.Phone, id).Scan(
		&c.ID,
		&c.Email,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.Preferences,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}
