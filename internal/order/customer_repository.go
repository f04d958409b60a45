package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

const customerColumns = `
	id, name, email, phone, addr_country, addr_city, addr_zip, addr_street, addr_line1, addr_line2,
	customer_type, created_at, updated_at`

func scanCustomer(row rowScanner, c *Customer) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Country,
		&c.City,
		&c.Zip,
		&c.Street,
		&c.Line1,
		&c.Line2,
		&c.Type,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func (r *postgresRepository) CreateCustomer(ctx context.Context, c *Customer) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if c.Country == "" {
		c.Country = "DE"
	}

	query := `
		INSERT INTO order_service.customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.Exec(ctx, query,
		id, c.Name, c.Email, c.Phone, c.Country, c.City, c.Zip, c.Street, c.Line1, c.Line2,
		string(c.Type), now, now,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert customer: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *postgresRepository) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM order_service.customers WHERE id = $1`

	var c Customer
	if err := scanCustomer(r.db.QueryRow(ctx, query, id), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("repository: failed to select customer %s: %w", id, err)
	}
	return &c, nil
}

func (r *postgresRepository) ListCustomers(ctx context.Context) ([]Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM order_service.customers ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := make([]Customer, 0)
	for rows.Next() {
		var c Customer
		if err := scanCustomer(rows, &c); err != nil {
			return nil, fmt.Errorf("repository: failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating customers: %w", err)
	}
	return customers, nil
}

// UpdateCustomer overwrites every editable field of the customer with c.ID.
func (r *postgresRepository) UpdateCustomer(ctx context.Context, c *Customer) error {
	now := time.Now().UTC()
	if c.Country == "" {
		c.Country = "DE"
	}

	query := `
		UPDATE order_service.customers
		SET name = $1, email = $2, phone = $3, addr_country = $4, addr_city = $5, addr_zip = $6,
			addr_street = $7, addr_line1 = $8, addr_line2 = $9, customer_type = $10, updated_at = $11
		WHERE id = $12
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		c.Name, c.Email, c.Phone, c.Country, c.City, c.Zip, c.Street, c.Line1, c.Line2,
		string(c.Type), now, c.ID,
	).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("repository: failed to update customer %s: %w", c.ID, err)
	}

	c.UpdatedAt = now
	return nil
}

func (r *postgresRepository) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM order_service.customers WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCustomerInUse
		}
		return fmt.Errorf("repository: failed to delete customer %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
