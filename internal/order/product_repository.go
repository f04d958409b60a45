package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const standardProductColumns = `
	id, name, product_category, color, shirt_size, typ, min_amount, amount_in_production, created_at, updated_at`

func scanStandardProduct(row rowScanner, p *StandardProduct) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.Color,
		&p.Size,
		&p.SubTypes,
		&p.MinAmount,
		&p.AmountInProduction,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *postgresRepository) CreateStandardProduct(ctx context.Context, p *StandardProduct) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.SubTypes == nil {
		p.SubTypes = []string{}
	}

	query := `
		INSERT INTO order_service.standard_products (
			id, name, product_category, color, shirt_size, typ, min_amount, amount_in_production, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Exec(ctx, query,
		id,
		p.Name,
		string(p.Category),
		p.Color,
		string(p.Size),
		p.SubTypes,
		p.MinAmount,
		p.AmountInProduction,
		now,
		now,
	)
	if err != nil {
		log.Error().Err(err).Str("name", p.Name).Msg("repository: failed to insert standard product")
		return fmt.Errorf("repository: failed to insert standard product: %w", err)
	}

	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *postgresRepository) GetStandardProduct(ctx context.Context, id uuid.UUID) (*StandardProduct, error) {
	query := `SELECT ` + standardProductColumns + `
		FROM order_service.standard_products
		WHERE id = $1 AND deleted_at IS NULL
	`
	var p StandardProduct
	if err := scanStandardProduct(r.db.QueryRow(ctx, query, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStandardProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select standard product %s: %w", id, err)
	}
	return &p, nil
}

// ListStandardProducts returns all live products, or those matching the
// full-text query when it is not blank.
func (r *postgresRepository) ListStandardProducts(ctx context.Context, search string) ([]StandardProduct, error) {
	query := `SELECT ` + standardProductColumns + `
		FROM order_service.standard_products
		WHERE deleted_at IS NULL
	`
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		query += ` AND to_tsvector('simple', coalesce(name, '') || ' ' || coalesce(color, '') || ' ' || coalesce(shirt_size, ''))
			@@ plainto_tsquery('simple', $1)`
		args = append(args, search)
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query standard products: %w", err)
	}
	defer rows.Close()

	products := make([]StandardProduct, 0)
	for rows.Next() {
		var p StandardProduct
		if err := scanStandardProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan standard product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating standard products: %w", err)
	}
	return products, nil
}

// AdjustAmountInProduction adds delta to the product's counter, clamping at zero.
func (r *postgresRepository) AdjustAmountInProduction(ctx context.Context, id uuid.UUID, delta int) error {
	query := `
		UPDATE order_service.standard_products
		SET amount_in_production = GREATEST(amount_in_production + $1, 0), updated_at = $2
		WHERE id = $3
	`
	cmdTag, err := r.db.Exec(ctx, query, delta, time.Now().UTC(), id)
	if err != nil {
		log.Error().Err(err).Stringer("standard_product_id", id).Int("delta", delta).Msg("repository: failed to adjust amount in production")
		return fmt.Errorf("repository: failed to adjust amount in production of %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStandardProductNotFound
	}
	return nil
}

// UpdateStandardProduct overwrites the catalog fields of a live product. The
// amount in production is owned by allocation and is read back, not written.
func (r *postgresRepository) UpdateStandardProduct(ctx context.Context, p *StandardProduct) error {
	now := time.Now().UTC()
	if p.SubTypes == nil {
		p.SubTypes = []string{}
	}

	query := `
		UPDATE order_service.standard_products
		SET name = $1, product_category = $2, color = $3, shirt_size = $4, typ = $5, min_amount = $6, updated_at = $7
		WHERE id = $8 AND deleted_at IS NULL
		RETURNING amount_in_production, created_at
	`
	err := r.db.QueryRow(ctx, query,
		p.Name,
		string(p.Category),
		p.Color,
		string(p.Size),
		p.SubTypes,
		p.MinAmount,
		now,
		p.ID,
	).Scan(&p.AmountInProduction, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStandardProductNotFound
		}
		return fmt.Errorf("repository: failed to update standard product %s: %w", p.ID, err)
	}

	p.UpdatedAt = now
	return nil
}

// DeleteStandardProduct hides the product from the catalog. Positions that
// reference it keep the row.
func (r *postgresRepository) DeleteStandardProduct(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE order_service.standard_products
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`
	cmdTag, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete standard product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStandardProductNotFound
	}
	return nil
}
