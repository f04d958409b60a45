package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const productionOrderColumns = `
	po.id, po.position_id, po.sequence_number, po.amount, po.design_url, po.order_type,
	po.dyeing_necessary, po.material_id, po.product_template, po.status, po.created_at, po.updated_at`

const sequenceConstraint = "production_orders_position_sequence_key"

func scanProductionOrder(row rowScanner, po *ProductionOrder) error {
	return row.Scan(
		&po.ID,
		&po.PositionID,
		&po.SequenceNumber,
		&po.Amount,
		&po.DesignURL,
		&po.OrderType,
		&po.DyeingNecessary,
		&po.MaterialID,
		&po.Template,
		&po.Status,
		&po.CreatedAt,
		&po.UpdatedAt,
	)
}

// CreateProductionOrder inserts the production order with the next free
// sequence number of its position. A concurrent insert that wins the same
// number makes this call fail with ErrSequenceTaken; callers retry.
func (r *postgresRepository) CreateProductionOrder(ctx context.Context, po *ProductionOrder) error {
	id, err := newID()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if po.Status == "" {
		po.Status = ProductionOrderReceived
	}

	query := `
		INSERT INTO order_service.production_orders (
			id, position_id, sequence_number, amount, design_url, order_type,
			dyeing_necessary, material_id, product_template, status, created_at, updated_at
		)
		SELECT $1::uuid, $2::uuid, COALESCE(MAX(sequence_number), 0) + 1, $3::int, $4::text, $5::text,
			$6::boolean, $7::bigint, $8::jsonb, $9::text, $10::timestamptz, $10::timestamptz
		FROM order_service.production_orders
		WHERE position_id = $2::uuid
		RETURNING sequence_number
	`

	var seq int
	err = r.db.QueryRow(ctx, query,
		id,
		po.PositionID,
		po.Amount,
		po.DesignURL,
		string(po.OrderType),
		po.DyeingNecessary,
		po.MaterialID,
		po.Template,
		string(po.Status),
		now,
	).Scan(&seq)
	if err != nil {
		if isUniqueViolation(err, sequenceConstraint) {
			return ErrSequenceTaken
		}
		log.Error().Err(err).Msg("repository: failed to insert production order")
		return fmt.Errorf("repository: failed to insert production order: %w", err)
	}

	po.ID = id
	po.SequenceNumber = seq
	po.CreatedAt = now
	po.UpdatedAt = now
	return nil
}

func (r *postgresRepository) GetProductionOrderByKey(ctx context.Context, key Key) (*ProductionOrder, error) {
	query := `SELECT ` + productionOrderColumns + `
		FROM order_service.production_orders po
		JOIN order_service.positions p ON p.id = po.position_id
		JOIN order_service.orders o ON o.id = p.order_id
		WHERE o.order_number = $1 AND p.pos_number = $2 AND po.sequence_number = $3
	`

	var po ProductionOrder
	err := scanProductionOrder(r.db.QueryRow(ctx, query, key.OrderNumber, key.PosNumber, key.Sequence), &po)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductionOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select production order %s: %w", key, err)
	}
	return &po, nil
}

func (r *postgresRepository) ListProductionOrdersByPosition(ctx context.Context, positionID uuid.UUID) ([]ProductionOrder, error) {
	return r.queryProductionOrders(ctx, `WHERE position_id = $1`, positionID)
}

func (r *postgresRepository) queryProductionOrders(ctx context.Context, where string, args ...any) ([]ProductionOrder, error) {
	query := `SELECT ` + productionOrderColumns + `
		FROM order_service.production_orders po
		` + where + `
		ORDER BY po.sequence_number
	`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query production orders: %w", err)
	}
	defer rows.Close()

	result := make([]ProductionOrder, 0)
	for rows.Next() {
		var po ProductionOrder
		if err := scanProductionOrder(rows, &po); err != nil {
			return nil, fmt.Errorf("repository: failed to scan production order: %w", err)
		}
		result = append(result, po)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating production orders: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) UpdateProductionOrderStatus(ctx context.Context, id uuid.UUID, from, to ProductionOrderStatus) error {
	query := `
		UPDATE order_service.production_orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	cmdTag, err := r.db.Exec(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		log.Error().Err(err).Stringer("production_order_id", id).Stringer("new_status", to).Msg("repository: failed to update production order status")
		return fmt.Errorf("repository: failed to update production order status %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM order_service.production_orders WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("repository: failed to check production order %s: %w", id, err)
		}
		if !exists {
			return ErrProductionOrderNotFound
		}
		return ErrStaleStatus
	}
	return nil
}
