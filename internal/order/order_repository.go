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

const positionColumns = `
	p.id, p.order_id, o.order_number, p.pos_number, p.name, p.description, p.amount, p.price,
	p.product_category, p.design, p.color, p.shirt_size, p.typ, p.standard_product_id, p.status,
	p.created_at, p.updated_at`

func scanPosition(row rowScanner, p *Position) error {
	return row.Scan(
		&p.ID,
		&p.OrderID,
		&p.OrderNumber,
		&p.PosNumber,
		&p.Name,
		&p.Description,
		&p.Amount,
		&p.Price,
		&p.Category,
		&p.Design,
		&p.Color,
		&p.Size,
		&p.SubType,
		&p.StandardProductID,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

// nextOrderNumber claims the next per-year order number. The counter row stays
// locked until the surrounding transaction ends, so concurrent creators are
// serialized and never see the same value.
func nextOrderNumber(ctx context.Context, tx pgx.Tx, now time.Time) (string, error) {
	year := now.Year()
	query := `
		INSERT INTO order_service.order_number_counters (year, last_value)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = order_service.order_number_counters.last_value + 1
		RETURNING last_value
	`
	var value int
	if err := tx.QueryRow(ctx, query, year).Scan(&value); err != nil {
		return "", fmt.Errorf("repository: failed to claim order number for %d: %w", year, err)
	}
	return fmt.Sprintf("%d%04d", year, value), nil
}

func (r *postgresRepository) CreateOrder(ctx context.Context, o *Order) error {
	orderID, err := newID()
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	// o is only written once the transaction committed.
	var orderNumber string
	positionIDs := make([]uuid.UUID, len(o.Positions))
	statuses := make([]PositionStatus, len(o.Positions))

	err = r.withTx(ctx, "create order", func(tx pgx.Tx) error {
		number, err := nextOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		queryOrder := `
			INSERT INTO order_service.orders (id, order_number, customer_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, queryOrder, orderID, number, o.CustomerID, now, now); err != nil {
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}

		queryPosition := `
			INSERT INTO order_service.positions (
				id, order_id, pos_number, name, description, amount, price, product_category,
				design, color, shirt_size, typ, standard_product_id, status, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`
		for i := range o.Positions {
			p := &o.Positions[i]

			positionID, err := newID()
			if err != nil {
				return err
			}
			st := p.Status
			if st == "" {
				st = PositionOpen
			}
			statuses[i] = st

			_, err = tx.Exec(ctx, queryPosition,
				positionID,
				orderID,
				p.PosNumber,
				p.Name,
				p.Description,
				p.Amount,
				p.Price,
				string(p.Category),
				p.Design,
				p.Color,
				string(p.Size),
				p.SubType,
				p.StandardProductID,
				string(st),
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("repository: failed to insert position %d for order %s: %w", p.PosNumber, orderID, err)
			}
			positionIDs[i] = positionID
		}

		orderNumber = number
		return nil
	})
	if err != nil {
		return err
	}

	o.ID = orderID
	o.OrderNumber = orderNumber
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Positions {
		p := &o.Positions[i]
		p.ID = positionIDs[i]
		p.OrderID = orderID
		p.OrderNumber = orderNumber
		p.Status = statuses[i]
		p.CreatedAt = now
		p.UpdatedAt = now
	}
	return nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `
		SELECT id, order_number, customer_id, created_at, updated_at
		FROM order_service.orders
		WHERE id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, query, id).Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	orders, err := r.attachPositions(ctx, []Order{o})
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepository) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	query := `
		SELECT id, order_number, customer_id, created_at, updated_at
		FROM order_service.orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`
	return r.listOrders(ctx, query, customerID)
}

func (r *postgresRepository) ListOrdersWithPositionStatus(ctx context.Context, status PositionStatus) ([]Order, error) {
	query := `
		SELECT o.id, o.order_number, o.customer_id, o.created_at, o.updated_at
		FROM order_service.orders o
		WHERE EXISTS (
			SELECT 1 FROM order_service.positions p WHERE p.order_id = o.id AND p.status = $1
		)
		ORDER BY o.created_at DESC
	`
	return r.listOrders(ctx, query, string(status))
}

func (r *postgresRepository) listOrders(ctx context.Context, query string, arg any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}
	return r.attachPositions(ctx, orders)
}

// attachPositions loads the positions and production orders of all given
// orders with one query each.
func (r *postgresRepository) attachPositions(ctx context.Context, orders []Order) ([]Order, error) {
	orderIndex := make(map[uuid.UUID]int, len(orders))
	orderIDs := make([]string, 0, len(orders))
	for i := range orders {
		orders[i].Positions = make([]Position, 0)
		orderIndex[orders[i].ID] = i
		orderIDs = append(orderIDs, orders[i].ID.String())
	}

	query := `SELECT ` + positionColumns + `
		FROM order_service.positions p
		JOIN order_service.orders o ON o.id = p.order_id
		WHERE p.order_id = ANY($1::uuid[])
		ORDER BY p.pos_number
	`
	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query positions: %w", err)
	}
	defer rows.Close()

	var positionIDs []string
	for rows.Next() {
		var p Position
		if err := scanPosition(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan position: %w", err)
		}
		p.ProductionOrders = make([]ProductionOrder, 0)
		i := orderIndex[p.OrderID]
		orders[i].Positions = append(orders[i].Positions, p)
		positionIDs = append(positionIDs, p.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating positions: %w", err)
	}

	if len(positionIDs) == 0 {
		return orders, nil
	}

	productionOrders, err := r.queryProductionOrders(ctx, `WHERE position_id = ANY($1::uuid[])`, positionIDs)
	if err != nil {
		return nil, err
	}

	byPosition := make(map[uuid.UUID][]ProductionOrder)
	for _, po := range productionOrders {
		if po.PositionID != nil {
			byPosition[*po.PositionID] = append(byPosition[*po.PositionID], po)
		}
	}
	for i := range orders {
		for j := range orders[i].Positions {
			if pos, ok := byPosition[orders[i].Positions[j].ID]; ok {
				orders[i].Positions[j].ProductionOrders = pos
			}
		}
	}

	return orders, nil
}

func (r *postgresRepository) GetPosition(ctx context.Context, id uuid.UUID) (*Position, error) {
	query := `SELECT ` + positionColumns + `
		FROM order_service.positions p
		JOIN order_service.orders o ON o.id = p.order_id
		WHERE p.id = $1
	`
	return r.getPosition(ctx, query, id)
}

func (r *postgresRepository) GetPositionByKey(ctx context.Context, orderNumber string, posNumber int) (*Position, error) {
	query := `SELECT ` + positionColumns + `
		FROM order_service.positions p
		JOIN order_service.orders o ON o.id = p.order_id
		WHERE o.order_number = $1 AND p.pos_number = $2
	`
	return r.getPosition(ctx, query, orderNumber, posNumber)
}

func (r *postgresRepository) getPosition(ctx context.Context, query string, args ...any) (*Position, error) {
	var p Position
	if err := scanPosition(r.db.QueryRow(ctx, query, args...), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, fmt.Errorf("repository: failed to select position: %w", err)
	}
	return &p, nil
}

// UpdatePositionStatus moves the position from one status to another. It
// returns ErrStaleStatus if the position is no longer in from.
func (r *postgresRepository) UpdatePositionStatus(ctx context.Context, id uuid.UUID, from, to PositionStatus) error {
	query := `
		UPDATE order_service.positions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	cmdTag, err := r.db.Exec(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		log.Error().Err(err).Stringer("position_id", id).Stringer("new_status", to).Msg("repository: failed to update position status")
		return fmt.Errorf("repository: failed to update position status %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetPosition(ctx, id); err != nil {
			return err
		}
		return ErrStaleStatus
	}
	return nil
}
