package order

import (
	"context"
	"fmt"
	"time"
)

func (r *postgresRepository) CreateComplaint(ctx context.Context, c *Complaint) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO order_service.complaints (
			id, position_id, complaint_reason, complaint_kind, note, create_new_order, new_order_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.Exec(ctx, query,
		id, c.PositionID, string(c.Reason), string(c.Kind), c.Note, c.CreateNewOrder, c.NewOrderID, now,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert complaint for position %s: %w", c.PositionID, err)
	}

	c.ID = id
	c.CreatedAt = now
	return nil
}

func (r *postgresRepository) ListComplaints(ctx context.Context, filter ComplaintFilter) ([]Complaint, error) {
	query := `
		SELECT c.id, c.position_id, c.complaint_reason, c.complaint_kind, c.note,
			c.create_new_order, c.new_order_id, c.created_at
		FROM order_service.complaints c
		JOIN order_service.positions p ON p.id = c.position_id
		JOIN order_service.orders o ON o.id = p.order_id
	`
	var args []any
	switch {
	case filter.PositionID != nil:
		query += ` WHERE c.position_id = $1`
		args = append(args, *filter.PositionID)
	case filter.OrderID != nil:
		query += ` WHERE p.order_id = $1`
		args = append(args, *filter.OrderID)
	case filter.CustomerID != nil:
		query += ` WHERE o.customer_id = $1`
		args = append(args, *filter.CustomerID)
	}
	query += ` ORDER BY c.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query complaints: %w", err)
	}
	defer rows.Close()

	complaints := make([]Complaint, 0)
	for rows.Next() {
		var c Complaint
		err := rows.Scan(&c.ID, &c.PositionID, &c.Reason, &c.Kind, &c.Note, &c.CreateNewOrder, &c.NewOrderID, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating complaints: %w", err)
	}
	return complaints, nil
}
