// Package status applies status changes addressed by composite business key
// to positions and production orders.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2b33rs/codevision-backend/internal/events"
	"github.com/2b33rs/codevision-backend/internal/order"
)

var (
	ErrInvalidCompositeKey = order.ErrInvalidCompositeKey
	ErrInvalidStatus       = order.ErrInvalidStatus

	ErrInvalidStatusTransition = errors.New("status transition not allowed")
)

var tracer = otel.Tracer("github.com/2b33rs/codevision-backend/internal/status")

type Store interface {
	GetPosition(ctx context.Context, id uuid.UUID) (*order.Position, error)
	GetPositionByKey(ctx context.Context, orderNumber string, posNumber int) (*order.Position, error)
	UpdatePositionStatus(ctx context.Context, id uuid.UUID, from, to order.PositionStatus) error
	GetProductionOrderByKey(ctx context.Context, key order.Key) (*order.ProductionOrder, error)
	ListProductionOrdersByPosition(ctx context.Context, positionID uuid.UUID) ([]order.ProductionOrder, error)
	UpdateProductionOrderStatus(ctx context.Context, id uuid.UUID, from, to order.ProductionOrderStatus) error
	AdjustAmountInProduction(ctx context.Context, id uuid.UUID, delta int) error
}

// Outcome reports what an update changed. Position is set for position
// updates and for cascades; ProductionOrder for production-order updates.
type Outcome struct {
	Key             order.Key
	Changed         bool
	Position        *order.Position
	ProductionOrder *order.ProductionOrder
	Cascaded        bool
}

type Handler struct {
	store     Store
	publisher events.Publisher
}

func NewHandler(store Store, publisher events.Publisher) *Handler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Handler{store: store, publisher: publisher}
}

type statusChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// UpdateStatus parses the key, then the status against the machine the key
// addresses: two parts for a position, three for a production order.
func (h *Handler) UpdateStatus(ctx context.Context, compositeKey, newStatus string) (*Outcome, error) {
	key, err := order.ParseKey(compositeKey)
	if err != nil {
		return nil, err
	}

	if key.IsProductionOrder() {
		st, err := order.ParseProductionOrderStatus(newStatus)
		if err != nil {
			return nil, err
		}
		return h.UpdateProductionOrderStatus(ctx, key, st)
	}

	st, err := order.ParsePositionStatus(newStatus)
	if err != nil {
		return nil, err
	}
	return h.UpdatePositionStatus(ctx, key, st)
}

func (h *Handler) UpdatePositionStatus(ctx context.Context, key order.Key, to order.PositionStatus) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "status.UpdatePositionStatus")
	defer span.End()
	span.SetAttributes(attribute.String("position.key", key.String()), attribute.String("status.to", string(to)))

	pos, err := h.store.GetPositionByKey(ctx, key.OrderNumber, key.PosNumber)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Key: key, Position: pos}
	if pos.Status == to {
		return out, nil
	}
	if !pos.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: position %s from %s to %s", ErrInvalidStatusTransition, key, pos.Status, to)
	}

	from := pos.Status
	if err := h.store.UpdatePositionStatus(ctx, pos.ID, from, to); err != nil {
		return nil, fmt.Errorf("status: update position %s: %w", key, err)
	}
	pos.Status = to
	out.Changed = true

	if pos.Status.Terminal() && pos.StandardProductID != nil {
		h.releasePosition(ctx, key, pos)
	}

	events.PublishBestEffort(ctx, h.publisher, events.PositionStatusChanged, key.String(), statusChange{From: string(from), To: string(to)})
	log.Info().Stringer("key", key).Stringer("from", from).Stringer("to", to).Msg("status: position status changed")
	return out, nil
}

// releasePosition takes the production orders of a position that just
// reached COMPLETED or CANCELLED off its product's amount in production.
// Cancelled orders were released when they were cancelled.
func (h *Handler) releasePosition(ctx context.Context, key order.Key, pos *order.Position) {
	list, err := h.store.ListProductionOrdersByPosition(ctx, pos.ID)
	if err != nil {
		log.Error().Err(err).Stringer("key", key).Msg("status: failed to list production orders for finished position")
		return
	}

	produced := 0
	for _, po := range list {
		if po.Status.Outstanding() {
			produced += po.Amount
		}
	}
	if produced == 0 {
		return
	}
	if err := h.store.AdjustAmountInProduction(ctx, *pos.StandardProductID, -produced); err != nil {
		log.Error().Err(err).Stringer("key", key).Int("delta", -produced).Msg("status: failed to decrement amount in production")
	}
}

func (h *Handler) UpdateProductionOrderStatus(ctx context.Context, key order.Key, to order.ProductionOrderStatus) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "status.UpdateProductionOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("production.key", key.String()), attribute.String("status.to", string(to)))

	po, err := h.store.GetProductionOrderByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Key: key, ProductionOrder: po}
	if po.Status == to {
		return out, nil
	}
	if !po.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: production order %s from %s to %s", ErrInvalidStatusTransition, key, po.Status, to)
	}

	from := po.Status
	if err := h.store.UpdateProductionOrderStatus(ctx, po.ID, from, to); err != nil {
		return nil, fmt.Errorf("status: update production order %s: %w", key, err)
	}
	po.Status = to
	out.Changed = true

	events.PublishBestEffort(ctx, h.publisher, events.ProductionOrderStatusChanged, key.String(), statusChange{From: string(from), To: string(to)})
	log.Info().Stringer("key", key).Stringer("from", from).Stringer("to", to).Msg("status: production order status changed")

	if po.PositionID == nil {
		return out, nil
	}

	switch {
	case to == order.ProductionOrderCancelled:
		h.releaseCancelledOrder(ctx, key, po)
	case to.ReachedPickup():
		pos, cascaded, err := h.cascadePickup(ctx, key.Position(), *po.PositionID)
		if err != nil {
			log.Error().Err(err).Stringer("key", key).Msg("status: pickup cascade failed")
		}
		out.Position, out.Cascaded = pos, cascaded
	}
	return out, nil
}

// releaseCancelledOrder releases a cancelled order's amount, unless its
// position already finished and released it.
func (h *Handler) releaseCancelledOrder(ctx context.Context, key order.Key, po *order.ProductionOrder) {
	pos, err := h.store.GetPosition(ctx, *po.PositionID)
	if err != nil {
		log.Error().Err(err).Stringer("key", key).Msg("status: failed to load position of cancelled production order")
		return
	}
	if pos.StandardProductID == nil || pos.Status.Terminal() {
		return
	}
	if err := h.store.AdjustAmountInProduction(ctx, *pos.StandardProductID, -po.Amount); err != nil {
		log.Error().Err(err).Stringer("key", key).Int("delta", -po.Amount).Msg("status: failed to decrement amount in production")
	}
}

// cascadePickup moves the position to READY_FOR_PICKUP once every
// non-cancelled production order has reached pickup.
func (h *Handler) cascadePickup(ctx context.Context, posKey order.Key, positionID uuid.UUID) (*order.Position, bool, error) {
	list, err := h.store.ListProductionOrdersByPosition(ctx, positionID)
	if err != nil {
		return nil, false, err
	}

	live := 0
	for _, po := range list {
		if !po.Status.Outstanding() {
			continue
		}
		if !po.Status.ReachedPickup() {
			return nil, false, nil
		}
		live++
	}
	if live == 0 {
		return nil, false, nil
	}

	pos, err := h.store.GetPosition(ctx, positionID)
	if err != nil {
		return nil, false, err
	}
	if !pos.Status.CanTransitionTo(order.PositionReadyForPickup) {
		return pos, false, nil
	}

	from := pos.Status
	if err := h.store.UpdatePositionStatus(ctx, pos.ID, from, order.PositionReadyForPickup); err != nil {
		if errors.Is(err, order.ErrStaleStatus) {
			return pos, false, nil
		}
		return pos, false, err
	}
	pos.Status = order.PositionReadyForPickup

	events.PublishBestEffort(ctx, h.publisher, events.PositionStatusChanged, posKey.String(), statusChange{From: string(from), To: string(pos.Status)})
	log.Info().Stringer("key", posKey).Msg("status: all production orders ready, position ready for pickup")
	return pos, true, nil
}
