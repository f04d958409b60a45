// Package production creates and cancels production orders. Every order is
// stored locally before the production service hears about it.
package production

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2b33rs/codevision-backend/internal/events"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/retry"
)

var ErrInvalidQuantity = errors.New("production order quantity must be positive")

// errSequenceConflict marks a lost race for a sequence number. It is retried
// and never returned to callers.
var errSequenceConflict = errors.New("production: sequence number conflict")

var tracer = otel.Tracer("github.com/2b33rs/codevision-backend/internal/production")

// DispatchError reports a production order that was stored locally but not
// accepted by the production service.
type DispatchError struct {
	Key             order.Key
	ProductionOrder *order.ProductionOrder
	Err             error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("production: dispatch of %s failed: %v", e.Key, e.Err)
}

func (e *DispatchError) Unwrap() []error {
	return []error{ErrProductionDispatchFailed, e.Err}
}

type Remote interface {
	Create(ctx context.Context, key order.Key, po order.ProductionOrder) error
	Cancel(ctx context.Context, key order.Key) error
}

type Store interface {
	GetPosition(ctx context.Context, id uuid.UUID) (*order.Position, error)
	CreateProductionOrder(ctx context.Context, po *order.ProductionOrder) error
}

type Request struct {
	PositionID      uuid.UUID
	Quantity        int
	DesignURL       string
	OrderType       order.OrderType
	DyeingNecessary bool
	MaterialID      *int64
	Template        order.ProductTemplate
}

type Dispatcher struct {
	store     Store
	remote    Remote
	publisher events.Publisher
	attempts  int
	retryOpts []retry.Option
}

type Option func(*Dispatcher)

// WithSequenceRetryAttempts bounds how often a lost sequence-number race is retried.
func WithSequenceRetryAttempts(n int) Option {
	return func(d *Dispatcher) { d.attempts = n }
}

func WithRetryOptions(opts ...retry.Option) Option {
	return func(d *Dispatcher) { d.retryOpts = append(d.retryOpts, opts...) }
}

func NewDispatcher(store Store, remote Remote, publisher events.Publisher, opts ...Option) *Dispatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	d := &Dispatcher{store: store, remote: remote, publisher: publisher, attempts: 5}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateProductionOrder stores a production order under the next sequence
// number of its position and dispatches it. When only the dispatch fails, the
// stored order is returned together with a *DispatchError.
func (d *Dispatcher) CreateProductionOrder(ctx context.Context, req Request) (*order.ProductionOrder, error) {
	ctx, span := tracer.Start(ctx, "production.CreateProductionOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("position.id", req.PositionID.String()),
		attribute.Int("production.quantity", req.Quantity),
		attribute.Bool("production.dyeing", req.DyeingNecessary),
		attribute.String("production.order_type", string(req.OrderType)),
	)

	if req.Quantity <= 0 {
		span.SetStatus(codes.Error, "invalid quantity")
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, req.Quantity)
	}

	pos, err := d.store.GetPosition(ctx, req.PositionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("production: load position %s: %w", req.PositionID, err)
	}

	positionID := req.PositionID
	var po order.ProductionOrder
	err = retry.DoWith(ctx, d.attempts, isSequenceConflict, func(ctx context.Context) error {
		candidate := order.ProductionOrder{
			PositionID:      &positionID,
			Amount:          req.Quantity,
			DesignURL:       req.DesignURL,
			OrderType:       req.OrderType,
			DyeingNecessary: req.DyeingNecessary,
			MaterialID:      req.MaterialID,
			Template:        req.Template,
			Status:          order.ProductionOrderReceived,
		}
		if err := d.store.CreateProductionOrder(ctx, &candidate); err != nil {
			if errors.Is(err, order.ErrSequenceTaken) {
				log.Debug().Stringer("position_id", positionID).Msg("production: sequence number taken, retrying")
				return errSequenceConflict
			}
			return err
		}
		po = candidate
		return nil
	}, d.retryOpts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		if errors.Is(err, retry.ErrAttemptsExhausted) {
			log.Error().Err(err).Stringer("position_id", positionID).Msg("production: could not allocate a sequence number")
			return nil, fmt.Errorf("%w: no free sequence number for position %s", ErrProductionDispatchFailed, positionID)
		}
		return nil, fmt.Errorf("production: persist production order: %w", err)
	}

	key := pos.Key().WithSequence(po.SequenceNumber)
	span.SetAttributes(attribute.String("production.key", key.String()))

	events.PublishBestEffort(ctx, d.publisher, events.ProductionOrderCreated, key.String(), createdPayload{
		ProductionOrderID: po.ID,
		Amount:            po.Amount,
		OrderType:         po.OrderType,
		DyeingNecessary:   po.DyeingNecessary,
	})

	if err := d.remote.Create(ctx, key, po); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		log.Warn().Err(err).Stringer("key", key).Msg("production: dispatch failed, production order kept locally")
		return &po, &DispatchError{Key: key, ProductionOrder: &po, Err: err}
	}

	log.Info().Stringer("key", key).Int("amount", po.Amount).Bool("dyeing", po.DyeingNecessary).Msg("production: production order dispatched")
	return &po, nil
}

// CancelProductionOrder asks the production service to cancel the order with key.
func (d *Dispatcher) CancelProductionOrder(ctx context.Context, key order.Key) error {
	ctx, span := tracer.Start(ctx, "production.CancelProductionOrder")
	defer span.End()
	span.SetAttributes(attribute.String("production.key", key.String()))

	if !key.IsProductionOrder() {
		return fmt.Errorf("%w: %s does not address a production order", order.ErrInvalidCompositeKey, key)
	}
	if err := d.remote.Cancel(ctx, key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return err
	}
	return nil
}

type createdPayload struct {
	ProductionOrderID uuid.UUID       `json:"production_order_id"`
	Amount            int             `json:"amount"`
	OrderType         order.OrderType `json:"order_type"`
	DyeingNecessary   bool            `json:"dyeing_necessary"`
}

func isSequenceConflict(err error) bool {
	return errors.Is(err, errSequenceConflict)
}
