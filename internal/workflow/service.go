// Package workflow creates orders and runs allocation for each of their
// positions. It also drives complaints and the catalog stock view.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/2b33rs/codevision-backend/internal/allocation"
	"github.com/2b33rs/codevision-backend/internal/cmyk"
	"github.com/2b33rs/codevision-backend/internal/events"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/status"
)

var (
	ErrNoPositions     = errors.New("order must have at least one position")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

var tracer = otel.Tracer("github.com/2b33rs/codevision-backend/internal/workflow")

type Store interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*order.Customer, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	GetPosition(ctx context.Context, id uuid.UUID) (*order.Position, error)
	ListProductionOrdersByPosition(ctx context.Context, positionID uuid.UUID) ([]order.ProductionOrder, error)
	GetStandardProduct(ctx context.Context, id uuid.UUID) (*order.StandardProduct, error)
	CreateComplaint(ctx context.Context, c *order.Complaint) error
}

type Allocator interface {
	Allocate(ctx context.Context, o *order.Order, pos *order.Position, orderType order.OrderType) (*allocation.Result, error)
}

type Canceller interface {
	CancelProductionOrder(ctx context.Context, key order.Key) error
}

type StatusUpdater interface {
	UpdatePositionStatus(ctx context.Context, key order.Key, to order.PositionStatus) (*status.Outcome, error)
	UpdateProductionOrderStatus(ctx context.Context, key order.Key, to order.ProductionOrderStatus) (*status.Outcome, error)
}

type Service struct {
	store       Store
	allocator   Allocator
	canceller   Canceller
	statuses    StatusUpdater
	publisher   events.Publisher
	concurrency int
	notes       *bluemonday.Policy
}

type Option func(*Service)

// WithConcurrency bounds how many positions of one order are allocated at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func NewService(store Store, allocator Allocator, canceller Canceller, statuses StatusUpdater, opts ...Option) *Service {
	s := &Service{
		store:       store,
		allocator:   allocator,
		canceller:   canceller,
		statuses:    statuses,
		publisher:   events.NopPublisher{},
		concurrency: 4,
		notes:       bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PositionInput struct {
	Name              string
	Description       string
	Amount            int
	Price             decimal.Decimal
	Category          order.ProductCategory
	Design            string
	Color             string
	Size              order.ShirtSize
	SubType           string
	StandardProductID *uuid.UUID
}

func (in PositionInput) validate(n int) error {
	switch {
	case in.Name == "":
		return fmt.Errorf("%w %d: name is required", ErrInvalidPosition, n)
	case in.Amount <= 0:
		return fmt.Errorf("%w %d: %w, got %d", ErrInvalidPosition, n, ErrInvalidQuantity, in.Amount)
	case in.Price.IsNegative():
		return fmt.Errorf("%w %d: price must not be negative", ErrInvalidPosition, n)
	case in.Category != order.CategoryTShirt:
		return fmt.Errorf("%w %d: unknown product category %q", ErrInvalidPosition, n, in.Category)
	}
	switch in.Size {
	case order.SizeS, order.SizeM, order.SizeL, order.SizeXL:
	default:
		return fmt.Errorf("%w %d: unknown shirt size %q", ErrInvalidPosition, n, in.Size)
	}
	if in.Color != "" {
		if _, err := cmyk.Parse(in.Color); err != nil {
			return fmt.Errorf("%w %d: %w", ErrInvalidPosition, n, err)
		}
	}
	return nil
}

func (in PositionInput) position(posNumber int) order.Position {
	return order.Position{
		PosNumber:         posNumber,
		Name:              in.Name,
		Description:       in.Description,
		Amount:            in.Amount,
		Price:             in.Price,
		Category:          in.Category,
		Design:            in.Design,
		Color:             in.Color,
		Size:              in.Size,
		SubType:           in.SubType,
		StandardProductID: in.StandardProductID,
	}
}

// PositionAllocation is the allocation outcome of one position. Err is set
// when the position needs an operator or a retry.
type PositionAllocation struct {
	Key    order.Key          `json:"key"`
	Result *allocation.Result `json:"result,omitempty"`
	Err    error              `json:"-"`
}

type OrderResult struct {
	Order       *order.Order
	Allocations []PositionAllocation
}

// NeedsAttention reports whether any position failed to allocate completely.
func (r *OrderResult) NeedsAttention() bool {
	for _, a := range r.Allocations {
		if a.Err != nil {
			return true
		}
	}
	return false
}

// Err joins the allocation errors of all positions.
func (r *OrderResult) Err() error {
	var errs []error
	for _, a := range r.Allocations {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errors.Join(errs...)
}

// CreateOrder stores an order with its positions and allocates each
// position. Allocation failures are reported per position in the result;
// they never fail the call or affect sibling positions.
func (s *Service) CreateOrder(ctx context.Context, customerID *uuid.UUID, inputs []PositionInput) (*OrderResult, error) {
	if len(inputs) == 0 {
		return nil, ErrNoPositions
	}
	positions := make([]order.Position, 0, len(inputs))
	for i, in := range inputs {
		if err := in.validate(i + 1); err != nil {
			return nil, err
		}
		positions = append(positions, in.position(i+1))
	}
	return s.createAndAllocate(ctx, customerID, positions, order.OrderTypeStandard)
}

// CreateReplacementOrder copies the descriptive attributes of template into a
// new single-position order. An empty orderType means COMPLAINT.
func (s *Service) CreateReplacementOrder(ctx context.Context, customerID *uuid.UUID, template order.Position, orderType order.OrderType) (*OrderResult, error) {
	if orderType == "" {
		orderType = order.OrderTypeComplaint
	}
	if template.Amount <= 0 {
		return nil, fmt.Errorf("%w: %w, got %d", ErrInvalidPosition, ErrInvalidQuantity, template.Amount)
	}
	pos := order.Position{
		PosNumber:         1,
		Name:              template.Name,
		Description:       template.Description,
		Amount:            template.Amount,
		Price:             template.Price,
		Category:          template.Category,
		Design:            template.Design,
		Color:             template.Color,
		Size:              template.Size,
		SubType:           template.SubType,
		StandardProductID: template.StandardProductID,
	}
	return s.createAndAllocate(ctx, customerID, []order.Position{pos}, orderType)
}

// CreateInternalRestockOrder builds a customerless order for quantity units
// of a catalog product.
func (s *Service) CreateInternalRestockOrder(ctx context.Context, productID uuid.UUID, quantity int) (*OrderResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidQuantity, quantity)
	}
	product, err := s.store.GetStandardProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	pos := order.Position{
		PosNumber:         1,
		Name:              product.Name,
		Amount:            quantity,
		Category:          product.Category,
		Color:             product.Color,
		Size:              product.Size,
		SubType:           product.PrimarySubType(),
		StandardProductID: &product.ID,
	}
	return s.createAndAllocate(ctx, nil, []order.Position{pos}, order.OrderTypeInternal)
}

func (s *Service) createAndAllocate(ctx context.Context, customerID *uuid.UUID, positions []order.Position, orderType order.OrderType) (*OrderResult, error) {
	ctx, span := tracer.Start(ctx, "workflow.createAndAllocate")
	defer span.End()
	span.SetAttributes(attribute.Int("order.positions", len(positions)), attribute.String("production.order_type", string(orderType)))

	if customerID != nil {
		if _, err := s.store.GetCustomer(ctx, *customerID); err != nil {
			return nil, err
		}
	}

	o := &order.Order{CustomerID: customerID, Positions: positions}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}
	span.SetAttributes(attribute.String("order.number", o.OrderNumber))
	log.Info().Str("order_number", o.OrderNumber).Int("positions", len(o.Positions)).Str("order_type", string(orderType)).Msg("service: order created")

	res := &OrderResult{Order: o, Allocations: make([]PositionAllocation, len(o.Positions))}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range o.Positions {
		pos := &o.Positions[i]
		g.Go(func() error {
			alloc, err := s.allocator.Allocate(ctx, o, pos, orderType)
			if err != nil {
				log.Error().Err(err).Stringer("key", pos.Key()).Msg("service: allocation needs attention")
			}
			res.Allocations[i] = PositionAllocation{Key: pos.Key(), Result: alloc, Err: err}
			if alloc != nil {
				pos.ProductionOrders = alloc.ProductionOrders
			} else {
				pos.ProductionOrders = make([]order.ProductionOrder, 0)
			}
			return nil
		})
	}
	// Failures are recorded per position; no goroutine returns an error.
	g.Wait()

	return res, nil
}
