// Package allocation splits a position's quantity across finished stock,
// dyed blanks that only need printing, and white blanks that need dyeing
// and printing.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/2b33rs/codevision-backend/internal/cmyk"
	"github.com/2b33rs/codevision-backend/internal/inventory"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/production"
)

var tracer = otel.Tracer("github.com/2b33rs/codevision-backend/internal/allocation")

type StockQuerier interface {
	QueryStock(ctx context.Context, sig inventory.Signature) (inventory.Stock, error)
}

type Dispatcher interface {
	CreateProductionOrder(ctx context.Context, req production.Request) (*order.ProductionOrder, error)
}

type ProductCounter interface {
	AdjustAmountInProduction(ctx context.Context, id uuid.UUID, delta int) error
}

// Result describes how one position was covered.
type Result struct {
	Key              order.Key
	FromStock        int
	Printed          int
	DyedAndPrinted   int
	ProductionOrders []order.ProductionOrder
	// DispatchFailed is set when a tier's production order could not be
	// handed to the production service.
	DispatchFailed bool
}

func (r *Result) NeedsAttention() bool {
	return r != nil && r.DispatchFailed
}

type Engine struct {
	stock      StockQuerier
	dispatcher Dispatcher
	counter    ProductCounter
	policy     ReservationPolicy
}

type Option func(*Engine)

func WithReservationPolicy(p ReservationPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func NewEngine(stock StockQuerier, dispatcher Dispatcher, counter ProductCounter, opts ...Option) *Engine {
	e := &Engine{stock: stock, dispatcher: dispatcher, counter: counter, policy: NoReservation{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type tier struct {
	name   string
	dyeing bool
}

var (
	tierPrint       = tier{name: "B", dyeing: false}
	tierDyeAndPrint = tier{name: "C", dyeing: true}
)

// Allocate covers pos from stock and production. An inventory error aborts
// the position and is returned as is; dispatch failures are joined into the
// returned error and flag the result, but never stop the next tier.
func (e *Engine) Allocate(ctx context.Context, o *order.Order, pos *order.Position, orderType order.OrderType) (*Result, error) {
	key := order.Key{OrderNumber: o.OrderNumber, PosNumber: pos.PosNumber}

	ctx, span := tracer.Start(ctx, "allocation.Allocate", trace.WithAttributes(
		attribute.String("position.key", key.String()),
		attribute.Int("position.amount", pos.Amount),
		attribute.String("production.order_type", string(orderType)),
	))
	defer span.End()

	res := &Result{Key: key, ProductionOrders: make([]order.ProductionOrder, 0, 2)}
	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	sig := inventory.Signature{
		Category: string(pos.Category),
		Size:     string(pos.Size),
		Color:    pos.Color,
		Design:   pos.Design,
		SubType:  pos.SubType,
	}

	stockA, err := e.stock.QueryStock(ctx, sig)
	if err != nil {
		return fail(fmt.Errorf("allocation: tier A stock for %s: %w", key, err))
	}
	res.FromStock = min(max(stockA.Count, 0), pos.Amount)
	remaining := pos.Amount - max(stockA.Count, 0)

	if err := e.policy.Reserve(ctx, key, stockA, pos.Amount); err != nil {
		return fail(err)
	}

	if remaining <= 0 {
		span.SetAttributes(attribute.Int("allocation.from_stock", res.FromStock))
		log.Debug().Stringer("key", key).Int("stock", stockA.Count).Msg("allocation: covered by finished stock")
		return res, nil
	}

	var dispatchErrs []error

	blank := sig
	blank.Design = ""
	stockB, err := e.stock.QueryStock(ctx, blank)
	if err != nil {
		return fail(fmt.Errorf("allocation: tier B stock for %s: %w", key, err))
	}

	toPrint := min(remaining, max(0, stockB.Count))
	if toPrint > 0 {
		if err := e.produce(ctx, res, pos, orderType, tierPrint, toPrint, stockB.MaterialID); err != nil {
			dispatchErrs = append(dispatchErrs, err)
		}
		res.Printed = toPrint
		remaining -= toPrint
	}

	if remaining > 0 {
		white := blank
		white.Color = cmyk.White.String()
		stockC, err := e.stock.QueryStock(ctx, white)
		if err != nil {
			return fail(errors.Join(append(dispatchErrs, fmt.Errorf("allocation: tier C stock for %s: %w", key, err))...))
		}
		if err := e.produce(ctx, res, pos, orderType, tierDyeAndPrint, remaining, stockC.MaterialID); err != nil {
			dispatchErrs = append(dispatchErrs, err)
		}
		res.DyedAndPrinted = remaining
	}

	span.SetAttributes(
		attribute.Int("allocation.from_stock", res.FromStock),
		attribute.Int("allocation.printed", res.Printed),
		attribute.Int("allocation.dyed_and_printed", res.DyedAndPrinted),
	)

	if len(dispatchErrs) > 0 {
		return fail(errors.Join(dispatchErrs...))
	}
	return res, nil
}

// produce dispatches one production order and books it against the
// position's standard product. The product counter follows the local record,
// so it is adjusted even when only the remote dispatch failed.
func (e *Engine) produce(ctx context.Context, res *Result, pos *order.Position, orderType order.OrderType, t tier, qty int, materialID *int64) error {
	var color *cmyk.Channels
	if channels, ok := cmyk.Decode(pos.Color); ok {
		color = &channels
	}

	articleNumber := ""
	if materialID != nil {
		articleNumber = strconv.FormatInt(*materialID, 10)
	}

	po, err := e.dispatcher.CreateProductionOrder(ctx, production.Request{
		PositionID:      pos.ID,
		Quantity:        qty,
		DesignURL:       pos.Design,
		OrderType:       orderType,
		DyeingNecessary: t.dyeing,
		MaterialID:      materialID,
		Template: order.ProductTemplate{
			Category:      string(pos.Category),
			ArticleNumber: articleNumber,
			Size:          string(pos.Size),
			Color:         color,
			SubType:       pos.SubType,
		},
	})
	if po != nil {
		res.ProductionOrders = append(res.ProductionOrders, *po)
		e.bookProduction(ctx, pos, qty)
	}
	if err != nil {
		res.DispatchFailed = true
		log.Error().Err(err).Stringer("key", res.Key).Str("tier", t.name).Int("amount", qty).Msg("allocation: production dispatch failed")
		return fmt.Errorf("allocation: tier %s for %s: %w", t.name, res.Key, err)
	}
	return nil
}

func (e *Engine) bookProduction(ctx context.Context, pos *order.Position, qty int) {
	if pos.StandardProductID == nil {
		return
	}
	if err := e.counter.AdjustAmountInProduction(ctx, *pos.StandardProductID, qty); err != nil {
		log.Error().Err(err).Stringer("standard_product_id", *pos.StandardProductID).Int("delta", qty).Msg("allocation: failed to increment amount in production")
	}
}
