package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/2b33rs/codevision-backend/internal/events"
	"github.com/2b33rs/codevision-backend/internal/order"
)

var ErrInvalidComplaint = errors.New("invalid complaint")

type ComplaintInput struct {
	PositionID     uuid.UUID
	Reason         order.ComplaintReason
	Kind           order.ComplaintKind
	Note           string
	CreateNewOrder bool
}

func (in ComplaintInput) validate() error {
	switch in.Reason {
	case order.ReasonWrongSize, order.ReasonWrongColor, order.ReasonPrintIncorrect, order.ReasonPrintOffCenter,
		order.ReasonDamagedItem, order.ReasonStained, order.ReasonLateDelivery, order.ReasonWrongProduct,
		order.ReasonMissingItem, order.ReasonBadQuality, order.ReasonNotAsDescribed, order.ReasonOther:
	default:
		return fmt.Errorf("%w: unknown reason %q", ErrInvalidComplaint, in.Reason)
	}
	switch in.Kind {
	case order.ComplaintIntern, order.ComplaintExtern:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidComplaint, in.Kind)
	}
	return nil
}

// CancelFailure is a production order the saga could not cancel.
type CancelFailure struct {
	Key order.Key
	Err error
}

// ComplaintResult records every step of the saga. Only a failure to persist
// the complaint itself fails the call; the other steps report here.
type ComplaintResult struct {
	Complaint      *order.Complaint
	Cancelled      []order.Key
	CancelFailures []CancelFailure
	Replacement    *OrderResult
	ReplacementErr error
	PositionErr    error
}

// Err joins the errors of all steps that did not complete.
func (r *ComplaintResult) Err() error {
	var errs []error
	for _, f := range r.CancelFailures {
		errs = append(errs, fmt.Errorf("cancel %s: %w", f.Key, f.Err))
	}
	if r.ReplacementErr != nil {
		errs = append(errs, fmt.Errorf("replacement order: %w", r.ReplacementErr))
	}
	if r.PositionErr != nil {
		errs = append(errs, fmt.Errorf("cancel position: %w", r.PositionErr))
	}
	return errors.Join(errs...)
}

type complaintPayload struct {
	ComplaintID uuid.UUID             `json:"complaint_id"`
	PositionKey string                `json:"position_key"`
	Reason      order.ComplaintReason `json:"reason"`
	Kind        order.ComplaintKind   `json:"kind"`
	NewOrderID  *uuid.UUID            `json:"new_order_id,omitempty"`
}

// CreateComplaint cancels the complained position and its outstanding
// production orders, optionally raises a replacement order for the same
// customer, and records the complaint.
func (s *Service) CreateComplaint(ctx context.Context, in ComplaintInput) (*ComplaintResult, error) {
	ctx, span := tracer.Start(ctx, "workflow.CreateComplaint")
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}
	pos, err := s.store.GetPosition(ctx, in.PositionID)
	if err != nil {
		return nil, err
	}
	o, err := s.store.GetOrderByID(ctx, pos.OrderID)
	if err != nil {
		return nil, fmt.Errorf("service: load order of position %s: %w", pos.Key(), err)
	}

	res := &ComplaintResult{}
	s.cancelProductionOrders(ctx, pos, res)

	if in.CreateNewOrder {
		res.Replacement, res.ReplacementErr = s.CreateReplacementOrder(ctx, o.CustomerID, *pos, order.OrderTypeComplaint)
		if res.ReplacementErr != nil {
			log.Error().Err(res.ReplacementErr).Stringer("key", pos.Key()).Msg("service: replacement order failed")
		}
	}

	if pos.Status != order.PositionCancelled {
		if _, err := s.statuses.UpdatePositionStatus(ctx, pos.Key(), order.PositionCancelled); err != nil {
			res.PositionErr = err
			log.Error().Err(err).Stringer("key", pos.Key()).Msg("service: failed to cancel complained position")
		}
	}

	c := &order.Complaint{
		PositionID:     pos.ID,
		Reason:         in.Reason,
		Kind:           in.Kind,
		Note:           strings.TrimSpace(s.notes.Sanitize(in.Note)),
		CreateNewOrder: in.CreateNewOrder,
	}
	if res.Replacement != nil {
		c.NewOrderID = &res.Replacement.Order.ID
	}
	if err := s.store.CreateComplaint(ctx, c); err != nil {
		return res, fmt.Errorf("service: failed to record complaint: %w", err)
	}
	res.Complaint = c

	events.PublishBestEffort(ctx, s.publisher, events.ComplaintCreated, pos.Key().String(), complaintPayload{
		ComplaintID: c.ID,
		PositionKey: pos.Key().String(),
		Reason:      c.Reason,
		Kind:        c.Kind,
		NewOrderID:  c.NewOrderID,
	})
	log.Info().Stringer("key", pos.Key()).Str("reason", string(c.Reason)).Bool("replacement", c.NewOrderID != nil).Msg("service: complaint recorded")

	return res, nil
}

// cancelProductionOrders cancels remotely first. A production order whose
// remote cancel fails keeps its local status so it can be retried.
func (s *Service) cancelProductionOrders(ctx context.Context, pos *order.Position, res *ComplaintResult) {
	productionOrders, err := s.store.ListProductionOrdersByPosition(ctx, pos.ID)
	if err != nil {
		res.CancelFailures = append(res.CancelFailures, CancelFailure{Key: pos.Key(), Err: err})
		log.Error().Err(err).Stringer("key", pos.Key()).Msg("service: failed to list production orders")
		return
	}

	for _, po := range productionOrders {
		if !po.Status.CanTransitionTo(order.ProductionOrderCancelled) {
			continue
		}
		key := pos.Key().WithSequence(po.SequenceNumber)
		if err := s.canceller.CancelProductionOrder(ctx, key); err != nil {
			res.CancelFailures = append(res.CancelFailures, CancelFailure{Key: key, Err: err})
			log.Error().Err(err).Stringer("key", key).Msg("service: remote cancel failed")
			continue
		}
		if _, err := s.statuses.UpdateProductionOrderStatus(ctx, key, order.ProductionOrderCancelled); err != nil {
			res.CancelFailures = append(res.CancelFailures, CancelFailure{Key: key, Err: err})
			log.Error().Err(err).Stringer("key", key).Msg("service: local cancel failed")
			continue
		}
		res.Cancelled = append(res.Cancelled, key)
	}
}
