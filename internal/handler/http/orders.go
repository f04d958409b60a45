package http

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/status"
	"github.com/2b33rs/codevision-backend/internal/workflow"
)

type PositionRequest struct {
	Name              string          `json:"name" validate:"required"`
	Description       string          `json:"description"`
	Amount            int             `json:"amount" validate:"required,gt=0"`
	Price             decimal.Decimal `json:"price"`
	Category          string          `json:"product_category" validate:"required,oneof=T_SHIRT"`
	Design            string          `json:"design"`
	Color             string          `json:"color"`
	Size              string          `json:"shirt_size" validate:"required,oneof=S M L XL"`
	SubType           string          `json:"typ"`
	StandardProductID *uuid.UUID      `json:"standard_product_id,omitempty"`
}

type CreateOrderRequest struct {
	CustomerID *uuid.UUID        `json:"customer_id,omitempty"`
	Positions  []PositionRequest `json:"positions" validate:"required,min=1,dive"`
}

type RestockRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AllocationResponse struct {
	Key              string   `json:"key"`
	FromStock        int      `json:"from_stock"`
	Printed          int      `json:"printed"`
	DyedAndPrinted   int      `json:"dyed_and_printed"`
	ProductionOrders []string `json:"production_orders"`
	Error            string   `json:"error,omitempty"`
}

type OrderResponse struct {
	Order          *order.Order         `json:"order"`
	Allocations    []AllocationResponse `json:"allocations"`
	NeedsAttention bool                 `json:"needs_attention"`
}

type StatusResponse struct {
	Key             string                 `json:"key"`
	Changed         bool                   `json:"changed"`
	Cascaded        bool                   `json:"cascaded"`
	Position        *order.Position        `json:"position,omitempty"`
	ProductionOrder *order.ProductionOrder `json:"production_order,omitempty"`
}

func newOrderResponse(res *workflow.OrderResult) OrderResponse {
	out := OrderResponse{
		Order:          res.Order,
		Allocations:    make([]AllocationResponse, 0, len(res.Allocations)),
		NeedsAttention: res.NeedsAttention(),
	}
	for _, a := range res.Allocations {
		ar := AllocationResponse{Key: a.Key.String(), ProductionOrders: make([]string, 0)}
		if a.Result != nil {
			ar.FromStock = a.Result.FromStock
			ar.Printed = a.Result.Printed
			ar.DyedAndPrinted = a.Result.DyedAndPrinted
			for _, po := range a.Result.ProductionOrders {
				ar.ProductionOrders = append(ar.ProductionOrders, a.Key.WithSequence(po.SequenceNumber).String())
			}
		}
		if a.Err != nil {
			ar.Error = a.Err.Error()
		}
		out.Allocations = append(out.Allocations, ar)
	}
	return out
}

// orderCreatedStatus is 201 when every position was fully allocated and 202
// when some position still needs attention.
func orderCreatedStatus(res *workflow.OrderResult) int {
	if res.NeedsAttention() {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	inputs := make([]workflow.PositionInput, 0, len(req.Positions))
	for _, p := range req.Positions {
		inputs = append(inputs, workflow.PositionInput{
			Name:              p.Name,
			Description:       p.Description,
			Amount:            p.Amount,
			Price:             p.Price,
			Category:          order.ProductCategory(p.Category),
			Design:            p.Design,
			Color:             p.Color,
			Size:              order.ShirtSize(p.Size),
			SubType:           p.SubType,
			StandardProductID: p.StandardProductID,
		})
	}

	res, err := h.orders.CreateOrder(r.Context(), req.CustomerID, inputs)
	if err != nil {
		respondWithServiceError(w, err, "failed to create order")
		return
	}
	respondWithJSON(w, orderCreatedStatus(res), newOrderResponse(res))
}

func (h *Handler) handleCreateRestockOrder(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.orders.CreateInternalRestockOrder(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		respondWithServiceError(w, err, "failed to create restock order")
		return
	}
	respondWithJSON(w, orderCreatedStatus(res), newOrderResponse(res))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	o, err := h.queries.GetOrderByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

// handleListOrders needs customerId, status or both; with both, only orders
// of that customer with a position in that status are returned.
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	rawCustomer := r.URL.Query().Get("customerId")
	rawStatus := r.URL.Query().Get("status")

	var st order.PositionStatus
	if rawStatus != "" {
		var err error
		if st, err = order.ParsePositionStatus(rawStatus); err != nil {
			respondWithServiceError(w, err, "failed to list orders")
			return
		}
	}

	var (
		orders []order.Order
		err    error
	)
	switch {
	case rawCustomer != "":
		customerID, ok := uuidParam(w, rawCustomer, "customerId")
		if !ok {
			return
		}
		orders, err = h.queries.ListOrdersByCustomer(r.Context(), customerID)
		if err == nil && st != "" {
			orders = slices.DeleteFunc(orders, func(o order.Order) bool {
				return !slices.ContainsFunc(o.Positions, func(p order.Position) bool { return p.Status == st })
			})
		}
	case st != "":
		orders, err = h.queries.ListOrdersWithPositionStatus(r.Context(), st)
	default:
		respondWithError(w, http.StatusBadRequest, "customerId or status query parameter is required")
		return
	}
	if err != nil {
		respondWithServiceError(w, err, "failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleListProductionOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	if _, err := h.queries.GetPosition(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "failed to get position")
		return
	}
	pos, err := h.queries.ListProductionOrdersByPosition(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "failed to list production orders")
		return
	}
	respondWithJSON(w, http.StatusOK, pos)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	outcome, err := h.statuses.UpdateStatus(r.Context(), chi.URLParam(r, "compositeKey"), req.Status)
	if err != nil {
		respondWithServiceError(w, err, "failed to update status")
		return
	}
	respondWithJSON(w, http.StatusOK, newStatusResponse(outcome))
}

func newStatusResponse(o *status.Outcome) StatusResponse {
	return StatusResponse{
		Key:             o.Key.String(),
		Changed:         o.Changed,
		Cascaded:        o.Cascaded,
		Position:        o.Position,
		ProductionOrder: o.ProductionOrder,
	}
}
