package http

import (
	"net/http"

	"github.com/gofrs/uuid"

	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/workflow"
)

type CreateComplaintRequest struct {
	PositionID     uuid.UUID `json:"position_id" validate:"required"`
	Reason         string    `json:"complaint_reason" validate:"required"`
	Kind           string    `json:"complaint_kind" validate:"required,oneof=INTERN EXTERN"`
	Note           string    `json:"note"`
	CreateNewOrder bool      `json:"create_new_order"`
}

type CancelFailureResponse struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

type ComplaintResponse struct {
	Complaint      *order.Complaint        `json:"complaint"`
	Cancelled      []string                `json:"cancelled_production_orders"`
	CancelFailures []CancelFailureResponse `json:"cancel_failures,omitempty"`
	Replacement    *OrderResponse          `json:"replacement,omitempty"`
	ReplacementErr string                  `json:"replacement_error,omitempty"`
	PositionErr    string                  `json:"position_error,omitempty"`
}

func newComplaintResponse(res *workflow.ComplaintResult) ComplaintResponse {
	out := ComplaintResponse{Complaint: res.Complaint, Cancelled: make([]string, 0, len(res.Cancelled))}
	for _, k := range res.Cancelled {
		out.Cancelled = append(out.Cancelled, k.String())
	}
	for _, f := range res.CancelFailures {
		out.CancelFailures = append(out.CancelFailures, CancelFailureResponse{Key: f.Key.String(), Error: f.Err.Error()})
	}
	if res.Replacement != nil {
		r := newOrderResponse(res.Replacement)
		out.Replacement = &r
	}
	if res.ReplacementErr != nil {
		out.ReplacementErr = res.ReplacementErr.Error()
	}
	if res.PositionErr != nil {
		out.PositionErr = res.PositionErr.Error()
	}
	return out
}

func (h *Handler) handleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	var req CreateComplaintRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.orders.CreateComplaint(r.Context(), workflow.ComplaintInput{
		PositionID:     req.PositionID,
		Reason:         order.ComplaintReason(req.Reason),
		Kind:           order.ComplaintKind(req.Kind),
		Note:           req.Note,
		CreateNewOrder: req.CreateNewOrder,
	})
	if err != nil {
		respondWithServiceError(w, err, "failed to create complaint")
		return
	}

	code := http.StatusCreated
	if res.Err() != nil {
		code = http.StatusAccepted
	}
	respondWithJSON(w, code, newComplaintResponse(res))
}

func (h *Handler) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	var filter order.ComplaintFilter
	q := r.URL.Query()
	for param, dst := range map[string]**uuid.UUID{
		"positionId": &filter.PositionID,
		"orderId":    &filter.OrderID,
		"customerId": &filter.CustomerID,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		id, ok := uuidParam(w, raw, param)
		if !ok {
			return
		}
		*dst = &id
	}

	complaints, err := h.queries.ListComplaints(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "failed to list complaints")
		return
	}
	respondWithJSON(w, http.StatusOK, complaints)
}
