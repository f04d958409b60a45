package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/2b33rs/codevision-backend/internal/cmyk"
	"github.com/2b33rs/codevision-backend/internal/inventory"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/production"
	"github.com/2b33rs/codevision-backend/internal/status"
	"github.com/2b33rs/codevision-backend/internal/workflow"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

// respondWithServiceError logs err and answers with its mapped status code.
// Client errors carry the error text; server errors a generic message.
func respondWithServiceError(w http.ResponseWriter, err error, message string) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("handler: " + message)
		respondWithError(w, code, message)
		return
	}
	log.Warn().Err(err).Int("status", code).Msg("handler: " + message)
	respondWithError(w, code, err.Error())
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrPositionNotFound),
		errors.Is(err, order.ErrProductionOrderNotFound),
		errors.Is(err, order.ErrStandardProductNotFound),
		errors.Is(err, order.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidCompositeKey),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, workflow.ErrNoPositions),
		errors.Is(err, workflow.ErrInvalidPosition),
		errors.Is(err, workflow.ErrInvalidQuantity),
		errors.Is(err, workflow.ErrInvalidComplaint),
		errors.Is(err, production.ErrInvalidQuantity),
		errors.Is(err, cmyk.ErrInvalidColorSpec),
		errors.Is(err, cmyk.ErrInvalidChannelRange):
		return http.StatusBadRequest
	case errors.Is(err, status.ErrInvalidStatusTransition),
		errors.Is(err, order.ErrStaleStatus),
		errors.Is(err, order.ErrCustomerInUse):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrInventoryUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, production.ErrProductionDispatchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate decodes a JSON body into dst and validates it. It
// writes the error response itself and reports whether the caller may go on.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("handler: failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid request payload: %v", err))
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "validation failed",
				Details: formatValidationErrors(validationErrors),
			})
			return false
		}
		log.Error().Err(err).Type("validation_error_type", err).Msg("handler: unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, "internal validation error")
		return false
	}
	return true
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = "is required"
		case "oneof":
			details[fe.Field()] = "must be one of: " + fe.Param()
		case "gt":
			details[fe.Field()] = "must be greater than " + fe.Param()
		case "gte", "min":
			details[fe.Field()] = "must be at least " + fe.Param()
		case "email":
			details[fe.Field()] = "must be a valid email address"
		default:
			details[fe.Field()] = "failed on " + fe.Tag()
		}
	}
	return details
}
