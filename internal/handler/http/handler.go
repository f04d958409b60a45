package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/status"
	"github.com/2b33rs/codevision-backend/internal/workflow"
)

type OrderService interface {
	CreateOrder(ctx context.Context, customerID *uuid.UUID, positions []workflow.PositionInput) (*workflow.OrderResult, error)
	CreateInternalRestockOrder(ctx context.Context, productID uuid.UUID, quantity int) (*workflow.OrderResult, error)
	CreateComplaint(ctx context.Context, in workflow.ComplaintInput) (*workflow.ComplaintResult, error)
}

type StatusService interface {
	UpdateStatus(ctx context.Context, compositeKey, newStatus string) (*status.Outcome, error)
}

type CatalogService interface {
	CreateProduct(ctx context.Context, p *order.StandardProduct) error
	GetProduct(ctx context.Context, id uuid.UUID) (*workflow.ProductStock, error)
	ListProducts(ctx context.Context, search string) ([]workflow.ProductStock, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch workflow.ProductPatch) (*order.StandardProduct, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// Queries are the read paths served straight from the repository.
type Queries interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]order.Order, error)
	ListOrdersWithPositionStatus(ctx context.Context, status order.PositionStatus) ([]order.Order, error)
	ListProductionOrdersByPosition(ctx context.Context, positionID uuid.UUID) ([]order.ProductionOrder, error)
	GetPosition(ctx context.Context, id uuid.UUID) (*order.Position, error)
	CreateCustomer(ctx context.Context, c *order.Customer) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*order.Customer, error)
	ListCustomers(ctx context.Context) ([]order.Customer, error)
	UpdateCustomer(ctx context.Context, c *order.Customer) error
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	ListComplaints(ctx context.Context, filter order.ComplaintFilter) ([]order.Complaint, error)
}

type Handler struct {
	orders   OrderService
	statuses StatusService
	catalog  CatalogService
	queries  Queries
	validate *validator.Validate
}

func NewHandler(orders OrderService, statuses StatusService, catalog CatalogService, queries Queries) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		orders:   orders,
		statuses: statuses,
		catalog:  catalog,
		queries:  queries,
		validate: validate,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.handleHealth)

	router.Route("/orders", func(r chi.Router) {
		r.Post("/", h.handleCreateOrder)
		r.Get("/", h.handleListOrders)
		r.Post("/restock", h.handleCreateRestockOrder)
		r.Get("/{id}", h.handleGetOrder)
	})
	router.Get("/positions/{id}/production-orders", h.handleListProductionOrders)
	router.Patch("/status/{compositeKey}", h.handleUpdateStatus)

	router.Post("/complaints", h.handleCreateComplaint)
	router.Get("/complaints", h.handleListComplaints)

	router.Post("/customers", h.handleCreateCustomer)
	router.Get("/customers", h.handleListCustomers)
	router.Get("/customers/{id}", h.handleGetCustomer)
	router.Patch("/customers/{id}", h.handleUpdateCustomer)
	router.Delete("/customers/{id}", h.handleDeleteCustomer)

	router.Post("/products", h.handleCreateProduct)
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Patch("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// uuidParam parses a UUID from the URL parameter or query value and answers
// 400 itself when it is malformed.
func uuidParam(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("handler: failed to parse id parameter")
		respondWithError(w, http.StatusBadRequest, "invalid "+name+" parameter")
		return uuid.Nil, false
	}
	return id, true
}
