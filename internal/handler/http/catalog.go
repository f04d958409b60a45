package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/workflow"
)

type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,min=2"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	Country string `json:"addr_country" validate:"omitempty,len=2"`
	City    string `json:"addr_city"`
	Zip     string `json:"addr_zip"`
	Street  string `json:"addr_street"`
	Line1   string `json:"addr_line1"`
	Line2   string `json:"addr_line2"`
	Type    string `json:"customer_type" validate:"required,oneof=WEBSHOP BUSINESS"`
}

// UpdateCustomerRequest changes only the fields that are present.
type UpdateCustomerRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=2"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Country *string `json:"addr_country" validate:"omitempty,len=2"`
	City    *string `json:"addr_city"`
	Zip     *string `json:"addr_zip"`
	Street  *string `json:"addr_street"`
	Line1   *string `json:"addr_line1"`
	Line2   *string `json:"addr_line2"`
	Type    *string `json:"customer_type" validate:"omitempty,oneof=WEBSHOP BUSINESS"`
}

func (req UpdateCustomerRequest) apply(c *order.Customer) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Name, req.Name)
	set(&c.Email, req.Email)
	set(&c.Phone, req.Phone)
	set(&c.Country, req.Country)
	set(&c.City, req.City)
	set(&c.Zip, req.Zip)
	set(&c.Street, req.Street)
	set(&c.Line1, req.Line1)
	set(&c.Line2, req.Line2)
	if req.Type != nil {
		c.Type = order.CustomerType(*req.Type)
	}
}

type CreateProductRequest struct {
	Name      string   `json:"name" validate:"required"`
	Category  string   `json:"product_category" validate:"required,oneof=T_SHIRT"`
	Color     string   `json:"color"`
	Size      string   `json:"shirt_size" validate:"required,oneof=S M L XL"`
	SubTypes  []string `json:"typ"`
	MinAmount int      `json:"min_amount" validate:"gte=0"`
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	c := &order.Customer{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Country: req.Country,
		City:    req.City,
		Zip:     req.Zip,
		Street:  req.Street,
		Line1:   req.Line1,
		Line2:   req.Line2,
		Type:    order.CustomerType(req.Type),
	}
	if err := h.queries.CreateCustomer(r.Context(), c); err != nil {
		respondWithServiceError(w, err, "failed to create customer")
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	c, err := h.queries.GetCustomer(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "failed to get customer")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.queries.ListCustomers(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "failed to list customers")
		return
	}
	respondWithJSON(w, http.StatusOK, customers)
}

type UpdateProductRequest struct {
	Name      *string  `json:"name" validate:"omitempty,min=1"`
	Category  *string  `json:"product_category" validate:"omitempty,oneof=T_SHIRT"`
	Color     *string  `json:"color"`
	Size      *string  `json:"shirt_size" validate:"omitempty,oneof=S M L XL"`
	SubTypes  []string `json:"typ"`
	MinAmount *int     `json:"min_amount" validate:"omitempty,gte=0"`
}

func (h *Handler) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	var req UpdateCustomerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.queries.GetCustomer(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "failed to get customer")
		return
	}
	req.apply(c)

	if err := h.queries.UpdateCustomer(r.Context(), c); err != nil {
		respondWithServiceError(w, err, "failed to update customer")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	if err := h.queries.DeleteCustomer(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "failed to delete customer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p := &order.StandardProduct{
		Name:      req.Name,
		Category:  order.ProductCategory(req.Category),
		Color:     req.Color,
		Size:      order.ShirtSize(req.Size),
		SubTypes:  req.SubTypes,
		MinAmount: req.MinAmount,
	}
	if err := h.catalog.CreateProduct(r.Context(), p); err != nil {
		respondWithServiceError(w, err, "failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		respondWithServiceError(w, err, "failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	patch := workflow.ProductPatch{
		Name:      req.Name,
		Color:     req.Color,
		SubTypes:  req.SubTypes,
		MinAmount: req.MinAmount,
	}
	if req.Category != nil {
		category := order.ProductCategory(*req.Category)
		patch.Category = &category
	}
	if req.Size != nil {
		size := order.ShirtSize(*req.Size)
		patch.Size = &size
	}

	p, err := h.catalog.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		respondWithServiceError(w, err, "failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
