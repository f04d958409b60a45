package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/2b33rs/codevision-backend/internal/allocation"
	orderHandler "github.com/2b33rs/codevision-backend/internal/handler/http"
	"github.com/2b33rs/codevision-backend/internal/inventory"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/order/memstore"
	"github.com/2b33rs/codevision-backend/internal/status"
	"github.com/2b33rs/codevision-backend/internal/workflow"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, customerID *uuid.UUID, positions []workflow.PositionInput) (*workflow.OrderResult, error) {
	args := m.Called(ctx, customerID, positions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.OrderResult), args.Error(1)
}

func (m *MockOrderService) CreateInternalRestockOrder(ctx context.Context, productID uuid.UUID, quantity int) (*workflow.OrderResult, error) {
	args := m.Called(ctx, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.OrderResult), args.Error(1)
}

func (m *MockOrderService) CreateComplaint(ctx context.Context, in workflow.ComplaintInput) (*workflow.ComplaintResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ComplaintResult), args.Error(1)
}

type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) UpdateStatus(ctx context.Context, compositeKey, newStatus string) (*status.Outcome, error) {
	args := m.Called(ctx, compositeKey, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*status.Outcome), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) CreateProduct(ctx context.Context, p *order.StandardProduct) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*workflow.ProductStock, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ProductStock), args.Error(1)
}

func (m *MockCatalog) ListProducts(ctx context.Context, search string) ([]workflow.ProductStock, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]workflow.ProductStock), args.Error(1)
}

func (m *MockCatalog) UpdateProduct(ctx context.Context, id uuid.UUID, patch workflow.ProductPatch) (*order.StandardProduct, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.StandardProduct), args.Error(1)
}

func (m *MockCatalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type testServer struct {
	orders   *MockOrderService
	statuses *MockStatusService
	catalog  *MockCatalog
	store    *memstore.Store
	router   chi.Router
}

func newTestServer() *testServer {
	ts := &testServer{
		orders:   new(MockOrderService),
		statuses: new(MockStatusService),
		catalog:  new(MockCatalog),
		store:    memstore.New(),
		router:   chi.NewRouter(),
	}
	orderHandler.NewHandler(ts.orders, ts.statuses, ts.catalog, ts.store).RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func validOrderBody() map[string]any {
	return map[string]any{
		"positions": []map[string]any{{
			"name":             "Shirt",
			"amount":           10,
			"price":            "19.99",
			"product_category": "T_SHIRT",
			"design":           "https://cdn.example.com/a.png",
			"color":            "cmyk(0%, 100%, 100%, 0%)",
			"shirt_size":       "M",
		}},
	}
}

func orderResult(err error) *workflow.OrderResult {
	o := &order.Order{ID: uuid.Must(uuid.NewV4()), OrderNumber: "20260001"}
	key := order.Key{OrderNumber: o.OrderNumber, PosNumber: 1}
	return &workflow.OrderResult{
		Order: o,
		Allocations: []workflow.PositionAllocation{{
			Key: key,
			Result: &allocation.Result{
				Key:              key,
				Printed:          4,
				DyedAndPrinted:   6,
				ProductionOrders: []order.ProductionOrder{{SequenceNumber: 1}, {SequenceNumber: 2}},
			},
			Err: err,
		}},
	}
}

func TestHandler_CreateOrder(t *testing.T) {
	ts := newTestServer()
	ts.orders.On("CreateOrder", mock.Anything, (*uuid.UUID)(nil), mock.MatchedBy(func(in []workflow.PositionInput) bool {
		return len(in) == 1 && in[0].Amount == 10 && in[0].Size == order.SizeM && in[0].Price.String() == "19.99"
	})).Return(orderResult(nil), nil).Once()

	rr := ts.do(t, http.MethodPost, "/orders", validOrderBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp orderHandler.OrderResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.NeedsAttention)
	require.Len(t, resp.Allocations, 1)
	assert.Equal(t, "20260001.1", resp.Allocations[0].Key)
	assert.Equal(t, []string{"20260001.1.1", "20260001.1.2"}, resp.Allocations[0].ProductionOrders)
	ts.orders.AssertExpectations(t)
}

func TestHandler_CreateOrder_NeedsAttention(t *testing.T) {
	ts := newTestServer()
	ts.orders.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).
		Return(orderResult(inventory.ErrInventoryUnavailable), nil).Once()

	rr := ts.do(t, http.MethodPost, "/orders", validOrderBody())
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp orderHandler.OrderResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.NeedsAttention)
	assert.Equal(t, inventory.ErrInventoryUnavailable.Error(), resp.Allocations[0].Error)
}

func TestHandler_CreateOrder_Errors(t *testing.T) {
	testCases := []struct {
		name       string
		body       any
		serviceErr error
		wantStatus int
	}{
		{name: "malformed json", body: "{", wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"positions":[],"bogus":1}`, wantStatus: http.StatusBadRequest},
		{name: "no positions", body: map[string]any{"positions": []any{}}, wantStatus: http.StatusBadRequest},
		{name: "unknown customer", body: validOrderBody(), serviceErr: order.ErrCustomerNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid color", body: validOrderBody(), serviceErr: fmt.Errorf("%w 1: bad", workflow.ErrInvalidPosition), wantStatus: http.StatusBadRequest},
		{name: "storage failure", body: validOrderBody(), serviceErr: fmt.Errorf("connection reset"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			if tc.serviceErr != nil {
				ts.orders.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.serviceErr).Once()
			}

			rr := ts.do(t, http.MethodPost, "/orders", tc.body)
			assert.Equal(t, tc.wantStatus, rr.Code, rr.Body.String())
			ts.orders.AssertExpectations(t)
		})
	}
}

func TestHandler_CreateOrder_ValidationDetails(t *testing.T) {
	ts := newTestServer()
	body := validOrderBody()
	body["positions"].([]map[string]any)[0]["shirt_size"] = "XXL"

	rr := ts.do(t, http.MethodPost, "/orders", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp orderHandler.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "must be one of: S M L XL", resp.Details["shirt_size"])
	ts.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_UpdateStatus(t *testing.T) {
	testCases := []struct {
		name       string
		key        string
		outcome    *status.Outcome
		serviceErr error
		wantStatus int
	}{
		{
			name:       "position changed",
			key:        "20260001.1",
			outcome:    &status.Outcome{Key: order.Key{OrderNumber: "20260001", PosNumber: 1}, Changed: true},
			wantStatus: http.StatusOK,
		},
		{name: "malformed key", key: "20260001", serviceErr: order.ErrInvalidCompositeKey, wantStatus: http.StatusBadRequest},
		{name: "unknown status", key: "20260001.1", serviceErr: order.ErrInvalidStatus, wantStatus: http.StatusBadRequest},
		{name: "backwards", key: "20260001.1.1", serviceErr: status.ErrInvalidStatusTransition, wantStatus: http.StatusConflict},
		{name: "unknown production order", key: "20260001.1.9", serviceErr: order.ErrProductionOrderNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			ts.statuses.On("UpdateStatus", mock.Anything, tc.key, "IN_PROGRESS").Return(tc.outcome, tc.serviceErr).Once()

			rr := ts.do(t, http.MethodPatch, "/status/"+tc.key, map[string]string{"status": "IN_PROGRESS"})
			assert.Equal(t, tc.wantStatus, rr.Code, rr.Body.String())
			ts.statuses.AssertExpectations(t)
		})
	}
}

func TestHandler_Orders_Queries(t *testing.T) {
	ts := newTestServer()
	ctx := context.Background()
	c := &order.Customer{Name: "Erika", Email: "erika@example.com", Type: order.CustomerWebshop}
	require.NoError(t, ts.store.CreateCustomer(ctx, c))
	o := &order.Order{CustomerID: &c.ID, Positions: []order.Position{{PosNumber: 1, Name: "Shirt", Amount: 1}}}
	require.NoError(t, ts.store.CreateOrder(ctx, o))

	rr := ts.do(t, http.MethodGet, "/orders/"+o.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got order.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, o.OrderNumber, got.OrderNumber)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/orders/"+uuid.Must(uuid.NewV4()).String(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/orders/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/orders", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/orders?status=SHIPPED", nil).Code)

	var list []order.Order
	rr = ts.do(t, http.MethodGet, "/orders?customerId="+c.ID.String()+"&status=OPEN", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list, 1)

	rr = ts.do(t, http.MethodGet, "/orders?customerId="+c.ID.String()+"&status=COMPLETED", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Empty(t, list)

	rr = ts.do(t, http.MethodGet, "/positions/"+o.Positions[0].ID.String()+"/production-orders", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestHandler_Customers(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(t, http.MethodPost, "/customers", map[string]string{
		"name":          "Erika Mustermann",
		"email":         "erika@example.com",
		"customer_type": "BUSINESS",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created order.Customer
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.Equal(t, "DE", created.Country)

	rr = ts.do(t, http.MethodGet, "/customers/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodPost, "/customers", map[string]string{"name": "E", "email": "nope", "customer_type": "WEBSHOP"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp orderHandler.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp.Details, "email")
	assert.Contains(t, resp.Details, "name")
}

func TestHandler_Customers_UpdateAndDelete(t *testing.T) {
	ts := newTestServer()
	ctx := context.Background()

	c := &order.Customer{Name: "Erika Mustermann", Email: "erika@example.com", Type: order.CustomerWebshop}
	require.NoError(t, ts.store.CreateCustomer(ctx, c))

	rr := ts.do(t, http.MethodPatch, "/customers/"+c.ID.String(), map[string]string{"addr_city": "Bremen", "customer_type": "BUSINESS"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated order.Customer
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
	assert.Equal(t, "Bremen", updated.City)
	assert.Equal(t, order.CustomerBusiness, updated.Type)
	assert.Equal(t, "erika@example.com", updated.Email, "absent fields are kept")

	rr = ts.do(t, http.MethodPatch, "/customers/"+c.ID.String(), map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = ts.do(t, http.MethodPatch, "/customers/"+uuid.Must(uuid.NewV4()).String(), map[string]string{"phone": "1"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, ts.store.CreateOrder(ctx, &order.Order{CustomerID: &c.ID, Positions: []order.Position{{PosNumber: 1}}}))
	rr = ts.do(t, http.MethodDelete, "/customers/"+c.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	other := &order.Customer{Name: "Max", Type: order.CustomerWebshop}
	require.NoError(t, ts.store.CreateCustomer(ctx, other))
	rr = ts.do(t, http.MethodDelete, "/customers/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.do(t, http.MethodGet, "/customers/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Products_UpdateAndDelete(t *testing.T) {
	ts := newTestServer()
	id := uuid.Must(uuid.NewV4())

	size, minAmount := order.SizeXL, 0
	ts.catalog.On("UpdateProduct", mock.Anything, id, workflow.ProductPatch{Size: &size, MinAmount: &minAmount}).
		Return(&order.StandardProduct{ID: id, Name: "Basic", Size: order.SizeXL}, nil).Once()
	ts.catalog.On("DeleteProduct", mock.Anything, id).Return(nil).Once()

	rr := ts.do(t, http.MethodPatch, "/products/"+id.String(), map[string]any{"shirt_size": "XL", "min_amount": 0})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodPatch, "/products/"+id.String(), map[string]any{"shirt_size": "XXL"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodDelete, "/products/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	ts.catalog.On("DeleteProduct", mock.Anything, id).Return(order.ErrStandardProductNotFound).Once()
	rr = ts.do(t, http.MethodDelete, "/products/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	ts.catalog.AssertExpectations(t)
}

func TestHandler_Products_InventoryDown(t *testing.T) {
	ts := newTestServer()
	ts.catalog.On("ListProducts", mock.Anything, "red").Return(nil, fmt.Errorf("service: %w", inventory.ErrInventoryUnavailable)).Once()

	rr := ts.do(t, http.MethodGet, "/products?query=red", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	ts.catalog.AssertExpectations(t)
}

func TestHandler_CreateComplaint(t *testing.T) {
	ts := newTestServer()
	positionID := uuid.Must(uuid.NewV4())
	replacement := orderResult(nil)

	ts.orders.On("CreateComplaint", mock.Anything, workflow.ComplaintInput{
		PositionID:     positionID,
		Reason:         order.ReasonWrongSize,
		Kind:           order.ComplaintExtern,
		CreateNewOrder: true,
	}).Return(&workflow.ComplaintResult{
		Complaint:   &order.Complaint{ID: uuid.Must(uuid.NewV4()), PositionID: positionID, NewOrderID: &replacement.Order.ID},
		Cancelled:   []order.Key{{OrderNumber: "20260001", PosNumber: 1, Sequence: 1}},
		Replacement: replacement,
	}, nil).Once()

	rr := ts.do(t, http.MethodPost, "/complaints", map[string]any{
		"position_id":      positionID,
		"complaint_reason": "WRONG_SIZE",
		"complaint_kind":   "EXTERN",
		"create_new_order": true,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp orderHandler.ComplaintResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, []string{"20260001.1.1"}, resp.Cancelled)
	require.NotNil(t, resp.Replacement)
	assert.Equal(t, replacement.Order.ID, resp.Replacement.Order.ID)
	ts.orders.AssertExpectations(t)
}

func TestHandler_Health(t *testing.T) {
	ts := newTestServer()
	rr := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
