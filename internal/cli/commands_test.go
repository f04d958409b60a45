package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2b33rs/codevision-backend/internal/app"
	"github.com/2b33rs/codevision-backend/internal/config"
	"github.com/2b33rs/codevision-backend/internal/db"
	"github.com/2b33rs/codevision-backend/internal/events"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/order/memstore"
)

type harness struct {
	cfg      *config.Config
	store    *memstore.Store
	services *app.Services
}

// newHarness wires the real services over memstore. The inventory reports no
// stock at all and the production service accepts everything.
func newHarness(t *testing.T) *harness {
	t.Helper()
	inventory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"anzahl":0,"material_ID":7}]`))
	}))
	t.Cleanup(inventory.Close)
	production := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(production.Close)

	cfg := &config.Config{
		App: config.AppConfig{Name: "ordersctl", AllocationConcurrency: 1},
		External: config.ExternalConfig{
			InventoryBaseURL:  inventory.URL,
			ProductionBaseURL: production.URL,
			RequestTimeout:    time.Second,
		},
		Allocation: config.AllocationConfig{SequenceRetryAttempts: 2},
	}
	store := memstore.New()
	return &harness{cfg: cfg, store: store, services: app.Wire(cfg, store, events.NopPublisher{})}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(WithConfig(h.cfg), WithServices(h.services))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRestockCommand(t *testing.T) {
	h := newHarness(t)
	p := &order.StandardProduct{Name: "Basic Black XL", Category: order.CategoryTShirt, Size: order.SizeXL, SubTypes: []string{"Rundhals"}}
	require.NoError(t, h.store.CreateStandardProduct(context.Background(), p))

	out, err := h.run(t, "restock", "--product", p.ID.String(), "--quantity", "12")
	require.NoError(t, err)

	var o order.Order
	require.NoError(t, json.Unmarshal([]byte(out), &o))
	assert.Nil(t, o.CustomerID)
	require.Len(t, o.Positions, 1)
	require.Len(t, o.Positions[0].ProductionOrders, 1)
	assert.Equal(t, order.OrderTypeInternal, o.Positions[0].ProductionOrders[0].OrderType)

	stored, err := h.store.GetStandardProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, stored.AmountInProduction)

	_, err = h.run(t, "restock", "--product", "nope", "--quantity", "1")
	assert.ErrorContains(t, err, "invalid --product")
	_, err = h.run(t, "restock", "--product", p.ID.String())
	assert.ErrorContains(t, err, "quantity")
}

func TestStatusCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := &order.Order{Positions: []order.Position{{PosNumber: 1, Name: "Shirt", Amount: 3}}}
	require.NoError(t, h.store.CreateOrder(ctx, o))
	pos := o.Positions[0]
	require.NoError(t, h.store.CreateProductionOrder(ctx, &order.ProductionOrder{PositionID: &pos.ID, Amount: 3}))

	key := pos.Key().WithSequence(1).String()
	out, err := h.run(t, "status", key, "READY_FOR_PICKUP")
	require.NoError(t, err)
	assert.Contains(t, out, "now READY_FOR_PICKUP")

	out, err = h.run(t, "status", key, "READY_FOR_PICKUP")
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")

	_, err = h.run(t, "status", "garbage", "OPEN")
	assert.ErrorIs(t, err, order.ErrInvalidCompositeKey)

	_, err = h.run(t, "status", key)
	assert.Error(t, err)
}

func TestComplaintCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := &order.Order{Positions: []order.Position{{PosNumber: 1, Name: "Shirt", Amount: 3}}}
	require.NoError(t, h.store.CreateOrder(ctx, o))

	out, err := h.run(t, "complaint", "--position", o.Positions[0].ID.String(), "--reason", "STAINED", "--note", "coffee")
	require.NoError(t, err)
	assert.Contains(t, out, `"complaint_reason": "STAINED"`)

	pos, err := h.store.GetPosition(ctx, o.Positions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, order.PositionCancelled, pos.Status)

	_, err = h.run(t, "complaint", "--position", "x", "--reason", "STAINED")
	assert.ErrorContains(t, err, "invalid --position")
}

func TestProductsCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.CreateStandardProduct(context.Background(),
		&order.StandardProduct{Name: "Basic White S", Category: order.CategoryTShirt, Size: order.SizeS, MinAmount: 5}))

	out, err := h.run(t, "products")
	require.NoError(t, err)
	assert.Contains(t, out, "Basic White S | S | stock 0 | in production 0 | remaining -5")
}

func TestMigrateCommand(t *testing.T) {
	cfg := &config.Config{Postgres: config.PostgresConfig{MigrationsPath: "migrations"}}
	var got []db.Direction
	fake := func(_ config.PostgresConfig, dir db.Direction) error {
		got = append(got, dir)
		return nil
	}

	for _, args := range [][]string{{"migrate", "up"}, {"migrate", "down"}} {
		cmd := NewRootCommand(WithConfig(cfg), withMigrate(fake))
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
	}
	assert.Equal(t, []db.Direction{db.Up, db.Down}, got)

	cmd := NewRootCommand(WithConfig(cfg), withMigrate(fake))
	cmd.SetArgs([]string{"migrate", "sideways"})
	assert.Error(t, cmd.Execute())
	assert.Len(t, got, 2)
}
