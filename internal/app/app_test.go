package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2b33rs/codevision-backend/internal/config"
	"github.com/2b33rs/codevision-backend/internal/events/eventstest"
	orderHttp "github.com/2b33rs/codevision-backend/internal/handler/http"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/order/memstore"
)

// inventoryServer reports 4 dyed blanks, plenty of white blanks and no
// finished goods.
func inventoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var q []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		require.Len(t, q, 1)

		count, material := 0, 1
		switch {
		case q[0]["aufdruck"] != nil:
		case q[0]["farbe_json"].(map[string]any)["magenta"] == float64(0):
			count, material = 100, 3
		default:
			count, material = 4, 2
		}
		_ = json.NewEncoder(w).Encode([]map[string]int{{"anzahl": count, "material_ID": material}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type productionServer struct {
	*httptest.Server
	mu      sync.Mutex
	created []map[string]any
}

func newProductionServer(t *testing.T) *productionServer {
	t.Helper()
	ps := &productionServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body []map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			ps.mu.Lock()
			ps.created = append(ps.created, body...)
			ps.mu.Unlock()
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func testConfig(inventoryURL, productionURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "order-service", AllocationConcurrency: 2},
		External: config.ExternalConfig{
			InventoryBaseURL:  inventoryURL,
			ProductionBaseURL: productionURL,
			RequestTimeout:    2 * time.Second,
		},
		Allocation: config.AllocationConfig{SequenceRetryAttempts: 3},
	}
}

func request(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func TestOrderLifecycle(t *testing.T) {
	inv := inventoryServer(t)
	prod := newProductionServer(t)
	store := memstore.New()
	rec := &eventstest.Recorder{}

	router := Wire(testConfig(inv.URL, prod.URL), store, rec).Router()

	rr := request(t, router, http.MethodPost, "/orders", map[string]any{
		"positions": []map[string]any{{
			"name":             "Shirt",
			"amount":           10,
			"price":            "19.99",
			"product_category": "T_SHIRT",
			"design":           "https://cdn.example.com/a.png",
			"color":            "cmyk(0%, 100%, 100%, 0%)",
			"shirt_size":       "L",
			"typ":              "Rundhals",
		}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created orderHttp.OrderResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	on := created.Order.OrderNumber
	require.Equal(t, []string{on + ".1.1", on + ".1.2"}, created.Allocations[0].ProductionOrders)

	require.Len(t, prod.created, 2)
	assert.Equal(t, on+".1.1", prod.created[0]["orderIdPositionsId"])
	assert.Equal(t, float64(4), prod.created[0]["anzahlTShirts"])
	assert.Equal(t, false, prod.created[0]["faerbereiErforderlich"])
	assert.Equal(t, float64(6), prod.created[1]["anzahlTShirts"])
	assert.Equal(t, true, prod.created[1]["faerbereiErforderlich"])
	template := prod.created[1]["artikelTemplate"].(map[string]any)
	assert.Equal(t, "3", template["artikelnummer"])
	assert.Equal(t, "T_SHIRT", template["kategorie"])

	for _, key := range []string{on + ".1.1", on + ".1.2"} {
		rr = request(t, router, http.MethodPatch, "/status/"+key, map[string]string{"status": "READY_FOR_PICKUP"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	pos, err := store.GetPositionByKey(t.Context(), on, 1)
	require.NoError(t, err)
	assert.Equal(t, order.PositionReadyForPickup, pos.Status)

	rr = request(t, router, http.MethodPatch, "/status/"+on+".1", map[string]string{"status": "OPEN"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOrderLifecycle_InventoryDown(t *testing.T) {
	prod := newProductionServer(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)

	router := Wire(testConfig(down.URL, prod.URL), memstore.New(), &eventstest.Recorder{}).Router()

	rr := request(t, router, http.MethodPost, "/orders", map[string]any{
		"positions": []map[string]any{{
			"name": "Shirt", "amount": 2, "product_category": "T_SHIRT", "shirt_size": "S",
		}},
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var created orderHttp.OrderResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.True(t, created.NeedsAttention)
	assert.Contains(t, created.Allocations[0].Error, "inventory service unavailable")
	assert.Empty(t, prod.created)
}
