package inventory_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2b33rs/codevision-backend/internal/cmyk"
	"github.com/2b33rs/codevision-backend/internal/inventory"
)

func TestClient_QueryStock(t *testing.T) {
	tests := []struct {
		name         string
		sig          inventory.Signature
		status       int
		response     string
		wantStock    inventory.Stock
		wantBody     map[string]any
		wantErrIs    error
		wantNoServer bool
	}{
		{
			name:      "printed_match",
			sig:       inventory.Signature{Category: "T_SHIRT", Size: "M", Color: "cmyk(0%, 100%, 100%, 0%)", Design: "https://cdn/x.png", SubType: "Rundhals"},
			status:    http.StatusOK,
			response:  `[{"anzahl": 7, "material_ID": 31}]`,
			wantStock: inventory.Stock{Count: 7, MaterialID: ptr(int64(31))},
			wantBody: map[string]any{
				"category":   "T-Shirt",
				"aufdruck":   "https://cdn/x.png",
				"groesse":    "M",
				"farbe_json": map[string]any{"cyan": 0.0, "magenta": 100.0, "yellow": 100.0, "black": 0.0},
				"typ":        "Rundhals",
			},
		},
		{
			name:      "blank_goods_default_subtype",
			sig:       inventory.Signature{Category: "T_SHIRT", Size: "L", Color: "cmyk(0%, 0%, 0%, 0%)"},
			status:    http.StatusOK,
			response:  `[{"anzahl": 3, "material_ID": 5}]`,
			wantStock: inventory.Stock{Count: 3, MaterialID: ptr(int64(5))},
			wantBody: map[string]any{
				"category":   "T-Shirt",
				"aufdruck":   nil,
				"groesse":    "L",
				"farbe_json": map[string]any{"cyan": 0.0, "magenta": 0.0, "yellow": 0.0, "black": 0.0},
				"typ":        "V-Ausschnitt",
			},
		},
		{
			name:      "empty_answer",
			sig:       inventory.Signature{Category: "T_SHIRT", Size: "S", Color: "cmyk(10%, 10%, 10%, 10%)"},
			status:    http.StatusOK,
			response:  `[]`,
			wantStock: inventory.Stock{},
		},
		{
			name:      "server_error",
			sig:       inventory.Signature{Category: "T_SHIRT", Size: "S"},
			status:    http.StatusBadGateway,
			response:  `boom`,
			wantErrIs: inventory.ErrInventoryUnavailable,
		},
		{
			name:      "garbage_response",
			sig:       inventory.Signature{Category: "T_SHIRT", Size: "S"},
			status:    http.StatusOK,
			response:  `{not json`,
			wantErrIs: inventory.ErrInventoryUnavailable,
		},
		{
			name:         "invalid_color_is_rejected_locally",
			sig:          inventory.Signature{Category: "T_SHIRT", Size: "S", Color: "rot"},
			wantErrIs:    cmyk.ErrInvalidColorSpec,
			wantNoServer: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/versandverkauf/materialbestand", r.URL.Path)

				var body []map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				require.Len(t, body, 1)
				if tt.wantBody != nil {
					assert.Equal(t, tt.wantBody, body[0])
				}

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			client := inventory.NewClient(srv.URL+"/", time.Second)
			got, err := client.QueryStock(context.Background(), tt.sig)

			assert.Equal(t, !tt.wantNoServer, called)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStock, got)
		})
	}
}

func TestClient_QueryStock_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := inventory.NewClient(url, 200*time.Millisecond).QueryStock(context.Background(), inventory.Signature{Category: "T_SHIRT"})
	assert.True(t, errors.Is(err, inventory.ErrInventoryUnavailable), "got %v", err)
}

func TestClient_RequestFinishedGoods(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/versandverkauf/auslagerung", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := inventory.NewClient(srv.URL, time.Second).RequestFinishedGoods(context.Background(), 99, 4, "20250001.1")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"material_ID": 99.0, "anzahl": 4.0, "bestellposition": "20250001.1"}}, got)
}

func TestClient_RequestFinishedGoods_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of stock", http.StatusConflict)
	}))
	defer srv.Close()

	err := inventory.NewClient(srv.URL, time.Second).RequestFinishedGoods(context.Background(), 99, 4, "20250001.1")
	assert.True(t, errors.Is(err, inventory.ErrInventoryUnavailable))
	assert.Contains(t, err.Error(), "out of stock")
}

func ptr[T any](v T) *T { return &v }
