package production

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2b33rs/codevision-backend/internal/order"
)

var ErrProductionDispatchFailed = errors.New("production dispatch failed")

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type createRequest struct {
	Key             string                `json:"orderIdPositionsId"`
	Quantity        int                   `json:"anzahlTShirts"`
	DesignURL       string                `json:"motivUrl"`
	OrderType       order.OrderType       `json:"auftragstyp"`
	DyeingNecessary bool                  `json:"faerbereiErforderlich"`
	Template        order.ProductTemplate `json:"artikelTemplate"`
}

// Create hands the production order over to the production service.
func (c *Client) Create(ctx context.Context, key order.Key, po order.ProductionOrder) error {
	body := []createRequest{{
		Key:             key.String(),
		Quantity:        po.Amount,
		DesignURL:       po.DesignURL,
		OrderType:       po.OrderType,
		DyeingNecessary: po.DyeingNecessary,
		Template:        po.Template,
	}}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("production: encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, payload, "fertigungsauftraege", "fertigungsauftraegeAnlegen")
}

// Cancel asks the production service to drop the order with the given key.
func (c *Client) Cancel(ctx context.Context, key order.Key) error {
	return c.do(ctx, http.MethodPatch, nil, "fertigungsauftraege", key.String(), "loeschen")
}

func (c *Client) do(ctx context.Context, method string, payload []byte, elem ...string) error {
	endpoint, err := url.JoinPath(c.baseURL, elem...)
	if err != nil {
		return fmt.Errorf("production: build url: %w", err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("production: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProductionDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrProductionDispatchFailed, method, endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
