// Package inventory queries the warehouse service for stock that matches a
// product signature and reserves finished goods from it.
package inventory

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2b33rs/codevision-backend/internal/cmyk"
)

const (
	stockPath       = "/api/versandverkauf/materialbestand"
	reservationPath = "/api/versandverkauf/auslagerung"

	defaultSubType = "V-Ausschnitt"
)

var ErrInventoryUnavailable = errors.New("inventory service unavailable")

var tracer = otel.Tracer("github.com/2b33rs/codevision-backend/internal/inventory")

// Signature identifies a stock item. An empty Design means blank (unprinted) goods.
type Signature struct {
	Category string
	Size     string
	Color    string
	Design   string
	SubType  string
}

// Stock is the answer to a stock query. MaterialID is nil when the
// warehouse knows no matching material.
type Stock struct {
	Count      int
	MaterialID *int64
}

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

type stockQuery struct {
	Category string         `json:"category"`
	Design   *string        `json:"aufdruck"`
	Size     string         `json:"groesse"`
	Color    *cmyk.Channels `json:"farbe_json"`
	SubType  string         `json:"typ"`
}

type stockAnswer struct {
	Count      *int   `json:"anzahl"`
	MaterialID *int64 `json:"material_ID"`
}

type reservation struct {
	MaterialID int64  `json:"material_ID"`
	Amount     int    `json:"anzahl"`
	Position   string `json:"bestellposition"`
}

// QueryStock returns the warehouse count for sig. A malformed color fails
// with cmyk.ErrInvalidColorSpec before any request is made.
func (c *Client) QueryStock(ctx context.Context, sig Signature) (Stock, error) {
	ctx, span := tracer.Start(ctx, "inventory.QueryStock")
	defer span.End()
	span.SetAttributes(
		attribute.String("inventory.category", sig.Category),
		attribute.String("inventory.size", sig.Size),
		attribute.Bool("inventory.printed", sig.Design != ""),
	)

	body := stockQuery{
		Category: externalCategory(sig.Category),
		Size:     sig.Size,
		SubType:  sig.SubType,
	}
	if body.SubType == "" {
		body.SubType = defaultSubType
	}
	if sig.Design != "" {
		design := sig.Design
		body.Design = &design
	}
	if sig.Color != "" {
		ch, err := cmyk.Parse(sig.Color)
		if err != nil {
			span.SetStatus(codes.Error, "invalid color")
			return Stock{}, err
		}
		body.Color = &ch
	}

	var answers []stockAnswer
	if err := c.post(ctx, stockPath, []stockQuery{body}, &answers); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock query failed")
		return Stock{}, err
	}

	if len(answers) == 0 {
		return Stock{}, nil
	}
	stock := Stock{MaterialID: answers[0].MaterialID}
	if answers[0].Count != nil {
		stock.Count = *answers[0].Count
	}
	span.SetAttributes(attribute.Int("inventory.count", stock.Count))
	return stock, nil
}

// RequestFinishedGoods reserves amount units of a material for the position
// identified by key.
func (c *Client) RequestFinishedGoods(ctx context.Context, materialID int64, amount int, key string) error {
	ctx, span := tracer.Start(ctx, "inventory.RequestFinishedGoods")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("inventory.material_id", materialID),
		attribute.Int("inventory.amount", amount),
		attribute.String("order.key", key),
	)

	body := []reservation{{MaterialID: materialID, Amount: amount, Position: key}}
	if err := c.post(ctx, reservationPath, body, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation failed")
		return err
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("inventory: build url: %w", err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("inventory: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("inventory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d: %s", ErrInventoryUnavailable, path, resp.StatusCode, drainError(resp.Body))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrInventoryUnavailable, path, err)
	}
	return nil
}

func externalCategory(category string) string {
	switch category {
	case "T_SHIRT":
		return "T-Shirt"
	case "":
		return "T-Shirt"
	default:
		return category
	}
}

func drainError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
