// Package events publishes domain events after the state they describe has
// been stored.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

type Type string

const (
	ProductionOrderCreated       Type = "production_order.created"
	PositionStatusChanged        Type = "position.status_changed"
	ProductionOrderStatusChanged Type = "production_order.status_changed"
	ComplaintCreated             Type = "complaint.created"
)

type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with a fresh ULID. key is the composite business key
// of the affected entity.
func New(t Type, key string, payload any) (Event, error) {
	e := Event{
		ID:         ulid.Make().String(),
		Type:       t,
		Key:        key,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("events: encode %s payload: %w", t, err)
		}
		e.Payload = raw
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// PublishBestEffort builds and publishes an event, logging instead of
// returning failures.
func PublishBestEffort(ctx context.Context, p Publisher, t Type, key string, payload any) {
	if p == nil {
		return
	}
	e, err := New(t, key, payload)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(t)).Str("key", key).Msg("events: failed to build event")
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event_id", e.ID).Str("event_type", string(t)).Str("key", key).Msg("events: failed to publish event")
	}
}
