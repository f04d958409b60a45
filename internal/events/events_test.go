package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/2b33rs/codevision-backend/internal/events"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestNew(t *testing.T) {
	e, err := events.New(events.ProductionOrderCreated, "20250001.1.2", map[string]int{"amount": 6})
	require.NoError(t, err)

	_, err = ulid.Parse(e.ID)
	assert.NoError(t, err)
	assert.Equal(t, events.ProductionOrderCreated, e.Type)
	assert.Equal(t, "20250001.1.2", e.Key)
	assert.JSONEq(t, `{"amount":6}`, string(e.Payload))
	assert.False(t, e.OccurredAt.IsZero())

	_, err = events.New(events.ComplaintCreated, "k", make(chan int))
	assert.Error(t, err)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "20250001.1" {
			return false
		}
		var e events.Event
		if err := json.Unmarshal(msgs[0].Value, &e); err != nil {
			return false
		}
		return e.Type == events.PositionStatusChanged
	})).Return(nil).Once()
	w.On("Close").Return(nil).Once()

	p := events.NewKafkaPublisherWithWriter(w)
	e, err := events.New(events.PositionStatusChanged, "20250001.1", nil)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), e))
	require.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestPublishBestEffort_SwallowsErrors(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	assert.NotPanics(t, func() {
		events.PublishBestEffort(context.Background(), events.NewKafkaPublisherWithWriter(w), events.ComplaintCreated, "20250001.1", nil)
		events.PublishBestEffort(context.Background(), nil, events.ComplaintCreated, "20250001.1", nil)
	})
	w.AssertExpectations(t)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, events.NopPublisher{}.Publish(context.Background(), events.Event{}))
}
