package order_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2b33rs/codevision-backend/internal/order"
)

func TestPositionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to order.PositionStatus
		want     bool
	}{
		{order.PositionOpen, order.PositionInProgress, true},
		{order.PositionOpen, order.PositionReadyForPickup, true},
		{order.PositionReadyForShipment, order.PositionCompleted, true},
		{order.PositionInProgress, order.PositionOpen, false},
		{order.PositionReadyForPickup, order.PositionReadyForPickup, false},
		{order.PositionInspected, order.PositionCancelled, true},
		{order.PositionCompleted, order.PositionCancelled, false},
		{order.PositionCancelled, order.PositionOpen, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestProductionOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to order.ProductionOrderStatus
		want     bool
	}{
		{order.ProductionOrderReceived, order.ProductionOrderAuthorised, true},
		{order.ProductionOrderDyeing, order.ProductionOrderReadyForPickup, true},
		{order.ProductionOrderPrinting, order.ProductionOrderDyeing, false},
		{order.ProductionOrderReceived, order.ProductionOrderCancelled, true},
		{order.ProductionOrderCompleted, order.ProductionOrderCancelled, false},
		{order.ProductionOrderCancelled, order.ProductionOrderPrinting, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := order.ParsePositionStatus("READY_FOR_INSPECTION")
	assert.NoError(t, err)
	assert.Equal(t, order.PositionReadyForInspection, st)

	_, err = order.ParsePositionStatus("DYEING")
	assert.True(t, errors.Is(err, order.ErrInvalidStatus))

	pst, err := order.ParseProductionOrderStatus("DYEING")
	assert.NoError(t, err)
	assert.Equal(t, order.ProductionOrderDyeing, pst)

	_, err = order.ParseProductionOrderStatus("INSPECTED")
	assert.True(t, errors.Is(err, order.ErrInvalidStatus))

	_, err = order.ParseProductionOrderStatus("printing")
	assert.True(t, errors.Is(err, order.ErrInvalidStatus), "status values are case sensitive")
}

func TestProductionOrderStatus_Predicates(t *testing.T) {
	assert.True(t, order.ProductionOrderReadyForPickup.ReachedPickup())
	assert.True(t, order.ProductionOrderCompleted.ReachedPickup())
	assert.False(t, order.ProductionOrderPrinting.ReachedPickup())
	assert.False(t, order.ProductionOrderCancelled.ReachedPickup())

	assert.True(t, order.ProductionOrderReceived.Outstanding())
	assert.False(t, order.ProductionOrderCancelled.Outstanding())

	assert.True(t, order.PositionCompleted.Terminal())
	assert.True(t, order.PositionCancelled.Terminal())
	assert.False(t, order.PositionReadyForShipment.Terminal())
}
