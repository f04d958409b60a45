package order

import (
	"errors"
	"fmt"
)

var ErrInvalidStatus = errors.New("invalid status value")

type PositionStatus string

const (
	PositionOpen                 PositionStatus = "OPEN"
	PositionInProgress           PositionStatus = "IN_PROGRESS"
	PositionOutsourcingRequested PositionStatus = "OUTSOURCING_REQUESTED"
	PositionReadyForPickup       PositionStatus = "READY_FOR_PICKUP"
	PositionReadyForInspection   PositionStatus = "READY_FOR_INSPECTION"
	PositionInspected            PositionStatus = "INSPECTED"
	PositionReadyForShipment     PositionStatus = "READY_FOR_SHIPMENT"
	PositionCompleted            PositionStatus = "COMPLETED"
	PositionCancelled            PositionStatus = "CANCELLED"
)

func (s PositionStatus) String() string {
	return string(s)
}

// positionRank orders the forward workflow. CANCELLED is outside it.
var positionRank = map[PositionStatus]int{
	PositionOpen:                 0,
	PositionInProgress:           1,
	PositionOutsourcingRequested: 2,
	PositionReadyForPickup:       3,
	PositionReadyForInspection:   4,
	PositionInspected:            5,
	PositionReadyForShipment:     6,
	PositionCompleted:            7,
}

func ParsePositionStatus(s string) (PositionStatus, error) {
	st := PositionStatus(s)
	if st == PositionCancelled {
		return st, nil
	}
	if _, ok := positionRank[st]; !ok {
		return "", fmt.Errorf("%w: unknown position status %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Terminal reports whether the position is COMPLETED or CANCELLED.
func (s PositionStatus) Terminal() bool {
	return s == PositionCompleted || s == PositionCancelled
}

// CanTransitionTo reports whether s may move to next: forward only, or
// cancellation from any state that is not terminal.
func (s PositionStatus) CanTransitionTo(next PositionStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == PositionCancelled {
		return true
	}
	from, okFrom := positionRank[s]
	to, okTo := positionRank[next]
	return okFrom && okTo && to > from
}

type ProductionOrderStatus string

const (
	ProductionOrderReceived       ProductionOrderStatus = "ORDER_RECEIVED"
	ProductionOrderAuthorised     ProductionOrderStatus = "AUTHORISED"
	ProductionOrderDyeing         ProductionOrderStatus = "DYEING"
	ProductionOrderPrinting       ProductionOrderStatus = "PRINTING"
	ProductionOrderReadyForPickup ProductionOrderStatus = "READY_FOR_PICKUP"
	ProductionOrderCompleted      ProductionOrderStatus = "COMPLETED"
	ProductionOrderCancelled      ProductionOrderStatus = "CANCELLED"
)

func (s ProductionOrderStatus) String() string {
	return string(s)
}

var productionRank = map[ProductionOrderStatus]int{
	ProductionOrderReceived:       0,
	ProductionOrderAuthorised:     1,
	ProductionOrderDyeing:         2,
	ProductionOrderPrinting:       3,
	ProductionOrderReadyForPickup: 4,
	ProductionOrderCompleted:      5,
}

func ParseProductionOrderStatus(s string) (ProductionOrderStatus, error) {
	st := ProductionOrderStatus(s)
	if st == ProductionOrderCancelled {
		return st, nil
	}
	if _, ok := productionRank[st]; !ok {
		return "", fmt.Errorf("%w: unknown production order status %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s ProductionOrderStatus) CanTransitionTo(next ProductionOrderStatus) bool {
	if s == ProductionOrderCompleted || s == ProductionOrderCancelled {
		return false
	}
	if next == ProductionOrderCancelled {
		return true
	}
	from, okFrom := productionRank[s]
	to, okTo := productionRank[next]
	return okFrom && okTo && to > from
}

// Outstanding reports whether the production order still counts toward
// its product's amount in production.
func (s ProductionOrderStatus) Outstanding() bool {
	return s != ProductionOrderCancelled
}

// ReachedPickup reports whether the order is at or past READY_FOR_PICKUP.
func (s ProductionOrderStatus) ReachedPickup() bool {
	return s == ProductionOrderReadyForPickup || s == ProductionOrderCompleted
}
