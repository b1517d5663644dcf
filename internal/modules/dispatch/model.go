// README: Dispatch record (the courier delivery leg) and its state machine.
package dispatch

import (
	"time"

	"sokoni/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Dispatch is the one-to-one delivery companion of a courier order.
// DistanceKm and Fee are frozen at creation; later edits to vendor
// addresses or fee tables never rewrite them.
type Dispatch struct {
	ID                    types.ID
	OrderID               types.ID
	PickupAddress         string
	DeliveryAddress       string
	Pickup                types.Point
	Delivery              types.Point
	DistanceKm            float64
	Fee                   types.Money
	Status                Status
	StatusVersion         int
	CourierID             *types.ID
	EstimatedDeliveryTime time.Time
	ActualDeliveryTime    *time.Time
	// DeliveredSyncedAt marks that the order module has acknowledged the
	// delivered event; nil means the reconciler still owes a redelivery.
	DeliveredSyncedAt *time.Time
	CreatedAt         time.Time
	AssignedAt            *time.Time
	PickedUpAt            *time.Time
	InTransitAt           *time.Time
	DeliveredAt           *time.Time
	CancelledAt           *time.Time
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Event struct {
	ID         int64
	DispatchID types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	Note       string
	CreatedAt  time.Time
}

var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
