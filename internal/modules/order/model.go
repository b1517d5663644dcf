// README: Order aggregate, status definitions, and the transition table.
package order

import (
	"time"

	"sokoni/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusPickedUp   Status = "picked_up"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type FulfillmentMethod string

const (
	FulfillmentPickup  FulfillmentMethod = "pickup"
	FulfillmentCourier FulfillmentMethod = "courier"
)

// Item is an immutable snapshot of a purchased product line, captured at
// order time so later catalog edits cannot rewrite history.
type Item struct {
	ProductID      types.ID    `json:"product_id"`
	VendorID       types.ID    `json:"vendor_id"`
	Name           string      `json:"name"`
	UnitPrice      types.Money `json:"unit_price"`
	Quantity       int         `json:"quantity"`
	ReturnEligible bool        `json:"return_eligible"`
}

type Order struct {
	ID                 types.ID
	CustomerID         types.ID
	Items              []Item
	Subtotal           types.Money
	Tax                types.Money
	Discount           types.Money
	Shipping           types.Money
	Total              types.Money
	Status             Status
	StatusVersion      int
	FulfillmentMethod  FulfillmentMethod
	PaymentStatus      string
	CompletionCode     string
	ActualDeliveryDate *time.Time
	ProductRating      *int
	DeliveryRating     *int
	RatingComments     *string
	RatedAt            *time.Time
	CreatedAt          time.Time
	CancelledAt        *time.Time
	CancelReason       *string
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCompleted || s == StatusCancelled
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions encodes the order state flow. shipped is the
// courier leg, picked_up the customer-collection leg; completed closes
// pickup orders that never carry a dispatch record.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusPickedUp, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusPickedUp:   {StatusDelivered, StatusCompleted, StatusCancelled},
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
