// README: Return request model and workflow states.
package returns

import (
	"time"

	"sokoni/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

type Resolution string

const (
	ResolutionReplacement Resolution = "replacement"
	ResolutionExchange    Resolution = "exchange"
	ResolutionRefund      Resolution = "refund"
)

type ReturnRequest struct {
	ID          types.ID
	OrderID     types.ID
	Reason      string
	Resolution  Resolution
	Message     string
	Status      Status
	AdminNotes  string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	CompletedAt *time.Time
}

// Active requests block a second filing against the same order.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
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

// ItemAdvisory surfaces the per-product return policy to the customer.
// Advisory only; the order-level window is the hard gate.
type ItemAdvisory struct {
	ProductID      types.ID `json:"product_id"`
	Name           string   `json:"name"`
	ReturnEligible bool     `json:"return_eligible"`
}

type Eligibility struct {
	Eligible   bool           `json:"eligible"`
	Reason     string         `json:"reason,omitempty"`
	WindowEnds *time.Time     `json:"window_ends,omitempty"`
	Items      []ItemAdvisory `json:"items,omitempty"`
}
