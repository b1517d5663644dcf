// README: Order service; validates transitions and fires at-most-once side effects.
package order

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"go.uber.org/zap"

	"sokoni/internal/logger"
	"sokoni/internal/types"
)

var (
	ErrBadRequest           = errors.New("bad request")
	ErrNotFound             = errors.New("order not found")
	ErrIllegalTransition    = errors.New("illegal order transition")
	ErrConflict             = errors.New("order state conflict")
	ErrTotalsMismatch       = errors.New("order totals do not add up")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrAlreadyRated         = errors.New("order already rated")
	ErrNotDelivered         = errors.New("order not delivered yet")
	ErrBadCompletionCode    = errors.New("completion code mismatch")
	ErrCompensationRequired = errors.New("vendor earnings already recorded; cancellation needs manual resolution")
)

// Store is the persistence contract the service drives. The pgx
// implementation lives in store.go; tests substitute an in-memory one.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ClaimSideEffect(ctx context.Context, id types.ID, target Status) (bool, error)
	SetRating(ctx context.Context, id types.ID, product, delivery int, comments string) (bool, error)
}

// Earnings is the external vendor-payout ledger. Credit must be
// idempotent per (order, vendor).
type Earnings interface {
	Credit(ctx context.Context, orderID, vendorID types.ID, gross types.Money) error
	HasCredit(ctx context.Context, orderID types.ID) (bool, error)
}

// Stock releases inventory reserved for a cancelled order.
type Stock interface {
	Release(ctx context.Context, orderID types.ID) error
}

// Notifier is fire-and-forget; implementations must not block the
// transition path on delivery failures.
type Notifier interface {
	Notify(ctx context.Context, actor, event string, payload map[string]any)
}

type Service struct {
	store    Store
	earnings Earnings
	stock    Stock
	notifier Notifier
}

func NewService(store Store, earnings Earnings, stock Stock, notifier Notifier) *Service {
	return &Service{store: store, earnings: earnings, stock: stock, notifier: notifier}
}

type CreateCommand struct {
	CustomerID        types.ID
	Items             []Item
	Subtotal          types.Money
	Tax               types.Money
	Discount          types.Money
	Shipping          types.Money
	Total             types.Money
	FulfillmentMethod FulfillmentMethod
	PaymentStatus     string
}

type TransitionCommand struct {
	OrderID        types.ID
	Target         Status
	ActorType      string
	ActorID        *types.ID
	Reason         string
	CompletionCode string
}

type RatingCommand struct {
	OrderID        types.ID
	ProductRating  int
	DeliveryRating int
	Comments       string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || len(cmd.Items) == 0 {
		return nil, ErrBadRequest
	}
	if cmd.FulfillmentMethod != FulfillmentPickup && cmd.FulfillmentMethod != FulfillmentCourier {
		return nil, ErrBadRequest
	}
	for _, it := range cmd.Items {
		if it.Quantity <= 0 || it.UnitPrice.Amount < 0 || it.ProductID == "" || it.VendorID == "" {
			return nil, ErrBadRequest
		}
	}
	if cmd.Subtotal.Amount+cmd.Tax.Amount+cmd.Shipping.Amount-cmd.Discount.Amount != cmd.Total.Amount {
		return nil, ErrTotalsMismatch
	}

	now := time.Now()
	o := &Order{
		ID:                types.NewID(),
		CustomerID:        cmd.CustomerID,
		Items:             cmd.Items,
		Subtotal:          cmd.Subtotal,
		Tax:               cmd.Tax,
		Discount:          cmd.Discount,
		Shipping:          cmd.Shipping,
		Total:             cmd.Total,
		Status:            StatusPending,
		StatusVersion:     0,
		FulfillmentMethod: cmd.FulfillmentMethod,
		PaymentStatus:     cmd.PaymentStatus,
		CompletionCode:    newCompletionCode(),
		CreatedAt:         now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "customer",
		ActorID:    &cmd.CustomerID,
		CreatedAt:  now,
	})
	return o, nil
}

// Transition moves an order to the target status. Re-entering delivered
// is an idempotent no-op so duplicate dispatch events do not error.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if cmd.Target == StatusDelivered && o.Status == StatusDelivered {
		return o, nil
	}
	if !CanTransition(o.Status, cmd.Target) {
		return nil, ErrIllegalTransition
	}
	if err := s.guardTransition(ctx, o, cmd); err != nil {
		return nil, err
	}

	var reason *string
	if cmd.Target == StatusCancelled && cmd.Reason != "" {
		reason = &cmd.Reason
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.Target, o.StatusVersion, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   cmd.Target,
		ActorType:  cmd.ActorType,
		ActorID:    cmd.ActorID,
		CreatedAt:  time.Now(),
	})

	s.fireSideEffects(ctx, o, cmd.Target)
	return s.store.Get(ctx, cmd.OrderID)
}

func (s *Service) guardTransition(ctx context.Context, o *Order, cmd TransitionCommand) error {
	switch cmd.Target {
	case StatusShipped:
		if o.FulfillmentMethod != FulfillmentCourier {
			return ErrIllegalTransition
		}
	case StatusPickedUp, StatusCompleted:
		if o.FulfillmentMethod != FulfillmentPickup {
			return ErrIllegalTransition
		}
	case StatusDelivered:
		// couriers must present the customer's handoff code; system and
		// admin transitions bypass it
		if cmd.ActorType == "courier" && cmd.CompletionCode != o.CompletionCode {
			return ErrBadCompletionCode
		}
	case StatusCancelled:
		credited, err := s.earnings.HasCredit(ctx, o.ID)
		if err != nil {
			return err
		}
		if credited {
			return ErrCompensationRequired
		}
	}
	return nil
}

// fireSideEffects runs transition side effects at most once per
// (order, target status). Notification failures never abort anything.
func (s *Service) fireSideEffects(ctx context.Context, o *Order, target Status) {
	claimed, err := s.store.ClaimSideEffect(ctx, o.ID, target)
	if err != nil {
		logger.Get().Warn("side-effect claim failed",
			zap.String("order_id", string(o.ID)), zap.String("target", string(target)), zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	switch target {
	case StatusDelivered, StatusCompleted:
		for vendorID, gross := range vendorTotals(o.Items) {
			if err := s.earnings.Credit(ctx, o.ID, vendorID, gross); err != nil {
				logger.Get().Error("earnings credit failed",
					zap.String("order_id", string(o.ID)), zap.String("vendor_id", string(vendorID)), zap.Error(err))
			}
		}
		s.notifier.Notify(ctx, "customer", "order_delivered", map[string]any{"order_id": o.ID})
		s.notifier.Notify(ctx, "vendor", "order_delivered", map[string]any{"order_id": o.ID})
	case StatusCancelled:
		if err := s.stock.Release(ctx, o.ID); err != nil {
			logger.Get().Error("stock release failed",
				zap.String("order_id", string(o.ID)), zap.Error(err))
		}
		s.notifier.Notify(ctx, "customer", "order_cancelled", map[string]any{"order_id": o.ID})
	case StatusProcessing:
		s.notifier.Notify(ctx, "vendor", "order_processing", map[string]any{"order_id": o.ID})
	case StatusShipped:
		s.notifier.Notify(ctx, "customer", "order_shipped", map[string]any{"order_id": o.ID})
	}
}

// HandleDispatchDelivered is the idempotent consumer for the dispatch
// module's terminal event. Delivery of the same event twice is a no-op;
// a lost CAS race is retried against fresh state. An order the vendor
// never marked shipped is stepped through shipped first so the courier's
// handoff still lands.
func (s *Service) HandleDispatchDelivered(ctx context.Context, orderID types.ID) error {
	for attempt := 0; attempt < 3; attempt++ {
		o, err := s.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == StatusDelivered {
			return nil
		}

		target := StatusDelivered
		if o.Status == StatusProcessing {
			target = StatusShipped
		}
		_, err = s.Transition(ctx, TransitionCommand{
			OrderID:   orderID,
			Target:    target,
			ActorType: "system",
		})
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return err
		}
		if target == StatusDelivered {
			return nil
		}
	}
	return ErrConflict
}

// SubmitRating captures the one-shot product and delivery ratings. A
// second submission conflicts rather than silently overwriting.
func (s *Service) SubmitRating(ctx context.Context, cmd RatingCommand) (*Order, error) {
	if cmd.ProductRating < 1 || cmd.ProductRating > 5 || cmd.DeliveryRating < 1 || cmd.DeliveryRating > 5 {
		return nil, ErrInvalidRating
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusDelivered {
		return nil, ErrNotDelivered
	}
	if o.ProductRating != nil || o.DeliveryRating != nil {
		return nil, ErrAlreadyRated
	}

	ok, err := s.store.SetRating(ctx, cmd.OrderID, cmd.ProductRating, cmd.DeliveryRating, cmd.Comments)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyRated
	}
	return s.store.Get(ctx, cmd.OrderID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func vendorTotals(items []Item) map[types.ID]types.Money {
	totals := make(map[types.ID]types.Money)
	for _, it := range items {
		m := totals[it.VendorID]
		m.Amount += it.UnitPrice.Amount * int64(it.Quantity)
		m.Currency = it.UnitPrice.Currency
		totals[it.VendorID] = m
	}
	return totals
}

func newCompletionCode() string {
	const digits = "0123456789"
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			// crypto/rand only fails when the platform source is broken
			n = big.NewInt(int64(i))
		}
		code[i] = digits[n.Int64()]
	}
	return string(code)
}
