// README: Returns service; enforces the post-delivery window and the admin workflow.
package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sokoni/internal/logger"
	"sokoni/internal/modules/order"
	"sokoni/internal/types"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrNotFound          = errors.New("return request not found")
	ErrNotEligible       = errors.New("order not eligible for return")
	ErrDuplicateReturn   = errors.New("order already has an active return")
	ErrIllegalTransition = errors.New("illegal return transition")
	ErrConflict          = errors.New("return state conflict")
)

type Store interface {
	CreateIfNoneActive(ctx context.Context, r *ReturnRequest) (bool, error)
	Get(ctx context.Context, id types.ID) (*ReturnRequest, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, adminNotes string) (bool, error)
	ListByOrder(ctx context.Context, orderID types.ID) ([]*ReturnRequest, error)
}

type OrderReader interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

// EarningsReverser undoes vendor credits when a refund completes. Keyed
// by order id on the ledger side, so repeated calls are safe.
type EarningsReverser interface {
	Reverse(ctx context.Context, orderID types.ID) error
}

type Notifier interface {
	Notify(ctx context.Context, actor, event string, payload map[string]any)
}

type Service struct {
	store    Store
	orders   OrderReader
	earnings EarningsReverser
	notifier Notifier
	window   time.Duration
}

func NewService(store Store, orders OrderReader, earnings EarningsReverser, notifier Notifier, window time.Duration) *Service {
	return &Service{store: store, orders: orders, earnings: earnings, notifier: notifier, window: window}
}

type FileCommand struct {
	OrderID    types.ID
	Reason     string
	Resolution Resolution
	Message    string
}

// Eligibility evaluates the return window lazily from stored timestamps.
// Per-item flags ride along as advisories and never block the order.
func (s *Service) Eligibility(ctx context.Context, orderID types.ID, now time.Time) (*Eligibility, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	out := &Eligibility{}
	for _, it := range o.Items {
		out.Items = append(out.Items, ItemAdvisory{
			ProductID:      it.ProductID,
			Name:           it.Name,
			ReturnEligible: it.ReturnEligible,
		})
	}

	if o.Status != order.StatusDelivered || o.ActualDeliveryDate == nil {
		out.Reason = "order has not been delivered"
		return out, nil
	}
	ends := o.ActualDeliveryDate.Add(s.window)
	out.WindowEnds = &ends
	if now.After(ends) {
		out.Reason = fmt.Sprintf("return window closed %s after delivery", s.window)
		return out, nil
	}
	out.Eligible = true
	return out, nil
}

// File creates a pending return request inside the window. A second
// filing while one is pending or approved is refused.
func (s *Service) File(ctx context.Context, cmd FileCommand) (*ReturnRequest, error) {
	switch cmd.Resolution {
	case ResolutionReplacement, ResolutionExchange, ResolutionRefund:
	default:
		return nil, ErrBadRequest
	}
	if cmd.Reason == "" {
		return nil, ErrBadRequest
	}

	now := time.Now()
	elig, err := s.Eligibility(ctx, cmd.OrderID, now)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, elig.Reason)
	}

	r := &ReturnRequest{
		ID:         types.NewID(),
		OrderID:    cmd.OrderID,
		Reason:     cmd.Reason,
		Resolution: cmd.Resolution,
		Message:    cmd.Message,
		Status:     StatusPending,
		CreatedAt:  now,
	}
	ok, err := s.store.CreateIfNoneActive(ctx, r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicateReturn
	}

	s.notifier.Notify(ctx, "admin", "return_filed", map[string]any{
		"return_id": r.ID, "order_id": r.OrderID, "resolution": r.Resolution,
	})
	return r, nil
}

// Resolve moves a pending request to approved or rejected.
func (s *Service) Resolve(ctx context.Context, requestID types.ID, approve bool, adminNotes string) (*ReturnRequest, error) {
	target := StatusRejected
	if approve {
		target = StatusApproved
	}
	return s.transition(ctx, requestID, target, adminNotes)
}

// Complete closes an approved request once the external refund or
// replacement has been executed. A completed refund reverses the
// vendor's earnings for the order.
func (s *Service) Complete(ctx context.Context, requestID types.ID) (*ReturnRequest, error) {
	r, err := s.transition(ctx, requestID, StatusCompleted, "")
	if err != nil {
		return nil, err
	}
	if r.Resolution == ResolutionRefund {
		if err := s.earnings.Reverse(ctx, r.OrderID); err != nil {
			logger.Get().Error("earnings reversal failed",
				zap.String("order_id", string(r.OrderID)), zap.Error(err))
		}
	}
	return r, nil
}

func (s *Service) transition(ctx context.Context, requestID types.ID, target Status, adminNotes string) (*ReturnRequest, error) {
	r, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, target) {
		return nil, ErrIllegalTransition
	}
	ok, err := s.store.UpdateStatus(ctx, requestID, r.Status, target, adminNotes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	s.notifier.Notify(ctx, "customer", "return_"+string(target), map[string]any{
		"return_id": r.ID, "order_id": r.OrderID,
	})
	return s.store.Get(ctx, requestID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*ReturnRequest, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByOrder(ctx context.Context, orderID types.ID) ([]*ReturnRequest, error) {
	return s.store.ListByOrder(ctx, orderID)
}
