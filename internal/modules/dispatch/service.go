// README: Dispatch service; creates delivery legs and drives the sub-state machine.
package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"sokoni/internal/geo"
	"sokoni/internal/logger"
	"sokoni/internal/types"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrNotFound          = errors.New("dispatch not found")
	ErrDispatchExists    = errors.New("order already has a dispatch")
	ErrIllegalTransition = errors.New("illegal dispatch transition")
	ErrConflict          = errors.New("dispatch state conflict")
)

type Store interface {
	Create(ctx context.Context, d *Dispatch) error
	Get(ctx context.Context, id types.ID) (*Dispatch, error)
	GetByOrder(ctx context.Context, orderID types.ID) (*Dispatch, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, courierID *types.ID) (bool, error)
	Reassign(ctx context.Context, id types.ID, version int, courierID types.ID) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Dispatch, error)
	MarkDeliveredSynced(ctx context.Context, id types.ID) error
	ListUnsyncedDelivered(ctx context.Context, limit int) ([]*Dispatch, error)
}

// Pricing freezes the delivery fee and the advisory ETA at creation.
type Pricing interface {
	Fee(ctx context.Context, distanceKm float64) (types.Money, error)
	ETA(distanceKm float64, from time.Time) time.Time
}

// ETARefiner optionally replaces the speed-based ETA with a routed one.
// A nil refiner or a refiner error keeps the original estimate.
type ETARefiner interface {
	Refine(ctx context.Context, pickup, delivery types.Point, fallback time.Time) time.Time
}

// OrderObserver receives the terminal delivered event. Implementations
// must be idempotent; the same dispatch may report delivery twice.
type OrderObserver interface {
	HandleDispatchDelivered(ctx context.Context, orderID types.ID) error
}

type Notifier interface {
	Notify(ctx context.Context, actor, event string, payload map[string]any)
}

type Service struct {
	store      Store
	pricing    Pricing
	refiner    ETARefiner
	observer   OrderObserver
	notifier   Notifier
	pendingSLA time.Duration
}

func NewService(store Store, pricing Pricing, refiner ETARefiner, observer OrderObserver, notifier Notifier, pendingSLA time.Duration) *Service {
	return &Service{
		store:      store,
		pricing:    pricing,
		refiner:    refiner,
		observer:   observer,
		notifier:   notifier,
		pendingSLA: pendingSLA,
	}
}

type CreateCommand struct {
	OrderID         types.ID
	Pickup          types.Point
	Delivery        types.Point
	PickupAddress   string
	DeliveryAddress string
}

type TransitionCommand struct {
	DispatchID types.ID
	Target     Status
	ActorType  string
	ActorID    *types.ID
}

// Create computes distance, fee and ETA once; they stay immutable for
// the life of the dispatch.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Dispatch, error) {
	if cmd.OrderID == "" {
		return nil, ErrBadRequest
	}
	if err := geo.Validate(cmd.Pickup); err != nil {
		return nil, ErrBadRequest
	}
	if err := geo.Validate(cmd.Delivery); err != nil {
		return nil, ErrBadRequest
	}

	distance := geo.HaversineKm(cmd.Pickup, cmd.Delivery)
	fee, err := s.pricing.Fee(ctx, distance)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	eta := s.pricing.ETA(distance, now)
	if s.refiner != nil {
		eta = s.refiner.Refine(ctx, cmd.Pickup, cmd.Delivery, eta)
	}

	d := &Dispatch{
		ID:                    types.NewID(),
		OrderID:               cmd.OrderID,
		PickupAddress:         cmd.PickupAddress,
		DeliveryAddress:       cmd.DeliveryAddress,
		Pickup:                cmd.Pickup,
		Delivery:              cmd.Delivery,
		DistanceKm:            distance,
		Fee:                   fee,
		Status:                StatusPending,
		StatusVersion:         0,
		EstimatedDeliveryTime: eta,
		CreatedAt:             now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		DispatchID: d.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "system",
		CreatedAt:  now,
	})
	return d, nil
}

// Assign attaches a courier. A dispatch still in assigned may be handed
// to a different courier; the swap is recorded as a reassignment event,
// never a silent overwrite.
func (s *Service) Assign(ctx context.Context, dispatchID, courierID types.ID, actorType string) (*Dispatch, error) {
	if courierID == "" {
		return nil, ErrBadRequest
	}
	d, err := s.store.Get(ctx, dispatchID)
	if err != nil {
		return nil, err
	}

	switch d.Status {
	case StatusPending:
		ok, err := s.store.UpdateStatus(ctx, d.ID, StatusPending, StatusAssigned, d.StatusVersion, &courierID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConflict
		}
		_ = s.store.AppendEvent(ctx, &Event{
			DispatchID: d.ID,
			FromStatus: StatusPending,
			ToStatus:   StatusAssigned,
			ActorType:  actorType,
			ActorID:    &courierID,
			CreatedAt:  time.Now(),
		})
		s.notifier.Notify(ctx, "courier", "dispatch_assigned", map[string]any{"dispatch_id": d.ID, "courier_id": courierID})
	case StatusAssigned:
		ok, err := s.store.Reassign(ctx, d.ID, d.StatusVersion, courierID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConflict
		}
		note := "reassigned"
		if d.CourierID != nil {
			note = "reassigned from " + string(*d.CourierID)
		}
		_ = s.store.AppendEvent(ctx, &Event{
			DispatchID: d.ID,
			FromStatus: StatusAssigned,
			ToStatus:   StatusAssigned,
			ActorType:  actorType,
			ActorID:    &courierID,
			Note:       note,
			CreatedAt:  time.Now(),
		})
		s.notifier.Notify(ctx, "courier", "dispatch_reassigned", map[string]any{"dispatch_id": d.ID, "courier_id": courierID})
	default:
		return nil, ErrIllegalTransition
	}

	return s.store.Get(ctx, dispatchID)
}

// Transition moves the dispatch through its lifecycle. Reaching
// delivered reports upward to the order observer; the dispatch row
// records the acknowledgement, and unacknowledged deliveries are
// redelivered by ReconcileDelivered until the observer accepts. The
// observer is idempotent, so at-least-once is safe.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Dispatch, error) {
	d, err := s.store.Get(ctx, cmd.DispatchID)
	if err != nil {
		return nil, err
	}
	if cmd.Target == StatusAssigned {
		return nil, ErrBadRequest // courier assignment goes through Assign
	}
	if !CanTransition(d.Status, cmd.Target) {
		return nil, ErrIllegalTransition
	}

	ok, err := s.store.UpdateStatus(ctx, d.ID, d.Status, cmd.Target, d.StatusVersion, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		DispatchID: d.ID,
		FromStatus: d.Status,
		ToStatus:   cmd.Target,
		ActorType:  cmd.ActorType,
		ActorID:    cmd.ActorID,
		CreatedAt:  time.Now(),
	})

	switch cmd.Target {
	case StatusDelivered:
		s.syncDelivered(ctx, d.ID, d.OrderID)
		s.notifier.Notify(ctx, "customer", "dispatch_delivered", map[string]any{"dispatch_id": d.ID})
	case StatusInTransit:
		s.notifier.Notify(ctx, "customer", "dispatch_in_transit", map[string]any{"dispatch_id": d.ID})
	case StatusCancelled:
		s.notifier.Notify(ctx, "customer", "dispatch_cancelled", map[string]any{"dispatch_id": d.ID})
	}

	return s.store.Get(ctx, cmd.DispatchID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Dispatch, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByOrder(ctx context.Context, orderID types.ID) (*Dispatch, error) {
	return s.store.GetByOrder(ctx, orderID)
}

// StalePending lists dispatches that blew the assignment SLA. The sweep
// itself belongs to an external scheduler; this is only the lazy query.
func (s *Service) StalePending(ctx context.Context, now time.Time, limit int) ([]*Dispatch, error) {
	return s.store.ListStalePending(ctx, now.Add(-s.pendingSLA), limit)
}

// syncDelivered hands the delivered event to the order module and, on
// acceptance, records the acknowledgement on the dispatch row. A failed
// handoff leaves the row unsynced for ReconcileDelivered to retry.
func (s *Service) syncDelivered(ctx context.Context, dispatchID, orderID types.ID) {
	if err := s.observer.HandleDispatchDelivered(ctx, orderID); err != nil {
		logger.Get().Error("order delivered propagation failed, reconciler will retry",
			zap.String("dispatch_id", string(dispatchID)), zap.String("order_id", string(orderID)), zap.Error(err))
		return
	}
	if err := s.store.MarkDeliveredSynced(ctx, dispatchID); err != nil {
		logger.Get().Warn("delivered acknowledgement write failed",
			zap.String("dispatch_id", string(dispatchID)), zap.Error(err))
	}
}

// ReconcileDelivered redelivers the delivered event for every terminal
// dispatch the order module has not acknowledged yet. This is the
// at-least-once leg of the dispatch-to-order handoff: the dispatch is
// already terminal, so nothing else can re-trigger the event.
func (s *Service) ReconcileDelivered(ctx context.Context, limit int) error {
	stale, err := s.store.ListUnsyncedDelivered(ctx, limit)
	if err != nil {
		return err
	}
	for _, d := range stale {
		s.syncDelivered(ctx, d.ID, d.OrderID)
	}
	return nil
}

// RunDeliveredReconciler drives ReconcileDelivered until the context
// ends.
func (s *Service) RunDeliveredReconciler(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ReconcileDelivered(ctx, 100); err != nil {
				logger.Get().Warn("delivered reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// RunPendingMonitor periodically flags dispatches that sat unassigned
// past the SLA so admins can intervene. It only alerts; assignment
// stays a human (or future matcher) decision.
func (s *Service) RunPendingMonitor(ctx context.Context) {
	ticker := time.NewTicker(s.pendingSLA / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			stale, err := s.StalePending(ctx, now, 100)
			if err != nil {
				logger.Get().Warn("stale pending sweep failed", zap.Error(err))
				continue
			}
			for _, d := range stale {
				s.notifier.Notify(ctx, "admin", "dispatch_unassigned_sla", map[string]any{
					"dispatch_id": d.ID,
					"order_id":    d.OrderID,
					"created_at":  d.CreatedAt,
				})
			}
		}
	}
}
