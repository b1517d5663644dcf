// README: Tracking service; guards ping writes and derives current location.
package tracking

import (
	"context"
	"errors"
	"time"

	"sokoni/internal/geo"
	"sokoni/internal/modules/dispatch"
	"sokoni/internal/types"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrUnknownDispatch  = errors.New("unknown dispatch")
	ErrDispatchTerminal = errors.New("dispatch already closed")
	ErrNoLocation       = errors.New("no location yet")
)

type Store interface {
	Append(ctx context.Context, p *Ping) error
	Latest(ctx context.Context, dispatchID types.ID) (*Ping, error)
	History(ctx context.Context, dispatchID types.ID, limit int) ([]*Ping, error)
}

// DispatchReader resolves the dispatch a ping claims to belong to.
type DispatchReader interface {
	Get(ctx context.Context, id types.ID) (*dispatch.Dispatch, error)
}

type Service struct {
	store      Store
	dispatches DispatchReader
}

func NewService(store Store, dispatches DispatchReader) *Service {
	return &Service{store: store, dispatches: dispatches}
}

type PingCommand struct {
	DispatchID types.ID
	CourierID  types.ID
	Position   types.Point
	HeadingDeg *float64
	SpeedKmh   *float64
	AccuracyM  *float64
	RecordedAt time.Time
}

// RecordPing appends one sample. A terminal dispatch rejects further
// pings; everything else, including out-of-order timestamps, is kept.
func (s *Service) RecordPing(ctx context.Context, cmd PingCommand) (*Ping, error) {
	if cmd.CourierID == "" || cmd.RecordedAt.IsZero() {
		return nil, ErrBadRequest
	}
	if err := geo.Validate(cmd.Position); err != nil {
		return nil, ErrBadRequest
	}

	d, err := s.dispatches.Get(ctx, cmd.DispatchID)
	if err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			return nil, ErrUnknownDispatch
		}
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, ErrDispatchTerminal
	}

	p := &Ping{
		DispatchID: cmd.DispatchID,
		CourierID:  cmd.CourierID,
		Position:   cmd.Position,
		HeadingDeg: cmd.HeadingDeg,
		SpeedKmh:   cmd.SpeedKmh,
		AccuracyM:  cmd.AccuracyM,
		RecordedAt: cmd.RecordedAt,
	}
	if err := s.store.Append(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CurrentLocation is the max-timestamp ping, never the most recently
// inserted one.
func (s *Service) CurrentLocation(ctx context.Context, dispatchID types.ID) (*Ping, error) {
	if _, err := s.dispatches.Get(ctx, dispatchID); err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			return nil, ErrUnknownDispatch
		}
		return nil, err
	}
	return s.store.Latest(ctx, dispatchID)
}

// Progress bundles the live view a customer screen needs: latest
// position plus the clamped time-to-arrival.
type Progress struct {
	Location  *Ping     `json:"location,omitempty"`
	Remaining Remaining `json:"remaining"`
}

func (s *Service) Progress(ctx context.Context, dispatchID types.ID, now time.Time) (*Progress, error) {
	d, err := s.dispatches.Get(ctx, dispatchID)
	if err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			return nil, ErrUnknownDispatch
		}
		return nil, err
	}

	out := &Progress{Remaining: ETARemaining(d.EstimatedDeliveryTime, now)}
	p, err := s.store.Latest(ctx, dispatchID)
	if err == nil {
		out.Location = p
	} else if !errors.Is(err, ErrNoLocation) {
		return nil, err
	}
	return out, nil
}

func (s *Service) History(ctx context.Context, dispatchID types.ID, limit int) ([]*Ping, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	return s.store.History(ctx, dispatchID, limit)
}
