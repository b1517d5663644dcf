// README: Dispatch store; PostgreSQL rows with a Redis read cache.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sokoni/internal/logger"
	"sokoni/internal/types"
)

// Short TTL bounds how long a record survives a failed invalidation.
const cacheTTL = 5 * time.Minute

type PgStore struct {
	db    *pgxpool.Pool
	cache *redis.Client
}

func NewStore(db *pgxpool.Pool, cache *redis.Client) *PgStore {
	return &PgStore{db: db, cache: cache}
}

func cacheKey(id types.ID) string {
	return "dispatch:" + string(id)
}

func (s *PgStore) Create(ctx context.Context, d *Dispatch) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO dispatches (
            id, order_id, pickup_address, delivery_address,
            pickup_lat, pickup_lng, delivery_lat, delivery_lng,
            distance_km, fee, currency, status, status_version,
            estimated_delivery_time, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		string(d.ID), string(d.OrderID), d.PickupAddress, d.DeliveryAddress,
		d.Pickup.Lat, d.Pickup.Lng, d.Delivery.Lat, d.Delivery.Lng,
		d.DistanceKm, d.Fee.Amount, d.Fee.Currency, string(d.Status), d.StatusVersion,
		d.EstimatedDeliveryTime, d.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDispatchExists
		}
		return fmt.Errorf("insert dispatch: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Dispatch, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(id)).Bytes(); err == nil {
			var d Dispatch
			if json.Unmarshal(raw, &d) == nil {
				return &d, nil
			}
		}
	}

	d, err := s.getFromDB(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fillCache(ctx, d)
	return d, nil
}

func (s *PgStore) getFromDB(ctx context.Context, id types.ID) (*Dispatch, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, order_id, pickup_address, delivery_address,
               pickup_lat, pickup_lng, delivery_lat, delivery_lng,
               distance_km, fee, currency, status, status_version, courier_id,
               estimated_delivery_time, actual_delivery_time, delivered_synced_at, created_at,
               assigned_at, picked_up_at, in_transit_at, delivered_at, cancelled_at
        FROM dispatches
        WHERE id = $1`, string(id),
	)
	return scanDispatch(row)
}

// GetByOrder resolves the delivery leg paired with an order.
func (s *PgStore) GetByOrder(ctx context.Context, orderID types.ID) (*Dispatch, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, order_id, pickup_address, delivery_address,
               pickup_lat, pickup_lng, delivery_lat, delivery_lng,
               distance_km, fee, currency, status, status_version, courier_id,
               estimated_delivery_time, actual_delivery_time, delivered_synced_at, created_at,
               assigned_at, picked_up_at, in_transit_at, delivered_at, cancelled_at
        FROM dispatches
        WHERE order_id = $1`, string(orderID),
	)
	return scanDispatch(row)
}

func scanDispatch(row pgx.Row) (*Dispatch, error) {
	var d Dispatch
	var courierID *string
	err := row.Scan(
		&d.ID, &d.OrderID, &d.PickupAddress, &d.DeliveryAddress,
		&d.Pickup.Lat, &d.Pickup.Lng, &d.Delivery.Lat, &d.Delivery.Lng,
		&d.DistanceKm, &d.Fee.Amount, &d.Fee.Currency, &d.Status, &d.StatusVersion, &courierID,
		&d.EstimatedDeliveryTime, &d.ActualDeliveryTime, &d.DeliveredSyncedAt, &d.CreatedAt,
		&d.AssignedAt, &d.PickedUpAt, &d.InTransitAt, &d.DeliveredAt, &d.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan dispatch: %w", err)
	}
	if courierID != nil {
		c := types.ID(*courierID)
		d.CourierID = &c
	}
	return &d, nil
}

// UpdateStatus applies one CAS transition. Timestamp columns are written
// by the transition that enters the state, so picked_up_at <=
// in_transit_at <= delivered_at holds by construction, and
// actual_delivery_time is set at most once.
func (s *PgStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, courierID *types.ID) (bool, error) {
	// Drop the cached copy before and after the write; a failed
	// post-write Del leaves at most a cacheTTL-bounded staleness window.
	s.invalidate(ctx, id)
	tag, err := s.db.Exec(ctx, `
        UPDATE dispatches
        SET status = $1,
            status_version = status_version + 1,
            courier_id = COALESCE($2, courier_id),
            assigned_at = CASE WHEN $1 = 'assigned' THEN NOW() ELSE assigned_at END,
            picked_up_at = CASE WHEN $1 = 'picked_up' THEN NOW() ELSE picked_up_at END,
            in_transit_at = CASE WHEN $1 = 'in_transit' THEN NOW() ELSE in_transit_at END,
            delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
            actual_delivery_time = CASE
                WHEN $1 = 'delivered' AND actual_delivery_time IS NULL THEN NOW()
                ELSE actual_delivery_time END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), idPtr(courierID), string(id), string(from), version,
	)
	if err != nil {
		return false, fmt.Errorf("update dispatch status: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	s.invalidate(ctx, id)
	return true, nil
}

// Reassign swaps the courier while the dispatch is still assigned. The
// version bump makes the swap visible to concurrent readers.
func (s *PgStore) Reassign(ctx context.Context, id types.ID, version int, courierID types.ID) (bool, error) {
	c := string(courierID)
	s.invalidate(ctx, id)
	tag, err := s.db.Exec(ctx, `
        UPDATE dispatches
        SET courier_id = $1,
            status_version = status_version + 1,
            assigned_at = NOW()
        WHERE id = $2 AND status = 'assigned' AND status_version = $3`,
		c, string(id), version,
	)
	if err != nil {
		return false, fmt.Errorf("reassign dispatch: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	s.invalidate(ctx, id)
	return true, nil
}

func (s *PgStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO dispatch_state_events (
            dispatch_id, from_status, to_status, actor_type, actor_id, note, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		string(e.DispatchID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, idPtr(e.ActorID), e.Note, e.CreatedAt,
	)
	return err
}

// MarkDeliveredSynced records that the order module accepted the
// delivered event. Idempotent; the first acknowledgement wins.
func (s *PgStore) MarkDeliveredSynced(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
        UPDATE dispatches
        SET delivered_synced_at = NOW()
        WHERE id = $1 AND delivered_synced_at IS NULL`,
		string(id),
	)
	if err != nil {
		return fmt.Errorf("mark delivered synced: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

// ListUnsyncedDelivered feeds the delivered reconciler: terminal
// dispatches whose order-side handoff never got acknowledged.
func (s *PgStore) ListUnsyncedDelivered(ctx context.Context, limit int) ([]*Dispatch, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, pickup_address, delivery_address,
               pickup_lat, pickup_lng, delivery_lat, delivery_lng,
               distance_km, fee, currency, status, status_version, courier_id,
               estimated_delivery_time, actual_delivery_time, delivered_synced_at, created_at,
               assigned_at, picked_up_at, in_transit_at, delivered_at, cancelled_at
        FROM dispatches
        WHERE status = 'delivered' AND delivered_synced_at IS NULL
        ORDER BY delivered_at
        LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unsynced delivered: %w", err)
	}
	defer rows.Close()

	var out []*Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListStalePending feeds the external SLA sweeper: dispatches still
// pending past the assignment deadline, oldest first.
func (s *PgStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Dispatch, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, pickup_address, delivery_address,
               pickup_lat, pickup_lng, delivery_lat, delivery_lng,
               distance_km, fee, currency, status, status_version, courier_id,
               estimated_delivery_time, actual_delivery_time, delivered_synced_at, created_at,
               assigned_at, picked_up_at, in_transit_at, delivered_at, cancelled_at
        FROM dispatches
        WHERE status = 'pending' AND created_at < $1
        ORDER BY created_at
        LIMIT $2`, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale dispatches: %w", err)
	}
	defer rows.Close()

	var out []*Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PgStore) fillCache(ctx context.Context, d *Dispatch) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(d.ID), raw, cacheTTL).Err(); err != nil {
		logger.Get().Warn("dispatch cache write failed", zap.String("dispatch_id", string(d.ID)), zap.Error(err))
	}
}

func (s *PgStore) invalidate(ctx context.Context, id types.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(id)).Err(); err != nil {
		logger.Get().Warn("dispatch cache invalidation failed", zap.String("dispatch_id", string(id)), zap.Error(err))
	}
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
