// README: Ping ledger; PostgreSQL ledger of record, Redis sorted set as hot read path.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sokoni/internal/logger"
	"sokoni/internal/types"
)

// maxCachedPings bounds the per-dispatch sorted set; the full history
// stays in Postgres.
const maxCachedPings = 200

type PgStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *PgStore {
	return &PgStore{db: db, redis: redis}
}

func trackKey(id types.ID) string {
	return "track:" + string(id)
}

// Append stores the ping and mirrors it into the Redis sorted set scored
// by recorded_at. ZADD is commutative, so concurrent and out-of-order
// pings all land and the max-score member is always the freshest sample.
func (s *PgStore) Append(ctx context.Context, p *Ping) error {
	err := s.db.QueryRow(ctx, `
        INSERT INTO tracking_pings (
            dispatch_id, courier_id, lat, lng, heading_deg, speed_kmh, accuracy_m, recorded_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`,
		string(p.DispatchID), string(p.CourierID),
		p.Position.Lat, p.Position.Lng,
		p.HeadingDeg, p.SpeedKmh, p.AccuracyM, p.RecordedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("append ping: %w", err)
	}

	s.cachePing(ctx, p)
	return nil
}

func (s *PgStore) cachePing(ctx context.Context, p *Ping) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	key := trackKey(p.DispatchID)
	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(p.RecordedAt.UnixMilli()), Member: raw})
	pipe.ZRemRangeByRank(ctx, key, 0, -maxCachedPings-1)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Get().Warn("ping cache write failed",
			zap.String("dispatch_id", string(p.DispatchID)), zap.Error(err))
	}
}

// Latest returns the max-timestamp ping for a dispatch, preferring the
// Redis sorted set and falling back to Postgres.
func (s *PgStore) Latest(ctx context.Context, dispatchID types.ID) (*Ping, error) {
	if s.redis != nil {
		members, err := s.redis.ZRevRange(ctx, trackKey(dispatchID), 0, 0).Result()
		if err == nil && len(members) == 1 {
			var p Ping
			if json.Unmarshal([]byte(members[0]), &p) == nil {
				return &p, nil
			}
		}
	}

	row := s.db.QueryRow(ctx, `
        SELECT id, dispatch_id, courier_id, lat, lng, heading_deg, speed_kmh, accuracy_m, recorded_at
        FROM tracking_pings
        WHERE dispatch_id = $1
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1`, string(dispatchID),
	)
	var p Ping
	err := row.Scan(&p.ID, &p.DispatchID, &p.CourierID, &p.Position.Lat, &p.Position.Lng,
		&p.HeadingDeg, &p.SpeedKmh, &p.AccuracyM, &p.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoLocation
	}
	if err != nil {
		return nil, fmt.Errorf("latest ping: %w", err)
	}
	return &p, nil
}

// History returns pings for a dispatch ordered by timestamp, oldest
// first, for replaying a delivery route.
func (s *PgStore) History(ctx context.Context, dispatchID types.ID, limit int) ([]*Ping, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, dispatch_id, courier_id, lat, lng, heading_deg, speed_kmh, accuracy_m, recorded_at
        FROM tracking_pings
        WHERE dispatch_id = $1
        ORDER BY recorded_at, id
        LIMIT $2`, string(dispatchID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ping history: %w", err)
	}
	defer rows.Close()

	var out []*Ping
	for rows.Next() {
		var p Ping
		if err := rows.Scan(&p.ID, &p.DispatchID, &p.CourierID, &p.Position.Lat, &p.Position.Lng,
			&p.HeadingDeg, &p.SpeedKmh, &p.AccuracyM, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
