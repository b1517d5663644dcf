package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sokoni/internal/types"
)

func redisStore(t *testing.T) *PgStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &PgStore{redis: client}
}

func cached(t *testing.T, s *PgStore, dispatchID types.ID, id int64, at time.Time, lat float64) {
	t.Helper()
	s.cachePing(context.Background(), &Ping{
		ID:         id,
		DispatchID: dispatchID,
		CourierID:  "courier-1",
		Position:   types.Point{Lat: lat, Lng: 36.82},
		RecordedAt: at,
	})
}

// TestRedisLatestByScore exercises the hot read path: the sorted set
// must serve the max-timestamp ping regardless of insert order.
func TestRedisLatestByScore(t *testing.T) {
	s := redisStore(t)
	id := types.ID("dispatch-1")
	now := time.Now().Truncate(time.Millisecond)

	cached(t, s, id, 1, now, -1.2833)
	cached(t, s, id, 2, now.Add(2*time.Minute), -1.2900)
	cached(t, s, id, 3, now.Add(time.Minute), -1.2866) // out of order

	got, err := s.Latest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, -1.2900, got.Position.Lat)
	assert.Equal(t, int64(2), got.ID)
}

func TestRedisCacheIsTrimmed(t *testing.T) {
	s := redisStore(t)
	id := types.ID("dispatch-1")
	base := time.Now().Truncate(time.Millisecond)

	for i := 0; i < maxCachedPings+25; i++ {
		cached(t, s, id, int64(i), base.Add(time.Duration(i)*time.Second), -1.28)
	}

	n, err := s.redis.ZCard(context.Background(), trackKey(id)).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(maxCachedPings))

	// the freshest ping survives trimming
	got, err := s.Latest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(maxCachedPings+24), got.ID)
}

func TestRedisKeysArePerDispatch(t *testing.T) {
	s := redisStore(t)
	now := time.Now().Truncate(time.Millisecond)

	cached(t, s, "dispatch-1", 1, now, -1.28)
	cached(t, s, "dispatch-2", 2, now.Add(time.Hour), -1.30)

	got, err := s.Latest(context.Background(), "dispatch-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
}
