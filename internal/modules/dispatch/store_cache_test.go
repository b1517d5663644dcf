package dispatch

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

func newCacheStore(t *testing.T) (*PgStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &PgStore{cache: client}, mr
}

func cachedDispatch() *Dispatch {
	return &Dispatch{
		ID:                    types.NewID(),
		OrderID:               "order-1",
		Pickup:                types.Point{Lat: -1.2833, Lng: 36.8167},
		Delivery:              types.Point{Lat: -1.3000, Lng: 36.8200},
		DistanceKm:            1.9,
		Fee:                   types.Money{Amount: 20700, Currency: "KES"},
		Status:                StatusAssigned,
		StatusVersion:         1,
		EstimatedDeliveryTime: time.Now().Add(30 * time.Minute),
		CreatedAt:             time.Now(),
	}
}

func TestCacheServesFilledRecord(t *testing.T) {
	s, _ := newCacheStore(t)
	d := cachedDispatch()
	s.fillCache(context.Background(), d)

	got, err := s.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, StatusAssigned, got.Status)
	assert.Equal(t, d.Fee, got.Fee)
}

func TestCacheEntriesExpire(t *testing.T) {
	s, mr := newCacheStore(t)
	d := cachedDispatch()
	s.fillCache(context.Background(), d)

	ttl := mr.TTL(cacheKey(d.ID))
	require.Greater(t, ttl, time.Duration(0), "cached dispatch must carry a TTL")
	assert.LessOrEqual(t, ttl, cacheTTL)
}

func TestInvalidateRemovesCachedRecord(t *testing.T) {
	s, mr := newCacheStore(t)
	d := cachedDispatch()
	s.fillCache(context.Background(), d)
	require.True(t, mr.Exists(cacheKey(d.ID)))

	s.invalidate(context.Background(), d.ID)
	assert.False(t, mr.Exists(cacheKey(d.ID)), "stale record must not outlive a status write")
}
