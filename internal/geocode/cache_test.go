package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

type countingGeocoder struct {
	calls   int
	address string
	err     error
}

func (c *countingGeocoder) Reverse(_ context.Context, _, _ float64) (string, error) {
	c.calls++
	return c.address, c.err
}

func TestCachedGeocoderMemoizesHits(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingGeocoder{address: "Tashkent, Uzbekistan"}
	cached := NewCachedGeocoder(inner, client, time.Hour, logging.New("error"))

	for i := 0; i < 3; i++ {
		addr, err := cached.Reverse(context.Background(), 41.31, 69.28)
		require.NoError(t, err)
		assert.Equal(t, "Tashkent, Uzbekistan", addr)
	}
	assert.Equal(t, 1, inner.calls)
	assert.True(t, mr.Exists("geocode:41.31000:69.28000"))
	assert.Equal(t, time.Hour, mr.TTL("geocode:41.31000:69.28000"))
}

func TestCachedGeocoderDoesNotCacheMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingGeocoder{err: ErrNotFound}
	cached := NewCachedGeocoder(inner, client, time.Hour, logging.New("error"))

	for i := 0; i < 2; i++ {
		_, err := cached.Reverse(context.Background(), 1, 2)
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	assert.Equal(t, 2, inner.calls)
	assert.Empty(t, mr.Keys())
}

func TestCachedGeocoderWithoutRedis(t *testing.T) {
	inner := &countingGeocoder{address: "Samarkand"}
	cached := NewCachedGeocoder(inner, nil, 0, nil)

	addr, err := cached.Reverse(context.Background(), 39.65, 66.96)
	require.NoError(t, err)
	assert.Equal(t, "Samarkand", addr)
	assert.Equal(t, 1, inner.calls)
}
