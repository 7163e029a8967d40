package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/enrollhub/internal/config"
	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func TestResourceKey(t *testing.T) {
	require.Equal(t, "resource:abc-123", ResourceKey("abc-123"))
}

func TestDisabledCacheIsPermanentMiss(t *testing.T) {
	c, err := NewRedisCache(config.RedisConfig{Enabled: false, TTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.GetResource(ctx, "r1")
	require.ErrorIs(t, err, ErrDisabled)
	require.ErrorIs(t, c.InvalidateResource(ctx, "r1"), ErrDisabled)
	require.ErrorIs(t, c.SetResource(ctx, &model.Resource{ID: "r1"}, 0), ErrDisabled)
	_, err = c.Generation(ctx, "r1")
	require.ErrorIs(t, err, ErrDisabled)
	require.NoError(t, c.Close())
	require.NoError(t, Disabled().Close())
}

func TestNewRedisCacheFailsWithoutServer(t *testing.T) {
	_, err := NewRedisCache(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to connect to Redis")
}

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(client, ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	seats := 40
	want := &model.Resource{ID: "ev1", Kind: model.KindEvent, Title: "Gophercon", TotalSeats: &seats, RegisteredCount: 7}

	_, err := c.GetResource(ctx, "ev1")
	require.ErrorIs(t, err, ErrMiss)

	gen, err := c.Generation(ctx, "ev1")
	require.NoError(t, err)
	require.Zero(t, gen)

	require.NoError(t, c.SetResource(ctx, want, gen))
	got, err := c.GetResource(ctx, "ev1")
	require.NoError(t, err)
	require.Equal(t, want.Title, got.Title)
	require.Equal(t, 7, got.RegisteredCount)
	require.Equal(t, 40, *got.TotalSeats)

	mr.FastForward(time.Minute + time.Second)
	_, err = c.GetResource(ctx, "ev1")
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisCacheInvalidateBumpsGeneration(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetResource(ctx, &model.Resource{ID: "ev1"}, 0))
	require.NoError(t, c.InvalidateResource(ctx, "ev1"))
	require.False(t, mr.Exists(ResourceKey("ev1")))

	gen, err := c.Generation(ctx, "ev1")
	require.NoError(t, err)
	require.EqualValues(t, 1, gen)
}

func TestRedisCacheRejectsFillAfterInvalidation(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "ev1")
	require.NoError(t, err)

	// A writer commits and invalidates while the reader is still loading.
	require.NoError(t, c.InvalidateResource(ctx, "ev1"))

	err = c.SetResource(ctx, &model.Resource{ID: "ev1", RegisteredCount: 0}, gen)
	require.ErrorIs(t, err, ErrStale)
	require.False(t, mr.Exists(ResourceKey("ev1")))

	gen, err = c.Generation(ctx, "ev1")
	require.NoError(t, err)
	require.NoError(t, c.SetResource(ctx, &model.Resource{ID: "ev1", RegisteredCount: 1}, gen))
	got, err := c.GetResource(ctx, "ev1")
	require.NoError(t, err)
	require.Equal(t, 1, got.RegisteredCount)
}

func TestRedisCacheServerErrorsAreWrapped(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, err := c.GetResource(context.Background(), "ev1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMiss)
	require.ErrorContains(t, err, "failed to get resource from Redis")
}
