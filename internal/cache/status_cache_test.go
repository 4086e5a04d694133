package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pockett/agreementflow/internal/models"
)

func newTestCache(t *testing.T) (*RedisStatusCache, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redislib.NewClient(&redislib.Options{Addr: s.Addr()})
	return NewRedisStatusCache(client, 5*time.Minute), s
}

func TestStatusCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	signedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	status := &models.StatusResponse{
		Exists:     true,
		Status:     models.StateSigned,
		IsSigned:   true,
		SignedAt:   &signedAt,
		SignedPath: "agreements/signed/loan_loan-1_1_signed.pdf",
	}

	require.NoError(t, c.Set(ctx, "loan-1", status))

	got, err := c.Get(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, status, got)
}

func TestStatusCacheMiss(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Get(context.Background(), "loan-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestStatusCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, "loan-1", &models.StatusResponse{Exists: true, Status: models.StateUnsigned}))
	require.NoError(t, c.Invalidate(ctx, "loan-1"))

	_, err := c.Get(ctx, "loan-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Invalidating an absent key is fine.
	require.NoError(t, c.Invalidate(ctx, "loan-1"))
}

func TestStatusCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, s := newTestCache(t)

	require.NoError(t, c.Set(ctx, "loan-1", &models.StatusResponse{Exists: true, Status: models.StateUnsigned}))
	s.FastForward(6 * time.Minute)

	_, err := c.Get(ctx, "loan-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNoopStatusCache(t *testing.T) {
	ctx := context.Background()
	c := NoopStatusCache{}

	require.NoError(t, c.Set(ctx, "loan-1", &models.StatusResponse{Exists: true}))
	_, err := c.Get(ctx, "loan-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	require.NoError(t, c.Invalidate(ctx, "loan-1"))
}
