package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pockett/agreementflow/internal/models"
)

// ErrCacheMiss is returned when no cached status exists for the loan.
var ErrCacheMiss = errors.New("status not cached")

// StatusCache stores computed status responses so repeated polling does not
// hit the tracking backend. Entries are invalidated on every mutation.
type StatusCache interface {
	Get(ctx context.Context, loanID string) (*models.StatusResponse, error)
	Set(ctx context.Context, loanID string, status *models.StatusResponse) error
	Invalidate(ctx context.Context, loanID string) error
}

// RedisStatusCache backs StatusCache with Redis.
type RedisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatusCache(client *redis.Client, ttl time.Duration) *RedisStatusCache {
	return &RedisStatusCache{client: client, ttl: ttl}
}

func statusKey(loanID string) string {
	return "agreement:status:" + loanID
}

func (c *RedisStatusCache) Get(ctx context.Context, loanID string) (*models.StatusResponse, error) {
	data, err := c.client.Get(ctx, statusKey(loanID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached status for loan %s: %w", loanID, err)
	}
	var status models.StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode cached status for loan %s: %w", loanID, err)
	}
	return &status, nil
}

func (c *RedisStatusCache) Set(ctx context.Context, loanID string, status *models.StatusResponse) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode status for loan %s: %w", loanID, err)
	}
	if err := c.client.Set(ctx, statusKey(loanID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache status for loan %s: %w", loanID, err)
	}
	return nil
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, loanID string) error {
	if err := c.client.Del(ctx, statusKey(loanID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached status for loan %s: %w", loanID, err)
	}
	return nil
}

// NoopStatusCache is used when Redis is disabled. Gets always miss.
type NoopStatusCache struct{}

func (NoopStatusCache) Get(ctx context.Context, loanID string) (*models.StatusResponse, error) {
	return nil, ErrCacheMiss
}
func (NoopStatusCache) Set(ctx context.Context, loanID string, status *models.StatusResponse) error {
	return nil
}
func (NoopStatusCache) Invalidate(ctx context.Context, loanID string) error { return nil }
