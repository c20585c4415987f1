package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL constants
const (
	TTLUnread  = 30 * time.Second // unread counters change on every message
	TTLProfile = 5 * time.Minute
	TTLDefault = 5 * time.Minute
)

// Key prefixes
const (
	PrefixUnread  = "unread:"
	PrefixProfile = "profile:"
)

// ErrUnavailable is returned by reads when no redis client is configured
var ErrUnavailable = errors.New("redis not available")

// Service redis-backed cache
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// unread counters, keyed by receiver and optional sender ("" = all senders)
	GetUnread(ctx context.Context, receiverID, senderID string) (int64, error)
	SetUnread(ctx context.Context, receiverID, senderID string, count int64) error
	InvalidateUnread(ctx context.Context, receiverID string) error

	// profiles
	GetProfile(ctx context.Context, userID string, dest interface{}) error
	SetProfile(ctx context.Context, userID string, data interface{}) error
	InvalidateProfile(ctx context.Context, userID string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a cache service. A nil client yields a no-op cache:
// reads miss with ErrUnavailable, writes are ignored.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return ErrUnavailable
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrUnavailable
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

// ========================================
// unread counters
// ========================================

// UnreadKey builds the counter key. An empty sender means "all senders".
func UnreadKey(receiverID, senderID string) string {
	if senderID == "" {
		return PrefixUnread + receiverID + ":all"
	}
	return PrefixUnread + receiverID + ":" + senderID
}

func (c *redisCache) GetUnread(ctx context.Context, receiverID, senderID string) (int64, error) {
	if c.client == nil {
		return 0, ErrUnavailable
	}
	raw, err := c.client.Get(ctx, UnreadKey(receiverID, senderID)).Result()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (c *redisCache) SetUnread(ctx context.Context, receiverID, senderID string, count int64) error {
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, UnreadKey(receiverID, senderID), count, TTLUnread).Err()
}

func (c *redisCache) InvalidateUnread(ctx context.Context, receiverID string) error {
	if c.client == nil {
		return nil
	}
	return c.deleteByPattern(ctx, PrefixUnread+receiverID+":*")
}

// ========================================
// profiles
// ========================================

func (c *redisCache) profileKey(userID string) string {
	return PrefixProfile + userID
}

func (c *redisCache) GetProfile(ctx context.Context, userID string, dest interface{}) error {
	return c.Get(ctx, c.profileKey(userID), dest)
}

func (c *redisCache) SetProfile(ctx context.Context, userID string, data interface{}) error {
	return c.Set(ctx, c.profileKey(userID), data, TTLProfile)
}

func (c *redisCache) InvalidateProfile(ctx context.Context, userID string) error {
	return c.Delete(ctx, c.profileKey(userID))
}

func (c *redisCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}
