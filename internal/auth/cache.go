package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zapflow/zapflow/internal/rbac"
)

const (
	identityKeyPrefix = "zapflow:identity:"
	// fenceTTL outlives any in-flight load by a wide margin.
	fenceTTL = 24 * time.Hour
)

// IdentityCache stores recently resolved users keyed by id. Writes are
// fenced: Invalidate advances a per-user generation and Set only lands when
// the generation the caller read before loading is still current, so a load
// that raced a revocation cannot put the old record back.
type IdentityCache interface {
	Get(ctx context.Context, userID int64) (*User, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, user *User, generation int64) error
	Invalidate(ctx context.Context, userID int64) error
}

// RedisIdentityCache keeps identities in Redis as JSON with a TTL. Password
// hashes are never written.
type RedisIdentityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdentityCache instantiates the cache. A non-positive ttl disables writes.
func NewRedisIdentityCache(client *redis.Client, ttl time.Duration) *RedisIdentityCache {
	return &RedisIdentityCache{client: client, ttl: ttl}
}

type cachedIdentity struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         rbac.Role `json:"role"`
	TenantID     *int64    `json:"tenant_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	TokenVersion int64     `json:"token_version"`
}

func identityKey(userID int64) string {
	return identityKeyPrefix + strconv.FormatInt(userID, 10)
}

func fenceKey(userID int64) string {
	return identityKey(userID) + ":gen"
}

// KEYS[1] entry, KEYS[2] fence; ARGV[1] generation, ARGV[2] payload, ARGV[3] ttl ms.
var fencedSet = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Get returns the cached user or ErrCacheMiss.
func (c *RedisIdentityCache) Get(ctx context.Context, userID int64) (*User, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheMiss
	}
	raw, err := c.client.Get(ctx, identityKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("auth: cache get: %w", err)
	}
	var entry cachedIdentity
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Unreadable entries count as misses and get overwritten.
		return nil, ErrCacheMiss
	}
	return &User{
		ID:           entry.ID,
		Email:        entry.Email,
		Name:         entry.Name,
		Role:         entry.Role,
		TenantID:     entry.TenantID,
		IsActive:     entry.IsActive,
		TokenVersion: entry.TokenVersion,
	}, nil
}

// Generation returns the write fence for userID; 0 when never invalidated.
func (c *RedisIdentityCache) Generation(ctx context.Context, userID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	gen, err := c.client.Get(ctx, fenceKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("auth: cache generation: %w", err)
	}
	return gen, nil
}

// Set stores user when generation is still the current fence. A stale write
// is dropped silently.
func (c *RedisIdentityCache) Set(ctx context.Context, user *User, generation int64) error {
	if c == nil || c.client == nil || user == nil || c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(cachedIdentity{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		TenantID:     user.TenantID,
		IsActive:     user.IsActive,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return fmt.Errorf("auth: cache encode: %w", err)
	}
	keys := []string{identityKey(user.ID), fenceKey(user.ID)}
	if err := fencedSet.Run(ctx, c.client, keys, generation, raw, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("auth: cache set: %w", err)
	}
	return nil
}

// Invalidate advances the fence and drops the cached entry for userID.
func (c *RedisIdentityCache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, fenceKey(userID))
		pipe.Expire(ctx, fenceKey(userID), fenceTTL)
		pipe.Del(ctx, identityKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("auth: cache invalidate: %w", err)
	}
	return nil
}

var _ IdentityCache = (*RedisIdentityCache)(nil)
