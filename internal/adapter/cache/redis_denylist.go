package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mentalapp/mentalapp-api/internal/repository"
)

const revokedKeyPrefix = "revoked_jti:"

// RedisRevokedTokenStore implements RevokedTokenStore backed by Redis.
// Entries expire with the access token they shadow, so the denylist never
// grows past the set of live tokens.
type RedisRevokedTokenStore struct {
	client redis.UniversalClient
}

var _ repository.RevokedTokenStore = (*RedisRevokedTokenStore)(nil)

// NewRedisRevokedTokenStore constructs a Redis-backed denylist.
func NewRedisRevokedTokenStore(client redis.UniversalClient) *RedisRevokedTokenStore {
	return &RedisRevokedTokenStore{client: client}
}

// Revoke marks the jti as signed out for the remaining token lifetime.
func (s *RedisRevokedTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("persist revoked jti: %w", err)
	}
	return nil
}

// IsRevoked reports whether the jti has been signed out.
func (s *RedisRevokedTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load revoked jti: %w", err)
	}
	return true, nil
}
