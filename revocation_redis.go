package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationList keeps revoked token ids in Redis until the token
// would have expired anyway.
type RedisRevocationList struct {
	redis  redis.UniversalClient
	prefix string
	clock  Clock
}

var _ RevocationList = (*RedisRevocationList)(nil)

func NewRedisRevocationList(client redis.UniversalClient, prefix string) *RedisRevocationList {
	if prefix == "" {
		prefix = "auth:revoked"
	}
	return &RedisRevocationList{
		redis:  client,
		prefix: strings.TrimSuffix(prefix, ":"),
		clock:  time.Now,
	}
}

// WithClock overrides the time source used to compute key TTLs.
func (r *RedisRevocationList) WithClock(clock Clock) *RedisRevocationList {
	r.clock = normalizeClock(clock)
	return r
}

func (r *RedisRevocationList) key(tokenID string) string {
	return r.prefix + ":" + tokenID
}

func (r *RedisRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}

	ttl := until.Sub(r.clock())
	if ttl <= 0 {
		return nil
	}

	if err := r.redis.Set(ctx, r.key(tokenID), until.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}

	return nil
}

func (r *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	n, err := r.redis.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}

	return n > 0, nil
}
