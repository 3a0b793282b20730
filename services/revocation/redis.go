package revocation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
)

const keyPrefix = "masomo:revoked-token:"

type redisStore struct {
	client *redis.Client
}

var _ auth.RevocationStore = (*redisStore)(nil)

// NewRedisClient connects to the configured Redis server and checks that it answers.
func NewRedisClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// NewRedisStore keeps revoked token IDs as expiring Redis keys.
func NewRedisStore(client *redis.Client) auth.RevocationStore {
	return &redisStore{client: client}
}

func (s *redisStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil // already expired
	}
	return errors.Wrap(s.client.Set(ctx, keyPrefix+tokenID, 1, ttl).Err(), "setting revoked token")
}

func (s *redisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return n > 0, nil
}
