package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"event-ticketing/internal/config"
)

type Redis struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{Client: client, ttl: ttl}
}

func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func verifyKey(reference string) string {
	return "verify_lock:" + reference
}

// AcquireVerification takes the per-reference lock. False means another
// verification of the same reference holds it.
func (r *Redis) AcquireVerification(ctx context.Context, reference, owner string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, verifyKey(reference), owner, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to lock reference %s: %w", reference, err)
	}
	return ok, nil
}

// ReleaseVerification deletes the lock only if owner still holds it.
func (r *Redis) ReleaseVerification(ctx context.Context, reference, owner string) error {
	key := verifyKey(reference)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
