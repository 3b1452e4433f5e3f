package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the client carrying the scan queue. Pushed scans sit on a
// list until the worker pops them.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// QueueDepth returns the number of pushed scans waiting on the list at key.
func (r *Redis) QueueDepth(ctx context.Context, key string) (int64, error) {
	if r == nil || r.Client == nil {
		return 0, errors.New("redis not configured")
	}
	n, err := r.Client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth %s: %w", key, err)
	}
	return n, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
