package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock traffic is many tiny SETNX/DEL round trips, so timeouts stay
// short and the pool small. A slow lock acquire is worse than a failed
// one: the caller just tells the patient to retry.
const (
	dialTimeout  = 3 * time.Second
	opTimeout    = 2 * time.Second
	poolSize     = 10
	minIdleConns = 2
)

// NewRedisClient dials the Redis instance backing the per-slot booking
// locks and verifies connectivity before returning.
func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		DialTimeout:  dialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
