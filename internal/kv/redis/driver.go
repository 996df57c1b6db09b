// Package redis provides a Redis implementation of kv.Store.
//
// Usage:
//
//	store, err := redis.New(ctx, kv.DefaultConfig("localhost:6379"))
//	if err != nil { ... }
//	defer store.Close()
package redis

import (
	"context"
	"errors"
	"time"

	redisgo "github.com/redis/go-redis/v9"
	"github.com/vantor/bucketscope/internal/errs"
	"github.com/vantor/bucketscope/internal/kv"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 256

// Driver is a Redis implementation of kv.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *redisgo.Client
}

// New connects to Redis using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *kv.Config) (*Driver, error) {
	client := redisgo.NewClient(&redisgo.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.OpTimeout,
	})

	d := &Driver{client: client}

	if err := d.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return d, nil
}

// --- kv.Store implementation ---

// Ping verifies the Redis server is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close releases the client's connection pool.
func (d *Driver) Close() error {
	return d.client.Close()
}

// Get returns the value stored under key.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, mapError(err, "get failed")
	}
	return val, nil
}

// Set stores value under key with the given TTL.
func (d *Driver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := d.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return mapError(err, "set failed")
	}
	return nil
}

// SetNX stores value under key only if absent. Redis SETNX with expiry is a
// single atomic command, which is what makes the computation lock sound.
func (d *Driver) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, mapError(err, "setnx failed")
	}
	return ok, nil
}

// Delete removes the given keys and returns how many existed.
func (d *Driver) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := d.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, mapError(err, "del failed")
	}
	return int(n), nil
}

// Expire resets key's TTL. Returns false when the key is absent.
func (d *Driver) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, mapError(err, "expire failed")
	}
	return ok, nil
}

// Keys returns every key starting with prefix, via cursor-based SCAN so the
// server is never blocked the way KEYS would.
func (d *Driver) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := d.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, mapError(err, "scan failed")
	}
	return keys, nil
}

// DeletePrefix removes every key starting with prefix.
func (d *Driver) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := d.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return d.Delete(ctx, keys...)
}

// mapError translates a go-redis error into a *errs.Error.
// It mirrors the mapError pattern used in the objstore minio driver.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redisgo.Nil) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	// Context cancellation / deadline
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	// Anything else — treat as backend unavailability; callers degrade
	// (cache bypass, session not-authenticated) rather than crash.
	return errs.Wrap(errs.ErrKindUnavailable, msg, err)
}
