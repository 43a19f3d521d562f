// Package redisstore provides a Redis-backed implementation of the state
// store driver. Redis is the recommended backend for multi-instance
// deployments: SET NX with a TTL gives the atomic set-if-absent the probe
// lock needs, and key expiry is handled server-side.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mnemohq/mnemo/pkg/statestore"
)

// Config holds configuration for the Redis state store.
type Config struct {
	// Addr is the redis host:port.
	Addr string

	// Password is optional.
	Password string

	// DB selects the redis logical database.
	DB int

	// DialTimeout bounds connection establishment. Defaults to 1s.
	DialTimeout time.Duration
}

// Driver implements statestore.Driver over a redis client.
type Driver struct {
	client *redis.Client
}

// NewDriver creates a Redis-backed state store and verifies connectivity.
func NewDriver(ctx context.Context, cfg Config) (*Driver, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}

	return &Driver{client: client}, nil
}

// NewDriverWithClient wraps an existing redis client. Used in tests and when
// the caller shares one client across subsystems.
func NewDriverWithClient(client *redis.Client) *Driver {
	return &Driver{client: client}
}

func (d *Driver) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := d.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, statestore.UnavailableError{Op: "get", Err: err}
	}

	return val, true, nil
}

func (d *Driver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := d.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return statestore.UnavailableError{Op: "set", Err: err}
	}

	return nil
}

func (d *Driver) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}

	ok, err := d.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, statestore.UnavailableError{Op: "setnx", Err: err}
	}

	return ok, nil
}

func (d *Driver) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := d.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, statestore.UnavailableError{Op: "incr", Err: err}
	}

	// A fresh counter gets the window TTL; existing counters keep theirs so
	// the rolling window anchors at the first failure.
	if n == 1 && ttl > 0 {
		if err := d.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, statestore.UnavailableError{Op: "expire", Err: err}
		}
	}

	return n, nil
}

func (d *Driver) Delete(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return statestore.UnavailableError{Op: "del", Err: err}
	}

	return nil
}

// Close closes the underlying redis client.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ statestore.Driver = (*Driver)(nil)
