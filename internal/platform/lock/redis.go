package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "cartclone:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX leases so every API instance shares one lock space.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	token  func() string
}

var _ Locker = (*RedisLocker)(nil)

// RedisOption customises the RedisLocker.
type RedisOption func(*RedisLocker)

// WithRedisPrefix overrides the key namespace.
func WithRedisPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithRedisToken overrides the lease token generator, mainly for tests.
func WithRedisToken(fn func() string) RedisOption {
	return func(l *RedisLocker) {
		if fn != nil {
			l.token = fn
		}
	}
}

// NewRedisLocker builds a RedisLocker. ttl bounds how long a crashed holder can
// block others and wait bounds how long Acquire polls.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration, opts ...RedisOption) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("lock: redis client is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock: ttl must be positive")
	}
	locker := &RedisLocker{
		client: client,
		prefix: defaultRedisPrefix,
		ttl:    ttl,
		wait:   wait,
		token:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(locker)
		}
	}
	return locker, nil
}

// Acquire polls SET NX until the key is free, the wait budget is spent or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	key, err := normaliseKey(key)
	if err != nil {
		return nil, err
	}
	redisKey := l.prefix + key
	token := l.token()

	err = poll(ctx, l.wait, func(ctx context.Context) (bool, error) {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("lock: redis setnx %s: %w", key, err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
		if err != nil {
			return fmt.Errorf("lock: redis release %s: %w", key, err)
		}
		if deleted == 0 {
			return ErrNotHeld
		}
		return nil
	}, nil
}

// Ping checks connectivity for readiness probes.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
