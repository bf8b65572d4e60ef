// Package lock serialises mutations of a single cart across goroutines and instances.
package lock

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrTimeout is returned when the lock could not be obtained within the wait budget.
	ErrTimeout = errors.New("lock: timed out waiting for lock")
	// ErrEmptyKey is returned when no key is supplied.
	ErrEmptyKey = errors.New("lock: key is required")
	// ErrNotHeld is returned when releasing a lease that expired or was taken over.
	ErrNotHeld = errors.New("lock: lease no longer held")
)

// Release frees a previously acquired lock.
type Release func(ctx context.Context) error

// Locker hands out mutually exclusive leases keyed by an arbitrary string.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Do runs fn while holding the lock for key and releases it as soon as fn returns.
func Do[T any](ctx context.Context, locker Locker, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return zero, err
	}
	result, fnErr := fn(ctx)
	// Release with a fresh context so a cancelled request still frees the lease.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if relErr := release(releaseCtx); relErr != nil && fnErr == nil {
		return result, relErr
	}
	return result, fnErr
}

const (
	releaseTimeout  = 2 * time.Second
	minPollInterval = 10 * time.Millisecond
	maxPollInterval = 200 * time.Millisecond
)

func normaliseKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}

// poll retries try with capped exponential backoff until it reports success,
// fails, or the wait budget is spent.
func poll(ctx context.Context, wait time.Duration, try func(ctx context.Context) (bool, error)) error {
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	interval := minPollInterval
	for {
		ok, err := try(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return ErrTimeout
			}
			return err
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-timer.C:
		}
		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}
