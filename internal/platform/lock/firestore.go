package lock

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/hanko-field/cartclone/internal/platform/firestore"
)

type leaseDocument struct {
	Token     string    `firestore:"token"`
	Key       string    `firestore:"key"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// FirestoreLocker stores leases as documents written inside transactions.
type FirestoreLocker struct {
	provider   *pfirestore.Provider
	collection string
	ttl        time.Duration
	wait       time.Duration
	now        func() time.Time
}

var _ Locker = (*FirestoreLocker)(nil)

// NewFirestoreLocker constructs a lease locker backed by the given collection.
func NewFirestoreLocker(provider *pfirestore.Provider, collection string, ttl, wait time.Duration) (*FirestoreLocker, error) {
	if provider == nil {
		return nil, errors.New("lock: firestore provider is required")
	}
	if collection == "" {
		return nil, errors.New("lock: collection is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock: ttl must be positive")
	}
	return &FirestoreLocker{
		provider:   provider,
		collection: collection,
		ttl:        ttl,
		wait:       wait,
		now:        time.Now,
	}, nil
}

// Acquire creates or takes over an expired lease document for key.
func (l *FirestoreLocker) Acquire(ctx context.Context, key string) (Release, error) {
	key, err := normaliseKey(key)
	if err != nil {
		return nil, err
	}
	client, err := l.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	ref := client.Collection(l.collection).Doc(key)
	token := ulid.Make().String()

	err = poll(ctx, l.wait, func(ctx context.Context) (bool, error) {
		acquired := false
		err := l.provider.RunTransaction(ctx, "locks.acquire", func(ctx context.Context, tx *firestore.Transaction) error {
			now := l.now().UTC()
			snap, err := tx.Get(ref)
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if err == nil {
				var lease leaseDocument
				if err := snap.DataTo(&lease); err != nil {
					return err
				}
				if now.Before(lease.ExpiresAt) {
					return nil
				}
			}
			acquired = true
			return tx.Set(ref, leaseDocument{Token: token, Key: key, ExpiresAt: now.Add(l.ttl)})
		}, pfirestore.WithTxAttempts(1))
		if err != nil {
			var repoErr *pfirestore.Error
			if errors.As(err, &repoErr) && repoErr.IsConflict() {
				// Another instance raced us for the same lease.
				return false, nil
			}
			return false, err
		}
		return acquired, nil
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		err := l.provider.RunTransaction(ctx, "locks.release", func(ctx context.Context, tx *firestore.Transaction) error {
			snap, err := tx.Get(ref)
			if status.Code(err) == codes.NotFound {
				return ErrNotHeld
			}
			if err != nil {
				return err
			}
			var lease leaseDocument
			if err := snap.DataTo(&lease); err != nil {
				return err
			}
			if lease.Token != token {
				return ErrNotHeld
			}
			return tx.Delete(ref)
		})
		if errors.Is(err, ErrNotHeld) {
			// RunTransaction classifies body errors; callers match the sentinel.
			return ErrNotHeld
		}
		return err
	}, nil
}
