package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	// txTimeout bounds a single transaction including Firestore's own retries.
	txTimeout = 15 * time.Second
)

// TxOption customises a single RunTransaction call.
type TxOption func(*[]firestore.TransactionOption)

// WithTxAttempts overrides how often Firestore retries on contention. Lease
// acquisition uses 1 so a lost race is reported to the caller's poll loop.
func WithTxAttempts(attempts int) TxOption {
	return func(opts *[]firestore.TransactionOption) {
		if attempts > 0 {
			*opts = append(*opts, firestore.MaxAttempts(attempts))
		}
	}
}

// RunTransaction executes fn in a read-write transaction on the shared client.
// Errors are wrapped with op so repositories can classify them.
func (p *Provider) RunTransaction(ctx context.Context, op string, fn func(ctx context.Context, tx *firestore.Transaction) error, opts ...TxOption) error {
	if fn == nil {
		return WrapError(op, errors.New("firestore: transaction function is nil"))
	}
	client, err := p.Client(ctx)
	if err != nil {
		return WrapError(op, err)
	}

	txOpts := []firestore.TransactionOption{firestore.MaxAttempts(defaultTxAttempts)}
	for _, opt := range opts {
		if opt != nil {
			opt(&txOpts)
		}
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > txTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, txTimeout)
		defer cancel()
	}
	return WrapError(op, client.RunTransaction(ctx, fn, txOpts...))
}
