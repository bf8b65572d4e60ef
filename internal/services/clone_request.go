package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hanko-field/cartclone/internal/platform/lock"
)

// CloneRequest is the immutable input handed to every clone stage.
type CloneRequest struct {
	Caller       Caller
	SourceCartID string
	TargetCartID string
}

// cloneState accumulates per-invocation state. It is never shared between clones.
type cloneState struct {
	stage      CloneStage
	dispatcher *ProductTypeDispatcher
	itemErrors []LineItemError
	itemCount  int
}

func newCloneState() *cloneState {
	return &cloneState{stage: CloneStageCreated, dispatcher: NewProductTypeDispatcher()}
}

var errTargetCartRequired = errors.New("cart clone: target cart id is required")

// withTargetCart runs fn against a freshly resolved destination cart while
// holding the per-cart lock. The lock covers exactly one mutating call.
func withTargetCart(ctx context.Context, locker lock.Locker, resolver CartResolver, req CloneRequest, fn func(ctx context.Context, target Cart) error) error {
	key := strings.TrimSpace(req.TargetCartID)
	if key == "" {
		return errTargetCartRequired
	}
	_, err := lock.Do(ctx, locker, cartLockKey(key), func(ctx context.Context) (struct{}, error) {
		target, err := resolver.ResolveCartForCaller(ctx, key, req.Caller)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, fn(ctx, target)
	})
	if errors.Is(err, lock.ErrTimeout) {
		return errors.Join(ErrCloneUnavailable, err)
	}
	return err
}

func cartLockKey(maskedID string) string {
	return "cart:" + maskedID
}
