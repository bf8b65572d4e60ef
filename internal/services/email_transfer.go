package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/hanko-field/cartclone/internal/platform/i18n"
	"github.com/hanko-field/cartclone/internal/platform/lock"
)

// EmailTransferDeps wires the email transfer.
type EmailTransferDeps struct {
	Resolver  CartResolver
	Guard     CheckoutGuard
	Persister CartPersister
	Locker    lock.Locker
}

// EmailTransfer copies the customer email of a source cart onto a guest destination cart.
type EmailTransfer struct {
	resolver  CartResolver
	guard     CheckoutGuard
	persister CartPersister
	locker    lock.Locker
}

// NewEmailTransfer validates deps and constructs an EmailTransfer.
func NewEmailTransfer(deps EmailTransferDeps) (*EmailTransfer, error) {
	if deps.Resolver == nil || deps.Guard == nil || deps.Persister == nil || deps.Locker == nil {
		return nil, errors.New("email transfer: resolver, guard, persister and locker are required")
	}
	return &EmailTransfer{
		resolver:  deps.Resolver,
		guard:     deps.Guard,
		persister: deps.Persister,
		locker:    deps.Locker,
	}, nil
}

// Transfer writes the source email onto the destination cart. Sources without
// an email are a no-op. Only guest callers may carry an email across.
func (t *EmailTransfer) Transfer(ctx context.Context, req CloneRequest, source Cart) error {
	email := strings.TrimSpace(source.CustomerEmail)
	return withTargetCart(ctx, t.locker, t.resolver, req, func(ctx context.Context, target Cart) error {
		if email == "" {
			return nil
		}
		if !validEmail(email) {
			return inputError(req.Caller.Locale, i18n.MsgInvalidEmail)
		}
		if !req.Caller.IsGuest() {
			return inputError(req.Caller.Locale, i18n.MsgLoggedInNotAllowed)
		}
		if err := t.guard.CheckCheckoutAllowed(ctx, target); err != nil {
			return err
		}

		target.CustomerEmail = email
		if err := t.persister.SaveCart(ctx, target); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return newMessageError(ErrClonePersistence, i18n.Sprintf(req.Caller.Locale, i18n.MsgCartNotSaved), err)
		}
		return nil
	})
}

// validEmail accepts a bare addr-spec. Display names and angle brackets are rejected.
func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	return addr.Address == value && strings.Contains(value[strings.LastIndex(value, "@")+1:], ".")
}
