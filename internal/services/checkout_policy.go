package services

import (
	"context"

	"github.com/hanko-field/cartclone/internal/platform/i18n"
)

// CheckoutPolicy decides whether a cart may receive checkout mutations.
type CheckoutPolicy struct {
	allowGuest bool
}

var _ CheckoutGuard = (*CheckoutPolicy)(nil)

// NewCheckoutPolicy constructs a CheckoutPolicy. allowGuest controls whether
// carts without a customer may check out.
func NewCheckoutPolicy(allowGuest bool) *CheckoutPolicy {
	return &CheckoutPolicy{allowGuest: allowGuest}
}

// CheckCheckoutAllowed fails with ErrCheckoutNotAllowed for inactive carts and,
// when guest checkout is disabled, for guest carts.
func (p *CheckoutPolicy) CheckCheckoutAllowed(_ context.Context, cart Cart) error {
	if !cart.IsActive {
		return newMessageError(ErrCheckoutNotAllowed, i18n.Sprintf("", i18n.MsgCartInactive, cart.MaskedID), nil)
	}
	if cart.CustomerID == "" && !p.allowGuest {
		return newMessageError(ErrCheckoutNotAllowed, i18n.Sprintf("", i18n.MsgGuestCheckoutDisabled), nil)
	}
	return nil
}
