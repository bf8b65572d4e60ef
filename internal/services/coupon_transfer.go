package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/hanko-field/cartclone/internal/platform/i18n"
	"github.com/hanko-field/cartclone/internal/platform/lock"
)

const couponLoggerEventSkipped = "cart_clone.coupon_skipped"

var emptyCartMessage = regexp.MustCompile(`The "\d+" Cart doesn't contain products`)

// CouponTransferDeps wires the coupon transfer.
type CouponTransferDeps struct {
	Coupons  CouponManager
	Resolver CartResolver
	Locker   lock.Locker
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// CouponTransfer re-applies the coupon of a source cart to a destination cart.
type CouponTransfer struct {
	coupons  CouponManager
	resolver CartResolver
	locker   lock.Locker
	logger   func(context.Context, string, map[string]any)
}

// NewCouponTransfer validates deps and constructs a CouponTransfer.
func NewCouponTransfer(deps CouponTransferDeps) (*CouponTransfer, error) {
	if deps.Coupons == nil || deps.Resolver == nil || deps.Locker == nil {
		return nil, errors.New("coupon transfer: coupon manager, resolver and locker are required")
	}
	return &CouponTransfer{
		coupons:  deps.Coupons,
		resolver: deps.Resolver,
		locker:   deps.Locker,
		logger:   loggerOrNoop(deps.Logger),
	}, nil
}

// AppliedCode returns the coupon applied to source, or "" when there is none.
func (t *CouponTransfer) AppliedCode(ctx context.Context, source Cart) (string, error) {
	code, err := t.coupons.AppliedCoupon(ctx, source.ID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}

// Transfer applies code to the destination cart unless it already carries a
// coupon, which makes repeated transfers a no-op.
func (t *CouponTransfer) Transfer(ctx context.Context, req CloneRequest, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	return withTargetCart(ctx, t.locker, t.resolver, req, func(ctx context.Context, target Cart) error {
		existing, err := t.coupons.AppliedCoupon(ctx, target.ID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(existing) != "" {
			t.logger(ctx, couponLoggerEventSkipped, map[string]any{
				"cartId":   target.MaskedID,
				"existing": existing,
				"code":     code,
			})
			return nil
		}
		if err := t.coupons.ApplyCoupon(ctx, target.ID, code); err != nil {
			return translateCouponError(req.Caller.Locale, err)
		}
		return nil
	})
}

func translateCouponError(locale string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrCartHasNoProducts) || emptyCartMessage.MatchString(err.Error()) {
		return newMessageError(ErrCloneNotFound, i18n.Sprintf(locale, i18n.MsgCartWithoutProducts), nil)
	}
	// Localized errors keep their text but are reported as not found only.
	if message, ok := UserMessage(err); ok {
		return newMessageError(ErrCloneNotFound, message, nil)
	}
	return newMessageError(ErrCloneNotFound, err.Error(), err)
}
