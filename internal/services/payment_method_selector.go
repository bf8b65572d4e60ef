package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hanko-field/cartclone/internal/platform/i18n"
	"github.com/hanko-field/cartclone/internal/platform/lock"
)

const (
	defaultFreeShippingCarrier = "freeshipping"
	defaultFreePaymentCode     = "Simple free"

	paymentLoggerEventShippingUnreadable = "cart_clone.payment_shipping_unreadable"
	paymentLoggerEventTitleUnavailable   = "cart_clone.payment_title_unavailable"
)

// PaymentMethodSelectorDeps wires the payment method selector.
type PaymentMethodSelectorDeps struct {
	Catalog             PaymentMethodCatalog
	Shipping            ShippingInfoReader
	Resolver            CartResolver
	Mutator             CartMutator
	Guard               CheckoutGuard
	Locker              lock.Locker
	FreeShippingCarrier string
	FreePaymentCode     string
	Logger              func(ctx context.Context, event string, fields map[string]any)
}

// PaymentMethodSelector copies the payment method chosen on a source cart when
// the destination cart still offers it.
type PaymentMethodSelector struct {
	catalog     PaymentMethodCatalog
	shipping    ShippingInfoReader
	resolver    CartResolver
	mutator     CartMutator
	guard       CheckoutGuard
	locker      lock.Locker
	freeCarrier string
	freePayment string
	logger      func(context.Context, string, map[string]any)
}

// NewPaymentMethodSelector validates deps and constructs a PaymentMethodSelector.
func NewPaymentMethodSelector(deps PaymentMethodSelectorDeps) (*PaymentMethodSelector, error) {
	if deps.Catalog == nil || deps.Shipping == nil {
		return nil, errors.New("payment method selector: catalog and shipping reader are required")
	}
	if deps.Resolver == nil || deps.Mutator == nil || deps.Guard == nil || deps.Locker == nil {
		return nil, errors.New("payment method selector: resolver, mutator, guard and locker are required")
	}
	freeCarrier := strings.TrimSpace(deps.FreeShippingCarrier)
	if freeCarrier == "" {
		freeCarrier = defaultFreeShippingCarrier
	}
	freePayment := strings.TrimSpace(deps.FreePaymentCode)
	if freePayment == "" {
		freePayment = defaultFreePaymentCode
	}
	return &PaymentMethodSelector{
		catalog:     deps.Catalog,
		shipping:    deps.Shipping,
		resolver:    deps.Resolver,
		mutator:     deps.Mutator,
		guard:       deps.Guard,
		locker:      deps.Locker,
		freeCarrier: freeCarrier,
		freePayment: freePayment,
		logger:      loggerOrNoop(deps.Logger),
	}, nil
}

// AvailableMethods lists the payment methods cart may use. A zero total with the
// free shipping carrier selected restricts the list to the free payment method
// when it is offered. Negative totals offer nothing.
func (s *PaymentMethodSelector) AvailableMethods(ctx context.Context, cart Cart) ([]PaymentMethodOption, error) {
	methods, err := s.catalog.AvailablePaymentMethods(ctx, cart)
	if err != nil {
		return nil, err
	}

	selected, err := s.shipping.SelectedShipping(ctx, cart)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger(ctx, paymentLoggerEventShippingUnreadable, map[string]any{
			"cartId": cart.MaskedID,
			"error":  err.Error(),
		})
		selected = SelectedShipping{}
	}

	total := selected.BaseAmount.IntPart()
	available := make([]PaymentMethodOption, 0, len(methods))
	for _, method := range methods {
		if total == 0 && selected.CarrierCode == s.freeCarrier && method.Code == s.freePayment {
			return []PaymentMethodOption{method}, nil
		}
		if total >= 0 {
			available = append(available, method)
		}
	}
	return available, nil
}

// Selected returns the payment method stored on source. Title lookups that fail
// leave the title empty.
func (s *PaymentMethodSelector) Selected(ctx context.Context, source Cart) (PaymentSelection, bool) {
	if source.Payment == nil {
		return PaymentSelection{}, false
	}
	code := strings.TrimSpace(source.Payment.Method)
	title, err := s.catalog.PaymentMethodTitle(ctx, source, code)
	if err != nil {
		s.logger(ctx, paymentLoggerEventTitleUnavailable, map[string]any{
			"cartId": source.MaskedID,
			"code":   code,
			"error":  err.Error(),
		})
		title = ""
	}
	return PaymentSelection{
		Code:                code,
		Title:               title,
		PurchaseOrderNumber: source.Payment.PurchaseOrderNumber,
	}, true
}

// Transfer sets the source payment method on the destination cart. It fails with
// an input error when the destination offers no methods or does not offer the
// source method.
func (s *PaymentMethodSelector) Transfer(ctx context.Context, req CloneRequest, source Cart) error {
	return withTargetCart(ctx, s.locker, s.resolver, req, func(ctx context.Context, target Cart) error {
		available, err := s.AvailableMethods(ctx, target)
		if err != nil {
			return err
		}
		if len(available) == 0 {
			return inputError(req.Caller.Locale, i18n.MsgPaymentCodeMissing)
		}

		selected, ok := s.Selected(ctx, source)
		if !ok || selected.Code == "" {
			return nil
		}
		if !containsPaymentMethod(available, selected.Code) {
			return inputError(req.Caller.Locale, i18n.MsgPaymentCodeNotCloned)
		}

		if err := s.guard.CheckCheckoutAllowed(ctx, target); err != nil {
			return err
		}
		return s.mutator.SetPaymentMethod(ctx, target, PaymentMethodDirective{
			Code:                selected.Code,
			Title:               selected.Title,
			PurchaseOrderNumber: selected.PurchaseOrderNumber,
		})
	})
}

func containsPaymentMethod(methods []PaymentMethodOption, code string) bool {
	for _, method := range methods {
		if method.Code == code {
			return true
		}
	}
	return false
}
