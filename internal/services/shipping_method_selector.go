package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/hanko-field/cartclone/internal/domain"
	"github.com/hanko-field/cartclone/internal/platform/lock"
)

const shippingLoggerEventRateUnmatched = "cart_clone.shipping_rate_unmatched"

// ShippingMethodSelectorDeps wires the shipping method selector.
type ShippingMethodSelectorDeps struct {
	Addresses  *AddressTransfer
	Calculator ShippingRateCalculator
	Converter  RateConverter
	Resolver   CartResolver
	Mutator    CartMutator
	Guard      CheckoutGuard
	Locker     lock.Locker
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// ShippingMethodSelector derives the carrier/method pair chosen on a source cart.
type ShippingMethodSelector struct {
	addresses  *AddressTransfer
	calculator ShippingRateCalculator
	converter  RateConverter
	resolver   CartResolver
	mutator    CartMutator
	guard      CheckoutGuard
	locker     lock.Locker
	logger     func(context.Context, string, map[string]any)
}

// NewShippingMethodSelector validates deps and constructs a ShippingMethodSelector.
func NewShippingMethodSelector(deps ShippingMethodSelectorDeps) (*ShippingMethodSelector, error) {
	if deps.Addresses == nil {
		return nil, errors.New("shipping method selector: address transfer is required")
	}
	if deps.Calculator == nil || deps.Converter == nil {
		return nil, errors.New("shipping method selector: rate calculator and converter are required")
	}
	if deps.Resolver == nil || deps.Mutator == nil || deps.Guard == nil || deps.Locker == nil {
		return nil, errors.New("shipping method selector: resolver, mutator, guard and locker are required")
	}
	return &ShippingMethodSelector{
		addresses:  deps.Addresses,
		calculator: deps.Calculator,
		converter:  deps.Converter,
		resolver:   deps.Resolver,
		mutator:    deps.Mutator,
		guard:      deps.Guard,
		locker:     deps.Locker,
		logger:     loggerOrNoop(deps.Logger),
	}, nil
}

// Build returns the shipping method directives for source. Only the first valid
// shipping address is considered. An empty result means nothing is copied.
func (s *ShippingMethodSelector) Build(ctx context.Context, source Cart) ([]ShippingMethodDirective, error) {
	records := s.addresses.ValidShippingAddresses(source)
	if len(records) == 0 {
		return nil, nil
	}
	address := records[0].Address

	selected := strings.TrimSpace(address.ShippingMethod)
	if selected == "" {
		return nil, nil
	}

	rates, err := s.calculator.ShippingRates(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}

	rate, ok := matchRate(rates, selected)
	if !ok {
		s.logger(ctx, shippingLoggerEventRateUnmatched, map[string]any{
			"cartId":         source.MaskedID,
			"shippingMethod": selected,
			"rateCount":      len(rates),
		})
		return nil, nil
	}

	carrierCode, methodCode := splitShippingMethod(selected)
	currency := source.Currency
	quote := s.converter.ConvertRate(rate, currency)

	return []ShippingMethodDirective{{
		CarrierCode:  carrierCode,
		MethodCode:   methodCode,
		CarrierTitle: quote.CarrierTitle,
		MethodTitle:  quote.MethodTitle,
		Amount:       domain.NewMoney(address.ShippingAmount, currency),
		PriceExclTax: domain.NewMoney(quote.PriceExclTax, currency),
		PriceInclTax: domain.NewMoney(quote.PriceInclTax, currency),
	}}, nil
}

// Apply writes directives onto the destination cart. An empty slice is a no-op.
func (s *ShippingMethodSelector) Apply(ctx context.Context, req CloneRequest, directives []ShippingMethodDirective) error {
	return withTargetCart(ctx, s.locker, s.resolver, req, func(ctx context.Context, target Cart) error {
		if len(directives) == 0 {
			return nil
		}
		if err := s.guard.CheckCheckoutAllowed(ctx, target); err != nil {
			return err
		}
		return s.mutator.SetShippingMethods(ctx, req.Caller, target, directives)
	})
}

func matchRate(rates []ShippingRate, code string) (ShippingRate, bool) {
	for _, rate := range rates {
		if rate.Code == code {
			return rate, true
		}
	}
	return ShippingRate{}, false
}

// splitShippingMethod splits "carrier_method" on the first underscore.
func splitShippingMethod(value string) (string, string) {
	carrier, method, _ := strings.Cut(value, "_")
	return carrier, method
}
