package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/hanko-field/cartclone/internal/repositories"
)

// PaymentCatalog lists the payment methods configured for the cart's store.
type PaymentCatalog struct {
	repo    repositories.PaymentMethodRepository
	storeID string
}

var _ PaymentMethodCatalog = (*PaymentCatalog)(nil)

// NewPaymentCatalog constructs a PaymentCatalog. storeID is used for carts that carry none.
func NewPaymentCatalog(repo repositories.PaymentMethodRepository, storeID string) (*PaymentCatalog, error) {
	if repo == nil {
		return nil, errors.New("payment catalog: repository is required")
	}
	return &PaymentCatalog{repo: repo, storeID: strings.TrimSpace(storeID)}, nil
}

// AvailablePaymentMethods returns active methods accepting the cart currency, by sort order.
func (c *PaymentCatalog) AvailablePaymentMethods(ctx context.Context, cart Cart) ([]PaymentMethodOption, error) {
	configs, err := c.repo.ListActive(ctx, c.store(cart))
	if err != nil {
		return nil, translateRepoError(err)
	}
	sort.SliceStable(configs, func(i, j int) bool { return configs[i].SortOrder < configs[j].SortOrder })

	methods := make([]PaymentMethodOption, 0, len(configs))
	for _, config := range configs {
		if !config.Active || !acceptsCurrency(config.Currencies, cart.Currency) {
			continue
		}
		methods = append(methods, PaymentMethodOption{Code: config.Code, Title: config.Title})
	}
	return methods, nil
}

// PaymentMethodTitle returns the configured title of code.
func (c *PaymentCatalog) PaymentMethodTitle(ctx context.Context, cart Cart, code string) (string, error) {
	config, err := c.repo.FindByCode(ctx, c.store(cart), strings.TrimSpace(code))
	if err != nil {
		return "", translateRepoError(err)
	}
	return config.Title, nil
}

func (c *PaymentCatalog) store(cart Cart) string {
	if store := strings.TrimSpace(cart.StoreID); store != "" {
		return store
	}
	return c.storeID
}

func acceptsCurrency(currencies []string, currency string) bool {
	if len(currencies) == 0 {
		return true
	}
	for _, candidate := range currencies {
		if strings.EqualFold(strings.TrimSpace(candidate), currency) {
			return true
		}
	}
	return false
}

// CartShippingInfo reads the shipping method selected on a cart's first shipping address.
type CartShippingInfo struct{}

var _ ShippingInfoReader = CartShippingInfo{}

// SelectedShipping returns ErrNoShippingMethod when the cart has no selected method.
func (CartShippingInfo) SelectedShipping(_ context.Context, cart Cart) (SelectedShipping, error) {
	address, ok := cart.ShippingAddress()
	if !ok || strings.TrimSpace(address.ShippingMethod) == "" {
		return SelectedShipping{}, ErrNoShippingMethod
	}
	carrier, method := splitShippingMethod(strings.TrimSpace(address.ShippingMethod))
	return SelectedShipping{
		CarrierCode: carrier,
		MethodCode:  method,
		BaseAmount:  address.ShippingAmount,
	}, nil
}
