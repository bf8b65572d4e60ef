package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/cartclone/internal/domain"
	"github.com/hanko-field/cartclone/internal/platform/i18n"
	"github.com/hanko-field/cartclone/internal/repositories"
)

// Line item error codes reported by AddLineItems.
const (
	LineItemErrorProductNotFound = "PRODUCT_NOT_FOUND"
	LineItemErrorInvalidQuantity = "INVALID_PARAMETER_VALUE"
	LineItemErrorUndefined       = "UNDEFINED"
)

// CartStoreDeps wires the repository backed cart collaborators.
type CartStoreDeps struct {
	Carts           repositories.CartRepository
	Products        repositories.ProductRepository
	Coupons         repositories.CouponRepository
	StoreID         string
	DefaultCurrency string
	Clock           func() time.Time
	IDGenerator     func() string
	MaskGenerator   func() string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

// CartStore implements the cart collaborators consumed by the clone pipeline
// on top of the cart, product and coupon repositories.
type CartStore struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	coupons  repositories.CouponRepository
	storeID  string
	currency string
	now      func() time.Time
	newID    func() string
	newMask  func() string
	logger   func(context.Context, string, map[string]any)
}

var (
	_ GuestCartFactory = (*CartStore)(nil)
	_ CartResolver     = (*CartStore)(nil)
	_ CartMutator      = (*CartStore)(nil)
	_ LineItemAdder    = (*CartStore)(nil)
	_ CartPersister    = (*CartStore)(nil)
	_ CouponManager    = (*CartStore)(nil)
)

// NewCartStore validates deps and constructs a CartStore.
func NewCartStore(deps CartStoreDeps) (*CartStore, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart store: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart store: product repository is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("cart store: coupon repository is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "JPY"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	maskGen := deps.MaskGenerator
	if maskGen == nil {
		maskGen = func() string { return strings.ToLower(ulid.Make().String()) }
	}

	return &CartStore{
		carts:    deps.Carts,
		products: deps.Products,
		coupons:  deps.Coupons,
		storeID:  strings.TrimSpace(deps.StoreID),
		currency: currency,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		newMask:  maskGen,
		logger:   loggerOrNoop(deps.Logger),
	}, nil
}

// CreateEmptyGuestCart stores an active cart without items or customer and
// returns its masked id.
func (s *CartStore) CreateEmptyGuestCart(ctx context.Context) (string, error) {
	now := s.now()
	cart := domain.Cart{
		ID:         s.newID(),
		MaskedID:   s.newMask(),
		StoreID:    s.storeID,
		Currency:   s.currency,
		IsActive:   true,
		GrandTotal: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	saved, err := s.carts.Insert(ctx, cart)
	if err != nil {
		return "", translateRepoError(err)
	}
	s.logger(ctx, "cart_store.guest_cart_created", map[string]any{"cartId": saved.MaskedID})
	return saved.MaskedID, nil
}

// ResolveCartForCaller loads an active cart visible to caller. Guest carts are
// visible to anyone holding the masked id. Customer carts only to their owner.
func (s *CartStore) ResolveCartForCaller(ctx context.Context, maskedID string, caller Caller) (Cart, error) {
	maskedID = strings.TrimSpace(maskedID)
	if maskedID == "" {
		return Cart{}, inputError(caller.Locale, i18n.MsgCartIDMissing)
	}

	cart, err := s.carts.FindByMaskedID(ctx, maskedID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, notFoundError(caller.Locale, i18n.MsgCartNotFound, maskedID)
		}
		return Cart{}, translateRepoError(err)
	}

	storeID := strings.TrimSpace(caller.StoreID)
	if storeID == "" {
		storeID = s.storeID
	}
	if storeID != "" && cart.StoreID != "" && cart.StoreID != storeID {
		return Cart{}, notFoundError(caller.Locale, i18n.MsgCartNotFound, maskedID)
	}
	if cart.CustomerID != "" && (caller.IsGuest() || cart.CustomerID != caller.UserID) {
		return Cart{}, notFoundError(caller.Locale, i18n.MsgCartNotFound, maskedID)
	}
	if !cart.IsActive {
		return Cart{}, notFoundError(caller.Locale, i18n.MsgCartInactive, maskedID)
	}
	return cart, nil
}

// SetShippingAddresses replaces the shipping addresses of cart.
func (s *CartStore) SetShippingAddresses(ctx context.Context, caller Caller, cart Cart, addresses []ShippingAddressDirective) error {
	if len(addresses) == 0 {
		return nil
	}
	return s.mutate(ctx, cart.ID, func(c *domain.Cart) error {
		c.ShippingAddresses = make([]domain.CartAddress, 0, len(addresses))
		for _, directive := range addresses {
			address := s.cartAddress(directive.Address)
			if !caller.IsGuest() {
				address.CustomerAddressID = directive.CustomerAddressID
			}
			address.CustomerNotes = directive.CustomerNotes
			address.PickupLocationCode = directive.PickupLocationCode
			c.ShippingAddresses = append(c.ShippingAddresses, address)
		}
		return nil
	})
}

// SetBillingAddress stores the billing address of cart. same_as_shipping and
// use_for_shipping also copy it onto the shipping address of physical carts.
func (s *CartStore) SetBillingAddress(ctx context.Context, caller Caller, cart Cart, directive BillingAddressDirective) error {
	return s.mutate(ctx, cart.ID, func(c *domain.Cart) error {
		billing := s.cartAddress(directive.Address)
		if !caller.IsGuest() {
			billing.CustomerAddressID = directive.CustomerAddressID
		}
		// Billing rows store the inverse of same_as_shipping.
		billing.SameAsBilling = !directive.SameAsShipping
		c.BillingAddress = &billing

		if (directive.SameAsShipping || directive.UseForShipping) && !c.IsVirtual {
			shipping := billing
			shipping.ID = s.newID()
			shipping.SameAsBilling = true
			c.ShippingAddresses = []domain.CartAddress{shipping}
		}
		return nil
	})
}

// SetShippingMethods selects the shipping method on the first shipping address.
func (s *CartStore) SetShippingMethods(ctx context.Context, caller Caller, cart Cart, methods []ShippingMethodDirective) error {
	if len(methods) == 0 {
		return nil
	}
	method := methods[0]
	return s.mutate(ctx, cart.ID, func(c *domain.Cart) error {
		if len(c.ShippingAddresses) == 0 {
			return inputError(caller.Locale, i18n.MsgShippingAddressUnset)
		}
		code := method.CarrierCode
		if method.MethodCode != "" {
			code += "_" + method.MethodCode
		}
		c.ShippingAddresses[0].ShippingMethod = code
		c.ShippingAddresses[0].ShippingAmount = method.Amount.Amount
		return nil
	})
}

// SetPaymentMethod stores the payment selection on cart.
func (s *CartStore) SetPaymentMethod(ctx context.Context, cart Cart, method PaymentMethodDirective) error {
	return s.mutate(ctx, cart.ID, func(c *domain.Cart) error {
		c.Payment = &domain.CartPayment{
			Method:              strings.TrimSpace(method.Code),
			PurchaseOrderNumber: strings.TrimSpace(method.PurchaseOrderNumber),
		}
		return nil
	})
}

// AddLineItems adds items to the cart with maskedID. Items that cannot be added
// are reported in the result by their position in items.
func (s *CartStore) AddLineItems(ctx context.Context, maskedID string, items []LineItemRequest) (AddProductsResult, error) {
	cart, err := s.carts.FindByMaskedID(ctx, strings.TrimSpace(maskedID))
	if err != nil {
		if isRepoNotFound(err) {
			return AddProductsResult{}, notFoundError("", i18n.MsgCartNotFound, maskedID)
		}
		return AddProductsResult{}, translateRepoError(err)
	}

	var lineErrors []LineItemError
	resolved := make([]CartItem, 0, len(items))
	for position, request := range items {
		item, lineErr, err := s.lineItem(ctx, request)
		if err != nil {
			return AddProductsResult{}, err
		}
		if lineErr != nil {
			lineErr.Position = position
			lineErrors = append(lineErrors, *lineErr)
			continue
		}
		resolved = append(resolved, item)
	}

	if len(resolved) == 0 {
		return AddProductsResult{Cart: cart, Errors: lineErrors}, nil
	}

	updated, err := s.carts.Mutate(ctx, cart.ID, func(c *domain.Cart) error {
		for _, item := range resolved {
			mergeLineItem(c, item)
		}
		c.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return AddProductsResult{}, translateRepoError(err)
	}
	return AddProductsResult{Cart: updated, Errors: lineErrors}, nil
}

// SaveCart overwrites the stored cart with the supplied snapshot.
func (s *CartStore) SaveCart(ctx context.Context, cart Cart) error {
	cart.UpdatedAt = s.now()
	if _, err := s.carts.Replace(ctx, cart); err != nil {
		return translateRepoError(err)
	}
	return nil
}

// AppliedCoupon returns the coupon applied to the cart with the internal id.
func (s *CartStore) AppliedCoupon(ctx context.Context, cartID string) (string, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return "", translateRepoError(err)
	}
	return cart.CouponCode, nil
}

// ApplyCoupon applies code to the cart with the internal id. Applying the code
// already on the cart is a no-op.
func (s *CartStore) ApplyCoupon(ctx context.Context, cartID, code string) error {
	code = strings.TrimSpace(code)
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if isRepoNotFound(err) {
			return inputError("", i18n.MsgCouponInvalid, code)
		}
		return translateRepoError(err)
	}
	if !coupon.ActiveAt(s.now()) {
		return inputError("", i18n.MsgCouponInvalid, code)
	}

	return s.mutate(ctx, cartID, func(c *domain.Cart) error {
		if len(c.VisibleItems()) == 0 {
			return newMessageError(ErrCartHasNoProducts, fmt.Sprintf(`The "%s" Cart doesn't contain products`, cartID), nil)
		}
		if c.CouponCode == coupon.Code {
			return nil
		}
		c.CouponCode = coupon.Code
		return nil
	})
}

func (s *CartStore) mutate(ctx context.Context, cartID string, fn repositories.CartMutation) error {
	_, err := s.carts.Mutate(ctx, cartID, func(c *domain.Cart) error {
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = s.now()
		return nil
	})
	if err == nil {
		return nil
	}
	var msgErr *messageError
	if errors.As(err, &msgErr) {
		return err
	}
	return translateRepoError(err)
}

// lineItem resolves a request into a cart item. A non-nil LineItemError means
// the request was rejected without failing the whole batch.
func (s *CartStore) lineItem(ctx context.Context, request LineItemRequest) (CartItem, *LineItemError, error) {
	sku := strings.TrimSpace(request.SKU)
	if !request.Quantity.IsPositive() {
		return CartItem{}, &LineItemError{
			Code:    LineItemErrorInvalidQuantity,
			Message: i18n.Sprintf("", i18n.MsgInvalidQuantity, sku),
		}, nil
	}

	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		if isRepoNotFound(err) {
			return CartItem{}, &LineItemError{
				Code:    LineItemErrorProductNotFound,
				Message: i18n.Sprintf("", i18n.MsgProductNotFound, sku),
			}, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return CartItem{}, nil, err
		}
		return CartItem{}, &LineItemError{Code: LineItemErrorUndefined, Message: err.Error()}, nil
	}

	if parent := strings.TrimSpace(request.ParentSKU); parent != "" {
		product.Type = domain.ProductTypeConfigurable
		product.OwnSKU = parent
	} else if product.OwnSKU == "" {
		product.OwnSKU = product.SKU
	}

	return CartItem{
		ID:              s.newID(),
		Product:         product,
		Quantity:        request.Quantity,
		EnteredOptions:  nonEmptyOptions(request.EnteredOptions),
		SelectedOptions: append([]string(nil), request.SelectedOptions...),
		CreatedAt:       s.now(),
	}, nil, nil
}

func (s *CartStore) cartAddress(input AddressInput) domain.CartAddress {
	return domain.CartAddress{
		ID:                s.newID(),
		Firstname:         input.Firstname,
		Middlename:        input.Middlename,
		Lastname:          input.Lastname,
		Prefix:            input.Prefix,
		Company:           input.Company,
		Street:            append([]string(nil), input.Street...),
		City:              input.City,
		RegionCode:        input.Region,
		RegionID:          input.RegionID,
		Postcode:          input.Postcode,
		CountryCode:       input.CountryCode,
		Telephone:         input.Telephone,
		Fax:               input.Fax,
		VatID:             input.VatID,
		SaveInAddressBook: input.SaveInAddressBook,
		ShippingAmount:    decimal.Zero,
	}
}

// mergeLineItem adds quantity to a visible line of the same product or appends item.
func mergeLineItem(cart *domain.Cart, item CartItem) {
	for i := range cart.Items {
		existing := &cart.Items[i]
		if !existing.Visible() {
			continue
		}
		if existing.Product.SKU == item.Product.SKU && existing.Product.OwnSKU == item.Product.OwnSKU {
			existing.Quantity = existing.Quantity.Add(item.Quantity)
			return
		}
	}
	cart.Items = append(cart.Items, item)
}

func nonEmptyOptions(options []domain.EnteredOption) []domain.EnteredOption {
	var result []domain.EnteredOption
	for _, option := range options {
		if strings.TrimSpace(option.UID) == "" && strings.TrimSpace(option.Value) == "" {
			continue
		}
		result = append(result, option)
	}
	return result
}
