package services

import (
	"context"

	domain "github.com/hanko-field/cartclone/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Caller                   = domain.Caller
	Cart                     = domain.Cart
	CartItem                 = domain.CartItem
	CartAddress              = domain.CartAddress
	AddressRecord            = domain.AddressRecord
	AddressInput             = domain.AddressInput
	Product                  = domain.Product
	ProductType              = domain.ProductType
	Money                    = domain.Money
	ShippingRate             = domain.ShippingRate
	ShippingQuote            = domain.ShippingQuote
	SelectedShipping         = domain.SelectedShipping
	PaymentMethodOption      = domain.PaymentMethodOption
	PaymentSelection         = domain.PaymentSelection
	ShippingAddressDirective = domain.ShippingAddressDirective
	BillingAddressDirective  = domain.BillingAddressDirective
	ShippingMethodDirective  = domain.ShippingMethodDirective
	PaymentMethodDirective   = domain.PaymentMethodDirective
	LineItemRequest          = domain.LineItemRequest
	LineItemError            = domain.LineItemError
	AddProductsResult        = domain.AddProductsResult
	CloneStage               = domain.CloneStage
	CloneResult              = domain.CloneResult
)

const (
	CloneStageCreated            = domain.CloneStageCreated
	CloneStageItemsCopied        = domain.CloneStageItemsCopied
	CloneStageShippingAddressSet = domain.CloneStageShippingAddressSet
	CloneStageBillingAddressSet  = domain.CloneStageBillingAddressSet
	CloneStageShippingMethodSet  = domain.CloneStageShippingMethodSet
	CloneStagePaymentMethodSet   = domain.CloneStagePaymentMethodSet
	CloneStageEmailSet           = domain.CloneStageEmailSet
	CloneStageCouponApplied      = domain.CloneStageCouponApplied
	CloneStageDone               = domain.CloneStageDone
)

// CartCloneService copies a shopper's cart into a brand-new guest cart.
type CartCloneService interface {
	CloneCart(ctx context.Context, cmd CloneCartCommand) (CloneResult, error)
}

// CartItemService lists the line items a clone would copy.
type CartItemService interface {
	ListItems(ctx context.Context, cmd ListCartItemsCommand) (LineItemPage, error)
}

// CloneCartCommand carries the caller supplied clone parameters.
type CloneCartCommand struct {
	SourceCartID string
	Caller       Caller
}

// ListCartItemsCommand carries the caller supplied listing parameters.
type ListCartItemsCommand struct {
	CartID string
	Caller Caller
	Query  ItemQuery
}

// GuestCartFactory creates empty guest carts.
type GuestCartFactory interface {
	CreateEmptyGuestCart(ctx context.Context) (string, error)
}

// CartResolver loads a cart by masked id on behalf of a caller. Implementations
// return ErrCloneNotFound when the cart is missing or belongs to someone else.
type CartResolver interface {
	ResolveCartForCaller(ctx context.Context, maskedID string, caller Caller) (Cart, error)
}

// AddressExtractor flattens a stored address for validation. A nil record means
// the address carries no usable data.
type AddressExtractor interface {
	ExtractAddressData(address CartAddress) *AddressRecord
}

// AddressValidator checks a flattened address against the address schema.
type AddressValidator interface {
	ValidateAddress(record AddressRecord) bool
}

// PaymentMethodCatalog lists payment methods a cart can currently use.
type PaymentMethodCatalog interface {
	AvailablePaymentMethods(ctx context.Context, cart Cart) ([]PaymentMethodOption, error)
	PaymentMethodTitle(ctx context.Context, cart Cart, code string) (string, error)
}

// ShippingInfoReader reports the shipping method selected on a cart.
type ShippingInfoReader interface {
	SelectedShipping(ctx context.Context, cart Cart) (SelectedShipping, error)
}

// ShippingRateCalculator computes the rates offered for an address.
type ShippingRateCalculator interface {
	ShippingRates(ctx context.Context, address CartAddress) ([]ShippingRate, error)
}

// RateConverter prices a rate for display in a currency.
type RateConverter interface {
	ConvertRate(rate ShippingRate, currency string) ShippingQuote
}

// CartMutator writes checkout data onto a cart.
type CartMutator interface {
	SetShippingAddresses(ctx context.Context, caller Caller, cart Cart, addresses []ShippingAddressDirective) error
	SetBillingAddress(ctx context.Context, caller Caller, cart Cart, address BillingAddressDirective) error
	SetShippingMethods(ctx context.Context, caller Caller, cart Cart, methods []ShippingMethodDirective) error
	SetPaymentMethod(ctx context.Context, cart Cart, method PaymentMethodDirective) error
}

// LineItemAdder adds products to a cart identified by masked id.
type LineItemAdder interface {
	AddLineItems(ctx context.Context, maskedID string, items []LineItemRequest) (AddProductsResult, error)
}

// CouponManager reads and applies coupon codes by internal cart id.
type CouponManager interface {
	AppliedCoupon(ctx context.Context, cartID string) (string, error)
	ApplyCoupon(ctx context.Context, cartID, code string) error
}

// CheckoutGuard fails when a cart may not receive further checkout mutations.
type CheckoutGuard interface {
	CheckCheckoutAllowed(ctx context.Context, cart Cart) error
}

// CartPersister saves a modified cart snapshot.
type CartPersister interface {
	SaveCart(ctx context.Context, cart Cart) error
}

// CartClonedEvent is emitted after a clone completes.
type CartClonedEvent struct {
	SourceCartID string
	CartID       string
	ItemCount    int
	Stage        CloneStage
	CallerID     string
}

// CloneEventPublisher announces completed clones to downstream consumers.
type CloneEventPublisher interface {
	PublishCartCloned(ctx context.Context, event CartClonedEvent) error
}
