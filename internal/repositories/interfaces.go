package repositories

import (
	"context"

	domain "github.com/hanko-field/cartclone/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Products() ProductRepository
	PaymentMethods() PaymentMethodRepository
	ShippingRates() ShippingRateRepository
	Coupons() CouponRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartMutation edits a cart snapshot in place inside a repository transaction.
type CartMutation func(cart *domain.Cart) error

// CartRepository persists cart aggregates keyed by their internal identifier.
// Masked identifiers are unique and indexed for lookup.
type CartRepository interface {
	// Insert stores a new cart. Should return a RepositoryError with IsConflict when the masked id is taken.
	Insert(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	// FindByMaskedID loads the latest snapshot. Should return a RepositoryError with IsNotFound when absent.
	FindByMaskedID(ctx context.Context, maskedID string) (domain.Cart, error)
	// FindByID loads a cart by its internal identifier.
	FindByID(ctx context.Context, cartID string) (domain.Cart, error)
	// Mutate reads the cart with the internal id, applies fn and writes the result atomically.
	Mutate(ctx context.Context, cartID string, fn CartMutation) (domain.Cart, error)
	// Replace overwrites the stored cart with the supplied snapshot.
	Replace(ctx context.Context, cart domain.Cart) (domain.Cart, error)
}

// ProductRepository looks up catalog products by SKU.
type ProductRepository interface {
	FindBySKU(ctx context.Context, sku string) (domain.Product, error)
}

// PaymentMethodRepository lists payment methods configured for a store.
type PaymentMethodRepository interface {
	ListActive(ctx context.Context, storeID string) ([]domain.PaymentMethodConfig, error)
	FindByCode(ctx context.Context, storeID, code string) (domain.PaymentMethodConfig, error)
}

// ShippingRateRepository exposes the carrier rate table.
type ShippingRateRepository interface {
	ListByCountry(ctx context.Context, countryCode string) ([]domain.ShippingRateConfig, error)
}

// CouponRepository reads coupon definitions.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
}

// HealthRepository surfaces dependency health for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
