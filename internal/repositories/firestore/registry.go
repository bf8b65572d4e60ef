package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/hanko-field/cartclone/internal/platform/firestore"
	"github.com/hanko-field/cartclone/internal/repositories"
)

// Registry exposes the Firestore-backed repositories sharing one client provider.
type Registry struct {
	provider *pfirestore.Provider
	carts    *CartRepository
	products *ProductRepository
	payments *PaymentMethodRepository
	rates    *ShippingRateRepository
	coupons  *CouponRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on top of provider. health reports dependency status.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	if health == nil {
		return nil, errors.New("registry requires health repository")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	payments, err := NewPaymentMethodRepository(provider)
	if err != nil {
		return nil, err
	}
	rates, err := NewShippingRateRepository(provider)
	if err != nil {
		return nil, err
	}
	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		carts:    carts,
		products: products,
		payments: payments,
		rates:    rates,
		coupons:  coupons,
		health:   health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) PaymentMethods() repositories.PaymentMethodRepository { return r.payments }

func (r *Registry) ShippingRates() repositories.ShippingRateRepository { return r.rates }

func (r *Registry) Coupons() repositories.CouponRepository { return r.coupons }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
