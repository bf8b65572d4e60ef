package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethodConfig is a payment method configured for a store.
type PaymentMethodConfig struct {
	Code       string
	Title      string
	Active     bool
	SortOrder  int
	Currencies []string
}

// ShippingRateConfig is one row of the carrier rate table.
type ShippingRateConfig struct {
	CarrierCode  string
	MethodCode   string
	CarrierTitle string
	MethodTitle  string
	Price        decimal.Decimal
	Countries    []string
	Active       bool
}

// Coupon is a discount code customers can apply to a cart.
type Coupon struct {
	Code     string
	Active   bool
	StartsAt *time.Time
	EndsAt   *time.Time
}

// ActiveAt reports whether the coupon can be redeemed at the given instant.
func (c Coupon) ActiveAt(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && !now.Before(*c.EndsAt) {
		return false
	}
	return true
}
