package domain

import "github.com/shopspring/decimal"

// AddressInput is the address payload submitted to a destination cart.
type AddressInput struct {
	City              string
	Company           string
	CountryCode       string
	Fax               string
	Firstname         string
	Lastname          string
	Middlename        string
	Postcode          string
	Prefix            string
	Region            string
	RegionID          int
	SaveInAddressBook bool
	Street            []string
	Telephone         string
	VatID             string
}

// ShippingAddressDirective sets one shipping address on a destination cart.
type ShippingAddressDirective struct {
	Address            AddressInput
	CustomerAddressID  *string
	CustomerNotes      *string
	PickupLocationCode *string
}

// BillingAddressDirective sets the billing address on a destination cart.
type BillingAddressDirective struct {
	Address           AddressInput
	CustomerAddressID *string
	SameAsShipping    bool
	UseForShipping    bool
}

// ShippingMethodDirective selects a carrier/method pair on a destination cart.
type ShippingMethodDirective struct {
	CarrierCode  string
	MethodCode   string
	CarrierTitle string
	MethodTitle  string
	Amount       Money
	PriceExclTax Money
	PriceInclTax Money
}

// PaymentMethodDirective selects a payment method on a destination cart.
type PaymentMethodDirective struct {
	Code                string
	Title               string
	PurchaseOrderNumber string
}

// LineItemRequest is one product submitted to the add-products operation.
type LineItemRequest struct {
	SKU             string
	ParentSKU       string
	Quantity        decimal.Decimal
	EnteredOptions  []EnteredOption
	SelectedOptions []string
}

// LineItemError reports a rejected line item by its position in the submitted batch.
type LineItemError struct {
	Code     string
	Message  string
	Position int
}

// AddProductsResult is returned by the add-products operation.
type AddProductsResult struct {
	Cart   Cart
	Errors []LineItemError
}
