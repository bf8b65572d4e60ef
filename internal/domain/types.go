package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "ASC"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "DESC"
)

// Caller identifies who triggered an operation. A guest caller has an empty UserID.
type Caller struct {
	UserID  string
	StoreID string
	Locale  string
}

// IsGuest reports whether the caller is unauthenticated.
func (c Caller) IsGuest() bool {
	return c.UserID == "" || c.UserID == "0"
}

// Money pairs an amount with its ISO currency code.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney constructs Money tagged with the supplied currency.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Cart is the aggregate cloned by the service. ID is the internal identifier and
// MaskedID the opaque reference handed to clients.
type Cart struct {
	ID                string
	MaskedID          string
	StoreID           string
	CustomerID        string
	Items             []CartItem
	ShippingAddresses []CartAddress
	BillingAddress    *CartAddress
	Payment           *CartPayment
	CustomerEmail     string
	Currency          string
	IsVirtual         bool
	IsActive          bool
	GrandTotal        decimal.Decimal
	CouponCode        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ShippingAddress returns the first shipping address stored on the cart.
func (c Cart) ShippingAddress() (CartAddress, bool) {
	if len(c.ShippingAddresses) == 0 {
		return CartAddress{}, false
	}
	return c.ShippingAddresses[0], true
}

// VisibleItems returns the line items shown to customers, in cart order.
func (c Cart) VisibleItems() []CartItem {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Visible() {
			items = append(items, item)
		}
	}
	return items
}

// CartItem is one line of a cart.
type CartItem struct {
	ID              string
	ParentItemID    string
	Product         Product
	Quantity        decimal.Decimal
	EnteredOptions  []EnteredOption
	SelectedOptions []string
	Deleted         bool
	CreatedAt       time.Time
}

// Visible reports whether the item carries a usable identity and is a top-level line.
func (i CartItem) Visible() bool {
	if i.ID == "" || i.ID == "0" {
		return false
	}
	return !i.Deleted && i.ParentItemID == ""
}

// Product describes the catalog entry referenced by a line item. SKU is the
// effective (variant) SKU while OwnSKU is the value stored on the product
// record itself; they only differ for configurable products.
type Product struct {
	ID     string
	Type   ProductType
	SKU    string
	OwnSKU string
	Name   string
}

// EnteredOption is a free-form customization value keyed by option uid.
type EnteredOption struct {
	UID   string
	Value string
}

// CartAddress is a shipping or billing address stored on a cart.
type CartAddress struct {
	ID                 string
	Firstname          string
	Middlename         string
	Lastname           string
	Prefix             string
	Company            string
	Street             []string
	StreetText         string
	City               string
	Region             string
	RegionCode         string
	RegionID           int
	RegionRef          *Region
	Postcode           string
	CountryCode        string
	CountryID          string
	Telephone          string
	Fax                string
	VatID              string
	SaveInAddressBook  bool
	SameAsBilling      bool
	CustomerAddressID  *string
	CustomerNotes      *string
	PickupLocationCode *string
	ShippingMethod     string
	ShippingAmount     decimal.Decimal
}

// Region is the directory entry an address may link to.
type Region struct {
	ID   int
	Code string
	Name string
}

// AddressRecord is the flattened view of an address produced for schema validation.
type AddressRecord struct {
	Address     CartAddress
	Street      []string
	CountryCode string
	RegionCode  string
}

// CartPayment is the payment selection stored on a cart.
type CartPayment struct {
	Method              string
	PurchaseOrderNumber string
}

// PaymentMethodOption is a payment method available for a cart.
type PaymentMethodOption struct {
	Code  string
	Title string
}

// PaymentSelection is the payment method chosen on a source cart.
type PaymentSelection struct {
	Code                string
	Title               string
	PurchaseOrderNumber string
}

// SelectedShipping summarises the shipping method stored on a cart.
type SelectedShipping struct {
	CarrierCode string
	MethodCode  string
	BaseAmount  decimal.Decimal
}

// ShippingRate is a rate computed for an address. Code has the form "carrier_method".
type ShippingRate struct {
	Code         string
	CarrierCode  string
	MethodCode   string
	CarrierTitle string
	MethodTitle  string
	Price        decimal.Decimal
}

// ShippingQuote is a rate priced for display in a currency.
type ShippingQuote struct {
	CarrierTitle string
	MethodTitle  string
	PriceExclTax decimal.Decimal
	PriceInclTax decimal.Decimal
}
