package services

import (
	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/cartclone/internal/domain"
)

// lineItemBuilder is the closed set of per-type request builders. Each variant
// receives the pending batch and returns the batch to submit next.
type lineItemBuilder interface {
	build(pending []LineItemRequest, product Product, quantity decimal.Decimal) ([]LineItemRequest, bool)
}

type simpleItemBuilder struct{}

type configurableItemBuilder struct{}

type unsupportedItemBuilder struct{}

// A simple product starts a new batch.
func (simpleItemBuilder) build(_ []LineItemRequest, product Product, quantity decimal.Decimal) ([]LineItemRequest, bool) {
	return []LineItemRequest{baseLineItemRequest(product.SKU, quantity)}, true
}

// A configurable product joins the current batch and references its parent by the product's own SKU.
func (configurableItemBuilder) build(pending []LineItemRequest, product Product, quantity decimal.Decimal) ([]LineItemRequest, bool) {
	request := baseLineItemRequest(product.SKU, quantity)
	request.ParentSKU = product.OwnSKU
	return append(pending, request), true
}

func (unsupportedItemBuilder) build(pending []LineItemRequest, _ Product, _ decimal.Decimal) ([]LineItemRequest, bool) {
	return pending, false
}

func baseLineItemRequest(sku string, quantity decimal.Decimal) LineItemRequest {
	return LineItemRequest{
		SKU:             sku,
		Quantity:        quantity,
		EnteredOptions:  []domain.EnteredOption{{UID: "", Value: ""}},
		SelectedOptions: []string{},
	}
}

// builderFor maps every declared product type to its builder. Types that cannot
// be cloned map to unsupportedItemBuilder explicitly.
func builderFor(productType ProductType) lineItemBuilder {
	switch productType {
	case domain.ProductTypeSimple:
		return simpleItemBuilder{}
	case domain.ProductTypeConfigurable:
		return configurableItemBuilder{}
	case domain.ProductTypeGrouped,
		domain.ProductTypeBundle,
		domain.ProductTypeDownloadable,
		domain.ProductTypeGiftCard,
		domain.ProductTypeVirtual:
		return unsupportedItemBuilder{}
	default:
		return unsupportedItemBuilder{}
	}
}

// ProductTypeDispatcher builds add-products requests for one clone invocation.
// It owns the pending batch, so a dispatcher must not be shared between clones.
type ProductTypeDispatcher struct {
	pending []LineItemRequest
}

// NewProductTypeDispatcher returns a dispatcher with an empty pending batch.
func NewProductTypeDispatcher() *ProductTypeDispatcher {
	return &ProductTypeDispatcher{}
}

// Dispatch builds the request fragment for product. It returns the fragment to
// submit and false when the product type cannot be cloned.
func (d *ProductTypeDispatcher) Dispatch(product Product, quantity decimal.Decimal) (LineItemRequest, bool) {
	next, ok := builderFor(product.Type).build(d.pending, product, quantity)
	if !ok {
		return LineItemRequest{}, false
	}
	d.pending = next
	return next[len(next)-1], true
}

// Pending returns a copy of the current batch.
func (d *ProductTypeDispatcher) Pending() []LineItemRequest {
	return append([]LineItemRequest(nil), d.pending...)
}

// Supported reports whether products of the given type can be cloned.
func Supported(productType ProductType) bool {
	_, unsupported := builderFor(productType).(unsupportedItemBuilder)
	return !unsupported
}
