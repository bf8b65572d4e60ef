package domain

import "strings"

// ProductType tags the catalog type of a product.
type ProductType string

const (
	ProductTypeSimple       ProductType = "simple"
	ProductTypeVirtual      ProductType = "virtual"
	ProductTypeBundle       ProductType = "bundle"
	ProductTypeConfigurable ProductType = "configurable"
	ProductTypeDownloadable ProductType = "downloadable"
	ProductTypeGiftCard     ProductType = "giftcard"
	ProductTypeGrouped      ProductType = "grouped"
)

var productTypeLabels = map[ProductType]string{
	ProductTypeSimple:       "Simple Product",
	ProductTypeVirtual:      "Virtual Product",
	ProductTypeBundle:       "Bundle Product",
	ProductTypeConfigurable: "Configurable Product",
	ProductTypeDownloadable: "Downloadable Product",
	ProductTypeGiftCard:     "Gift Card",
	ProductTypeGrouped:      "Grouped Product",
}

// ProductTypes lists every known product type in display order.
func ProductTypes() []ProductType {
	return []ProductType{
		ProductTypeSimple,
		ProductTypeVirtual,
		ProductTypeBundle,
		ProductTypeConfigurable,
		ProductTypeDownloadable,
		ProductTypeGiftCard,
		ProductTypeGrouped,
	}
}

// ParseProductType normalises a stored type tag. Unknown tags are returned as-is.
func ParseProductType(raw string) ProductType {
	return ProductType(strings.ToLower(strings.TrimSpace(raw)))
}

// Label returns the human readable name of the type.
func (t ProductType) Label() string {
	if label, ok := productTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// Known reports whether the type is one of the declared product types.
func (t ProductType) Known() bool {
	_, ok := productTypeLabels[t]
	return ok
}
