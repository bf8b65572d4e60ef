package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/cartclone/internal/domain"
	pfirestore "github.com/hanko-field/cartclone/internal/platform/firestore"
	"github.com/hanko-field/cartclone/internal/repositories"
)

const productCollection = "products"

// ProductRepository reads catalog products stored under their SKU.
type ProductRepository struct {
	base *pfirestore.Collection[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewCollection[domain.Product](provider, productCollection, decodeProduct),
	}, nil
}

// FindBySKU loads the product whose document id is sku.
func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return domain.Product{}, pfirestore.WrapError("products.get", pfirestore.ErrDocumentMissing)
	}
	doc, err := r.base.Get(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data, nil
}

func decodeProduct(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, err
	}
	product := doc.toDomain(snap.Ref.ID)
	if product.SKU == "" {
		product.SKU = snap.Ref.ID
	}
	if product.OwnSKU == "" {
		product.OwnSKU = product.SKU
	}
	return product, nil
}

type productDocument struct {
	ID     string `firestore:"id,omitempty"`
	Type   string `firestore:"type"`
	SKU    string `firestore:"sku"`
	OwnSKU string `firestore:"ownSku,omitempty"`
	Name   string `firestore:"name,omitempty"`
}

func encodeProduct(product domain.Product) productDocument {
	return productDocument{
		ID:     product.ID,
		Type:   string(product.Type),
		SKU:    product.SKU,
		OwnSKU: product.OwnSKU,
		Name:   product.Name,
	}
}

func (d productDocument) toDomain(fallbackID string) domain.Product {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		id = fallbackID
	}
	return domain.Product{
		ID:     id,
		Type:   domain.ParseProductType(d.Type),
		SKU:    strings.TrimSpace(d.SKU),
		OwnSKU: strings.TrimSpace(d.OwnSKU),
		Name:   strings.TrimSpace(d.Name),
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
