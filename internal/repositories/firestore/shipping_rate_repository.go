package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/cartclone/internal/domain"
	pfirestore "github.com/hanko-field/cartclone/internal/platform/firestore"
	"github.com/hanko-field/cartclone/internal/repositories"
)

const shippingRateCollection = "shippingRates"

// ShippingRateRepository reads the carrier rate table. Each row lists the
// ISO country codes it ships to.
type ShippingRateRepository struct {
	base *pfirestore.Collection[domain.ShippingRateConfig]
}

// NewShippingRateRepository constructs a Firestore-backed shipping rate repository.
func NewShippingRateRepository(provider *pfirestore.Provider) (*ShippingRateRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping rate repository requires firestore provider")
	}
	return &ShippingRateRepository{
		base: pfirestore.NewCollection[domain.ShippingRateConfig](provider, shippingRateCollection, decodeShippingRate),
	}, nil
}

// ListByCountry returns every rate row shipping to countryCode.
func (r *ShippingRateRepository) ListByCountry(ctx context.Context, countryCode string) ([]domain.ShippingRateConfig, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("shipping rate repository not initialised")
	}
	country := strings.ToUpper(strings.TrimSpace(countryCode))
	if country == "" {
		return nil, nil
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("countries", "array-contains", country)
	})
	if err != nil {
		return nil, err
	}
	rates := make([]domain.ShippingRateConfig, 0, len(docs))
	for _, doc := range docs {
		rates = append(rates, doc.Data)
	}
	return rates, nil
}

func decodeShippingRate(snap *firestore.DocumentSnapshot) (domain.ShippingRateConfig, error) {
	var doc shippingRateDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.ShippingRateConfig{}, err
	}
	price, err := parseDecimal(doc.Price)
	if err != nil {
		return domain.ShippingRateConfig{}, fmt.Errorf("price: %w", err)
	}
	return domain.ShippingRateConfig{
		CarrierCode:  strings.TrimSpace(doc.CarrierCode),
		MethodCode:   strings.TrimSpace(doc.MethodCode),
		CarrierTitle: strings.TrimSpace(doc.CarrierTitle),
		MethodTitle:  strings.TrimSpace(doc.MethodTitle),
		Price:        price,
		Countries:    append([]string(nil), doc.Countries...),
		Active:       doc.Active,
	}, nil
}

type shippingRateDocument struct {
	CarrierCode  string   `firestore:"carrierCode"`
	MethodCode   string   `firestore:"methodCode"`
	CarrierTitle string   `firestore:"carrierTitle"`
	MethodTitle  string   `firestore:"methodTitle"`
	Price        string   `firestore:"price"`
	Countries    []string `firestore:"countries"`
	Active       bool     `firestore:"active"`
}

var _ repositories.ShippingRateRepository = (*ShippingRateRepository)(nil)
