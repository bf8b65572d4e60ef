package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/hanko-field/cartclone/internal/repositories"
)

// ShippingRateTable computes shipping rates from the configured carrier rate table.
type ShippingRateTable struct {
	repo repositories.ShippingRateRepository
}

var _ ShippingRateCalculator = (*ShippingRateTable)(nil)

// NewShippingRateTable constructs a ShippingRateTable.
func NewShippingRateTable(repo repositories.ShippingRateRepository) (*ShippingRateTable, error) {
	if repo == nil {
		return nil, errors.New("shipping rate table: repository is required")
	}
	return &ShippingRateTable{repo: repo}, nil
}

// ShippingRates lists the active rates offered for the country of address.
func (t *ShippingRateTable) ShippingRates(ctx context.Context, address CartAddress) ([]ShippingRate, error) {
	country := strings.ToUpper(strings.TrimSpace(address.CountryCode))
	if country == "" {
		country = strings.ToUpper(strings.TrimSpace(address.CountryID))
	}
	if country == "" {
		return nil, nil
	}

	rows, err := t.repo.ListByCountry(ctx, country)
	if err != nil {
		return nil, translateRepoError(err)
	}
	rates := make([]ShippingRate, 0, len(rows))
	for _, row := range rows {
		if !row.Active {
			continue
		}
		rates = append(rates, ShippingRate{
			Code:         row.CarrierCode + "_" + row.MethodCode,
			CarrierCode:  row.CarrierCode,
			MethodCode:   row.MethodCode,
			CarrierTitle: row.CarrierTitle,
			MethodTitle:  row.MethodTitle,
			Price:        row.Price,
		})
	}
	return rates, nil
}

// TaxedRateConverter prices rates with a flat tax rate, rounded to the currency's minor unit.
type TaxedRateConverter struct {
	taxRate decimal.Decimal
}

var _ RateConverter = (*TaxedRateConverter)(nil)

// NewTaxedRateConverter constructs a converter. Negative tax rates are treated as zero.
func NewTaxedRateConverter(taxRate decimal.Decimal) *TaxedRateConverter {
	if taxRate.IsNegative() {
		taxRate = decimal.Zero
	}
	return &TaxedRateConverter{taxRate: taxRate}
}

// ConvertRate returns the quote for rate in currencyCode.
func (c *TaxedRateConverter) ConvertRate(rate ShippingRate, currencyCode string) ShippingQuote {
	scale := currencyScale(currencyCode)
	excl := rate.Price.Round(scale)
	incl := rate.Price.Mul(decimal.NewFromInt(1).Add(c.taxRate)).Round(scale)
	return ShippingQuote{
		CarrierTitle: rate.CarrierTitle,
		MethodTitle:  rate.MethodTitle,
		PriceExclTax: excl,
		PriceInclTax: incl,
	}
}

func currencyScale(code string) int32 {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}
