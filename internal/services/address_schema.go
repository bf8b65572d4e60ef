package services

import (
	"strings"

	"golang.org/x/text/language"
)

// AddressSchema flattens stored addresses and validates them against the
// fields a checkout address requires.
type AddressSchema struct{}

var (
	_ AddressExtractor = (*AddressSchema)(nil)
	_ AddressValidator = (*AddressSchema)(nil)
)

// NewAddressSchema constructs an AddressSchema.
func NewAddressSchema() *AddressSchema {
	return &AddressSchema{}
}

// ExtractAddressData normalises street lines, country and region of address.
// It returns nil when the address carries no data at all.
func (s *AddressSchema) ExtractAddressData(address CartAddress) *AddressRecord {
	street := streetLines(address)
	country := strings.ToUpper(strings.TrimSpace(address.CountryCode))
	if country == "" {
		country = strings.ToUpper(strings.TrimSpace(address.CountryID))
	}
	region := regionCode(address)

	if len(street) == 0 && country == "" && region == "" &&
		strings.TrimSpace(address.Firstname) == "" &&
		strings.TrimSpace(address.Lastname) == "" &&
		strings.TrimSpace(address.City) == "" &&
		strings.TrimSpace(address.Postcode) == "" &&
		strings.TrimSpace(address.Telephone) == "" {
		return nil
	}

	return &AddressRecord{
		Address:     address,
		Street:      street,
		CountryCode: country,
		RegionCode:  region,
	}
}

// postcodeOptional lists countries without a postal code system. The set
// matches the storefront's default optional zip countries.
var postcodeOptional = map[string]struct{}{
	"HK": {},
	"IE": {},
	"MO": {},
	"PA": {},
}

// ValidateAddress reports whether record has every required field and a known
// country. The postcode is only required where the country uses one.
func (s *AddressSchema) ValidateAddress(record AddressRecord) bool {
	address := record.Address
	required := []string{address.Firstname, address.Lastname, address.City, address.Telephone}
	if _, optional := postcodeOptional[record.CountryCode]; !optional {
		required = append(required, address.Postcode)
	}
	for _, value := range required {
		if strings.TrimSpace(value) == "" {
			return false
		}
	}
	if len(record.Street) == 0 || strings.TrimSpace(record.Street[0]) == "" {
		return false
	}
	return knownCountry(record.CountryCode)
}

func streetLines(address CartAddress) []string {
	source := address.Street
	if len(source) == 0 && address.StreetText != "" {
		source = strings.FieldsFunc(address.StreetText, func(r rune) bool { return r == '\n' || r == '\r' })
	}
	lines := make([]string, 0, len(source))
	for _, line := range source {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}

// regionCode prefers the explicit code, then the linked region, then the raw region name.
func regionCode(address CartAddress) string {
	if code := strings.TrimSpace(address.RegionCode); code != "" {
		return code
	}
	if address.RegionRef != nil {
		if code := strings.TrimSpace(address.RegionRef.Code); code != "" {
			return code
		}
	}
	return strings.TrimSpace(address.Region)
}

func knownCountry(code string) bool {
	if len(code) != 2 {
		return false
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return false
	}
	return region.IsCountry()
}
