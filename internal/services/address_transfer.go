package services

import (
	"context"
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hanko-field/cartclone/internal/platform/lock"
)

// AddressTransferDeps wires the collaborators used to copy addresses.
type AddressTransferDeps struct {
	Extractor AddressExtractor
	Validator AddressValidator
	Resolver  CartResolver
	Mutator   CartMutator
	Guard     CheckoutGuard
	Locker    lock.Locker
}

// AddressTransfer copies shipping and billing addresses from a source cart.
type AddressTransfer struct {
	extractor AddressExtractor
	validator AddressValidator
	resolver  CartResolver
	mutator   CartMutator
	guard     CheckoutGuard
	locker    lock.Locker
	notes     *bluemonday.Policy
}

// NewAddressTransfer validates deps and constructs an AddressTransfer.
func NewAddressTransfer(deps AddressTransferDeps) (*AddressTransfer, error) {
	if deps.Extractor == nil || deps.Validator == nil {
		return nil, errors.New("address transfer: extractor and validator are required")
	}
	if deps.Resolver == nil || deps.Mutator == nil || deps.Guard == nil || deps.Locker == nil {
		return nil, errors.New("address transfer: resolver, mutator, guard and locker are required")
	}
	return &AddressTransfer{
		extractor: deps.Extractor,
		validator: deps.Validator,
		resolver:  deps.Resolver,
		mutator:   deps.Mutator,
		guard:     deps.Guard,
		locker:    deps.Locker,
		notes:     bluemonday.StrictPolicy(),
	}, nil
}

// ValidShippingAddresses returns the extracted shipping addresses of source that
// pass schema validation, in cart order. Virtual carts have none.
func (t *AddressTransfer) ValidShippingAddresses(source Cart) []AddressRecord {
	if source.IsVirtual {
		return nil
	}
	var records []AddressRecord
	for _, address := range source.ShippingAddresses {
		record := t.extractor.ExtractAddressData(address)
		if record == nil || !t.validator.ValidateAddress(*record) {
			continue
		}
		records = append(records, *record)
	}
	return records
}

// BuildShippingAddresses maps the first valid, persisted shipping address of source.
// An empty result means there is nothing to copy.
func (t *AddressTransfer) BuildShippingAddresses(source Cart) []ShippingAddressDirective {
	records := t.ValidShippingAddresses(source)
	if len(records) == 0 {
		return nil
	}
	record := records[0]
	if record.Address.ID == "" {
		return nil
	}

	return []ShippingAddressDirective{{
		Address:            addressInput(record),
		CustomerAddressID:  trimmedPtr(record.Address.CustomerAddressID),
		CustomerNotes:      t.sanitizeNotes(record.Address.CustomerNotes),
		PickupLocationCode: trimmedPtr(record.Address.PickupLocationCode),
	}}
}

// BuildBillingAddress maps the billing address of source, or returns nil when it
// is missing, invalid or not persisted.
func (t *AddressTransfer) BuildBillingAddress(source Cart) *BillingAddressDirective {
	if source.BillingAddress == nil {
		return nil
	}
	record := t.extractor.ExtractAddressData(*source.BillingAddress)
	if record == nil || !t.validator.ValidateAddress(*record) {
		return nil
	}
	if record.Address.ID == "" {
		return nil
	}

	// same_as_billing on the stored billing row is the inverse of same_as_shipping.
	sameAsShipping := false
	if record.Address.ID != "" {
		sameAsShipping = !record.Address.SameAsBilling
	}

	return &BillingAddressDirective{
		Address:           addressInput(*record),
		CustomerAddressID: trimmedPtr(record.Address.CustomerAddressID),
		SameAsShipping:    sameAsShipping,
		UseForShipping:    false,
	}
}

// ApplyShippingAddresses writes directives onto the destination cart. An empty
// slice is a no-op.
func (t *AddressTransfer) ApplyShippingAddresses(ctx context.Context, req CloneRequest, directives []ShippingAddressDirective) error {
	return withTargetCart(ctx, t.locker, t.resolver, req, func(ctx context.Context, target Cart) error {
		if len(directives) == 0 {
			return nil
		}
		if err := t.guard.CheckCheckoutAllowed(ctx, target); err != nil {
			return err
		}
		return t.mutator.SetShippingAddresses(ctx, req.Caller, target, directives)
	})
}

// ApplyBillingAddress writes directive onto the destination cart. A nil directive is a no-op.
func (t *AddressTransfer) ApplyBillingAddress(ctx context.Context, req CloneRequest, directive *BillingAddressDirective) error {
	return withTargetCart(ctx, t.locker, t.resolver, req, func(ctx context.Context, target Cart) error {
		if directive == nil {
			return nil
		}
		if err := t.guard.CheckCheckoutAllowed(ctx, target); err != nil {
			return err
		}
		return t.mutator.SetBillingAddress(ctx, req.Caller, target, *directive)
	})
}

func (t *AddressTransfer) sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	cleaned := strings.TrimSpace(t.notes.Sanitize(*notes))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func addressInput(record AddressRecord) AddressInput {
	address := record.Address
	return AddressInput{
		City:              address.City,
		Company:           address.Company,
		CountryCode:       record.CountryCode,
		Fax:               address.Fax,
		Firstname:         address.Firstname,
		Lastname:          address.Lastname,
		Middlename:        address.Middlename,
		Postcode:          address.Postcode,
		Prefix:            address.Prefix,
		Region:            record.RegionCode,
		RegionID:          address.RegionID,
		SaveInAddressBook: address.SaveInAddressBook,
		Street:            append([]string(nil), record.Street...),
		Telephone:         address.Telephone,
		VatID:             address.VatID,
	}
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
