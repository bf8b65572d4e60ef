package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/hanko-field/cartclone/internal/domain"
	pfirestore "github.com/hanko-field/cartclone/internal/platform/firestore"
	"github.com/hanko-field/cartclone/internal/repositories"
)

const (
	cartCollection = "carts"
	maskedIDField  = "maskedId"
)

// CartRepository persists cart aggregates as single documents keyed by the internal cart id.
type CartRepository struct {
	base     *pfirestore.Collection[domain.Cart]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base:     pfirestore.NewCollection[domain.Cart](provider, cartCollection, decodeCart),
		provider: provider,
	}, nil
}

// Insert stores a new cart. The masked id must not be used by another cart.
func (r *CartRepository) Insert(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	cartID := strings.TrimSpace(cart.ID)
	maskedID := strings.TrimSpace(cart.MaskedID)
	if cartID == "" || maskedID == "" {
		return domain.Cart{}, errors.New("cart repository: cart id and masked id are required")
	}
	cart.ID, cart.MaskedID = cartID, maskedID

	docRef, err := r.base.DocumentRef(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	coll := docRef.Parent

	doc := encodeCart(cart)
	err = r.provider.RunTransaction(ctx, "carts.insert", func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(coll.Where(maskedIDField, "==", maskedID).Limit(1)).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if len(snaps) > 0 {
			return status.Error(codes.AlreadyExists, "masked cart id already in use")
		}
		return tx.Create(docRef, doc)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// FindByMaskedID loads the cart referenced by the masked id handed to clients.
func (r *CartRepository) FindByMaskedID(ctx context.Context, maskedID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	maskedID = strings.TrimSpace(maskedID)
	if maskedID == "" {
		return domain.Cart{}, errors.New("cart repository: masked id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(maskedIDField, "==", maskedID).Limit(1)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if len(docs) == 0 {
		return domain.Cart{}, pfirestore.WrapError("carts.find_by_masked_id", pfirestore.ErrDocumentMissing)
	}
	return docs[0].Data, nil
}

// FindByID loads a cart by its internal identifier.
func (r *CartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(cartID))
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data, nil
}

// Mutate applies fn to the stored cart inside a transaction. Errors returned by
// fn are passed back unchanged and nothing is written.
func (r *CartRepository) Mutate(ctx context.Context, cartID string, fn repositories.CartMutation) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	if fn == nil {
		return domain.Cart{}, errors.New("cart repository: mutation is required")
	}
	docRef, err := r.base.DocumentRef(ctx, strings.TrimSpace(cartID))
	if err != nil {
		return domain.Cart{}, err
	}

	var (
		saved    domain.Cart
		mutation error
	)
	err = r.provider.RunTransaction(ctx, "carts.mutate", func(ctx context.Context, tx *firestore.Transaction) error {
		mutation = nil
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		decoded, err := r.base.Decode(snap)
		if err != nil {
			return err
		}
		cart := decoded.Data
		if err := fn(&cart); err != nil {
			mutation = err
			return err
		}
		if err := tx.Set(docRef, encodeCart(cart)); err != nil {
			return err
		}
		saved = cart
		return nil
	})
	if mutation != nil {
		return domain.Cart{}, mutation
	}
	if err != nil {
		return domain.Cart{}, err
	}
	return saved, nil
}

// Replace overwrites an existing cart document with the supplied snapshot.
func (r *CartRepository) Replace(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	docRef, err := r.base.DocumentRef(ctx, strings.TrimSpace(cart.ID))
	if err != nil {
		return domain.Cart{}, err
	}
	err = r.provider.RunTransaction(ctx, "carts.replace", func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(docRef); err != nil {
			return err
		}
		return tx.Set(docRef, encodeCart(cart))
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func decodeCart(snap *firestore.DocumentSnapshot) (domain.Cart, error) {
	var doc cartDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Cart{}, err
	}
	return doc.toDomain(snap.Ref.ID)
}

type cartDocument struct {
	MaskedID          string                `firestore:"maskedId"`
	StoreID           string                `firestore:"storeId,omitempty"`
	CustomerID        string                `firestore:"customerId,omitempty"`
	CustomerEmail     string                `firestore:"customerEmail,omitempty"`
	Currency          string                `firestore:"currency"`
	IsVirtual         bool                  `firestore:"isVirtual"`
	IsActive          bool                  `firestore:"isActive"`
	GrandTotal        string                `firestore:"grandTotal"`
	CouponCode        string                `firestore:"couponCode,omitempty"`
	Items             []cartItemDocument    `firestore:"items"`
	ItemsCount        int                   `firestore:"itemsCount"`
	ShippingAddresses []cartAddressDocument `firestore:"shippingAddresses"`
	BillingAddress    *cartAddressDocument  `firestore:"billingAddress,omitempty"`
	Payment           *cartPaymentDocument  `firestore:"payment,omitempty"`
	CreatedAt         time.Time             `firestore:"createdAt"`
	UpdatedAt         time.Time             `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID              string                  `firestore:"id"`
	ParentItemID    string                  `firestore:"parentItemId,omitempty"`
	Product         productDocument         `firestore:"product"`
	Quantity        string                  `firestore:"quantity"`
	EnteredOptions  []enteredOptionDocument `firestore:"enteredOptions,omitempty"`
	SelectedOptions []string                `firestore:"selectedOptions,omitempty"`
	Deleted         bool                    `firestore:"deleted"`
	CreatedAt       time.Time               `firestore:"createdAt"`
}

type enteredOptionDocument struct {
	UID   string `firestore:"uid"`
	Value string `firestore:"value"`
}

type cartAddressDocument struct {
	ID                 string          `firestore:"id"`
	Firstname          string          `firestore:"firstname"`
	Middlename         string          `firestore:"middlename,omitempty"`
	Lastname           string          `firestore:"lastname"`
	Prefix             string          `firestore:"prefix,omitempty"`
	Company            string          `firestore:"company,omitempty"`
	Street             []string        `firestore:"street,omitempty"`
	StreetText         string          `firestore:"streetText,omitempty"`
	City               string          `firestore:"city"`
	Region             string          `firestore:"region,omitempty"`
	RegionCode         string          `firestore:"regionCode,omitempty"`
	RegionID           int             `firestore:"regionId,omitempty"`
	RegionRef          *regionDocument `firestore:"regionRef,omitempty"`
	Postcode           string          `firestore:"postcode"`
	CountryCode        string          `firestore:"countryCode,omitempty"`
	CountryID          string          `firestore:"countryId,omitempty"`
	Telephone          string          `firestore:"telephone"`
	Fax                string          `firestore:"fax,omitempty"`
	VatID              string          `firestore:"vatId,omitempty"`
	SaveInAddressBook  bool            `firestore:"saveInAddressBook"`
	SameAsBilling      bool            `firestore:"sameAsBilling"`
	CustomerAddressID  *string         `firestore:"customerAddressId,omitempty"`
	CustomerNotes      *string         `firestore:"customerNotes,omitempty"`
	PickupLocationCode *string         `firestore:"pickupLocationCode,omitempty"`
	ShippingMethod     string          `firestore:"shippingMethod,omitempty"`
	ShippingAmount     string          `firestore:"shippingAmount,omitempty"`
}

type regionDocument struct {
	ID   int    `firestore:"id"`
	Code string `firestore:"code"`
	Name string `firestore:"name"`
}

type cartPaymentDocument struct {
	Method              string `firestore:"method"`
	PurchaseOrderNumber string `firestore:"purchaseOrderNumber,omitempty"`
}

func encodeCart(cart domain.Cart) cartDocument {
	doc := cartDocument{
		MaskedID:      strings.TrimSpace(cart.MaskedID),
		StoreID:       strings.TrimSpace(cart.StoreID),
		CustomerID:    strings.TrimSpace(cart.CustomerID),
		CustomerEmail: strings.TrimSpace(cart.CustomerEmail),
		Currency:      strings.ToUpper(strings.TrimSpace(cart.Currency)),
		IsVirtual:     cart.IsVirtual,
		IsActive:      cart.IsActive,
		GrandTotal:    cart.GrandTotal.String(),
		CouponCode:    strings.TrimSpace(cart.CouponCode),
		ItemsCount:    len(cart.VisibleItems()),
		CreatedAt:     cart.CreatedAt.UTC(),
		UpdatedAt:     cart.UpdatedAt.UTC(),
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, encodeCartItem(item))
	}
	for _, address := range cart.ShippingAddresses {
		doc.ShippingAddresses = append(doc.ShippingAddresses, encodeAddress(address))
	}
	if cart.BillingAddress != nil {
		billing := encodeAddress(*cart.BillingAddress)
		doc.BillingAddress = &billing
	}
	if cart.Payment != nil {
		doc.Payment = &cartPaymentDocument{
			Method:              strings.TrimSpace(cart.Payment.Method),
			PurchaseOrderNumber: strings.TrimSpace(cart.Payment.PurchaseOrderNumber),
		}
	}
	return doc
}

func encodeCartItem(item domain.CartItem) cartItemDocument {
	doc := cartItemDocument{
		ID:              item.ID,
		ParentItemID:    item.ParentItemID,
		Product:         encodeProduct(item.Product),
		Quantity:        item.Quantity.String(),
		SelectedOptions: append([]string(nil), item.SelectedOptions...),
		Deleted:         item.Deleted,
		CreatedAt:       item.CreatedAt.UTC(),
	}
	for _, option := range item.EnteredOptions {
		doc.EnteredOptions = append(doc.EnteredOptions, enteredOptionDocument{UID: option.UID, Value: option.Value})
	}
	return doc
}

func encodeAddress(address domain.CartAddress) cartAddressDocument {
	doc := cartAddressDocument{
		ID:                 address.ID,
		Firstname:          address.Firstname,
		Middlename:         address.Middlename,
		Lastname:           address.Lastname,
		Prefix:             address.Prefix,
		Company:            address.Company,
		Street:             append([]string(nil), address.Street...),
		StreetText:         address.StreetText,
		City:               address.City,
		Region:             address.Region,
		RegionCode:         address.RegionCode,
		RegionID:           address.RegionID,
		Postcode:           address.Postcode,
		CountryCode:        address.CountryCode,
		CountryID:          address.CountryID,
		Telephone:          address.Telephone,
		Fax:                address.Fax,
		VatID:              address.VatID,
		SaveInAddressBook:  address.SaveInAddressBook,
		SameAsBilling:      address.SameAsBilling,
		CustomerAddressID:  address.CustomerAddressID,
		CustomerNotes:      address.CustomerNotes,
		PickupLocationCode: address.PickupLocationCode,
		ShippingMethod:     address.ShippingMethod,
	}
	if !address.ShippingAmount.IsZero() {
		doc.ShippingAmount = address.ShippingAmount.String()
	}
	if address.RegionRef != nil {
		doc.RegionRef = &regionDocument{ID: address.RegionRef.ID, Code: address.RegionRef.Code, Name: address.RegionRef.Name}
	}
	return doc
}

func (d cartDocument) toDomain(id string) (domain.Cart, error) {
	grandTotal, err := parseDecimal(d.GrandTotal)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("grand total: %w", err)
	}
	cart := domain.Cart{
		ID:            id,
		MaskedID:      d.MaskedID,
		StoreID:       d.StoreID,
		CustomerID:    d.CustomerID,
		CustomerEmail: d.CustomerEmail,
		Currency:      d.Currency,
		IsVirtual:     d.IsVirtual,
		IsActive:      d.IsActive,
		GrandTotal:    grandTotal,
		CouponCode:    d.CouponCode,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, itemDoc := range d.Items {
		item, err := itemDoc.toDomain()
		if err != nil {
			return domain.Cart{}, err
		}
		cart.Items = append(cart.Items, item)
	}
	for _, addressDoc := range d.ShippingAddresses {
		address, err := addressDoc.toDomain()
		if err != nil {
			return domain.Cart{}, err
		}
		cart.ShippingAddresses = append(cart.ShippingAddresses, address)
	}
	if d.BillingAddress != nil {
		billing, err := d.BillingAddress.toDomain()
		if err != nil {
			return domain.Cart{}, err
		}
		cart.BillingAddress = &billing
	}
	if d.Payment != nil {
		cart.Payment = &domain.CartPayment{Method: d.Payment.Method, PurchaseOrderNumber: d.Payment.PurchaseOrderNumber}
	}
	return cart, nil
}

func (d cartItemDocument) toDomain() (domain.CartItem, error) {
	quantity, err := parseDecimal(d.Quantity)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("item %s quantity: %w", d.ID, err)
	}
	item := domain.CartItem{
		ID:              d.ID,
		ParentItemID:    d.ParentItemID,
		Product:         d.Product.toDomain(""),
		Quantity:        quantity,
		SelectedOptions: append([]string(nil), d.SelectedOptions...),
		Deleted:         d.Deleted,
		CreatedAt:       d.CreatedAt,
	}
	for _, option := range d.EnteredOptions {
		item.EnteredOptions = append(item.EnteredOptions, domain.EnteredOption{UID: option.UID, Value: option.Value})
	}
	return item, nil
}

func (d cartAddressDocument) toDomain() (domain.CartAddress, error) {
	amount, err := parseDecimal(d.ShippingAmount)
	if err != nil {
		return domain.CartAddress{}, fmt.Errorf("address %s shipping amount: %w", d.ID, err)
	}
	address := domain.CartAddress{
		ID:                 d.ID,
		Firstname:          d.Firstname,
		Middlename:         d.Middlename,
		Lastname:           d.Lastname,
		Prefix:             d.Prefix,
		Company:            d.Company,
		Street:             append([]string(nil), d.Street...),
		StreetText:         d.StreetText,
		City:               d.City,
		Region:             d.Region,
		RegionCode:         d.RegionCode,
		RegionID:           d.RegionID,
		Postcode:           d.Postcode,
		CountryCode:        d.CountryCode,
		CountryID:          d.CountryID,
		Telephone:          d.Telephone,
		Fax:                d.Fax,
		VatID:              d.VatID,
		SaveInAddressBook:  d.SaveInAddressBook,
		SameAsBilling:      d.SameAsBilling,
		CustomerAddressID:  d.CustomerAddressID,
		CustomerNotes:      d.CustomerNotes,
		PickupLocationCode: d.PickupLocationCode,
		ShippingMethod:     d.ShippingMethod,
		ShippingAmount:     amount,
	}
	if d.RegionRef != nil {
		address.RegionRef = &domain.Region{ID: d.RegionRef.ID, Code: d.RegionRef.Code, Name: d.RegionRef.Name}
	}
	return address, nil
}

// parseDecimal reads amounts stored as strings. Missing values are zero.
func parseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

var _ repositories.CartRepository = (*CartRepository)(nil)
