package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/cartclone/internal/domain"
	"github.com/hanko-field/cartclone/internal/platform/lock"
	"github.com/hanko-field/cartclone/internal/repositories"
)

type testRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *testRepoError) Error() string       { return e.msg }
func (e *testRepoError) IsNotFound() bool    { return e.notFound }
func (e *testRepoError) IsConflict() bool    { return e.conflict }
func (e *testRepoError) IsUnavailable() bool { return e.unavailable }

func repoNotFound(what string) error {
	return &testRepoError{msg: what + " not found", notFound: true}
}

func strPtr(v string) *string {
	return &v
}

func qty(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// memCartRepository keeps carts in memory and copies snapshots on every read and write.
type memCartRepository struct {
	mu        sync.Mutex
	carts     map[string]domain.Cart
	mutations int
	findErr   error
}

var _ repositories.CartRepository = (*memCartRepository)(nil)

func newMemCartRepository(carts ...domain.Cart) *memCartRepository {
	repo := &memCartRepository{carts: map[string]domain.Cart{}}
	for _, cart := range carts {
		repo.carts[cart.ID] = copyCart(cart)
	}
	return repo
}

func (r *memCartRepository) Insert(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.carts {
		if existing.MaskedID == cart.MaskedID {
			return domain.Cart{}, &testRepoError{msg: "masked id taken", conflict: true}
		}
	}
	r.carts[cart.ID] = copyCart(cart)
	return copyCart(cart), nil
}

func (r *memCartRepository) FindByMaskedID(_ context.Context, maskedID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return domain.Cart{}, r.findErr
	}
	for _, cart := range r.carts {
		if cart.MaskedID == maskedID {
			return copyCart(cart), nil
		}
	}
	return domain.Cart{}, repoNotFound("cart")
}

func (r *memCartRepository) FindByID(_ context.Context, cartID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[cartID]
	if !ok {
		return domain.Cart{}, repoNotFound("cart")
	}
	return copyCart(cart), nil
}

func (r *memCartRepository) Mutate(_ context.Context, cartID string, fn repositories.CartMutation) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[cartID]
	if !ok {
		return domain.Cart{}, repoNotFound("cart")
	}
	working := copyCart(cart)
	if err := fn(&working); err != nil {
		return domain.Cart{}, err
	}
	r.mutations++
	r.carts[cartID] = copyCart(working)
	return working, nil
}

func (r *memCartRepository) Replace(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[cart.ID]; !ok {
		return domain.Cart{}, repoNotFound("cart")
	}
	r.carts[cart.ID] = copyCart(cart)
	return copyCart(cart), nil
}

func (r *memCartRepository) byMaskedID(t *testing.T, maskedID string) domain.Cart {
	t.Helper()
	cart, err := r.FindByMaskedID(context.Background(), maskedID)
	if err != nil {
		t.Fatalf("expected cart %q to exist: %v", maskedID, err)
	}
	return cart
}

func (r *memCartRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

func copyCart(cart domain.Cart) domain.Cart {
	out := cart
	out.Items = append([]domain.CartItem(nil), cart.Items...)
	out.ShippingAddresses = nil
	for _, address := range cart.ShippingAddresses {
		out.ShippingAddresses = append(out.ShippingAddresses, copyAddress(address))
	}
	if cart.BillingAddress != nil {
		billing := copyAddress(*cart.BillingAddress)
		out.BillingAddress = &billing
	}
	if cart.Payment != nil {
		payment := *cart.Payment
		out.Payment = &payment
	}
	return out
}

func copyAddress(address domain.CartAddress) domain.CartAddress {
	out := address
	out.Street = append([]string(nil), address.Street...)
	return out
}

type memProductRepository struct {
	products map[string]domain.Product
}

func (r *memProductRepository) FindBySKU(_ context.Context, sku string) (domain.Product, error) {
	product, ok := r.products[sku]
	if !ok {
		return domain.Product{}, repoNotFound("product")
	}
	return product, nil
}

type memCouponRepository struct {
	coupons map[string]domain.Coupon
}

func (r *memCouponRepository) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	coupon, ok := r.coupons[code]
	if !ok {
		return domain.Coupon{}, repoNotFound("coupon")
	}
	return coupon, nil
}

type memPaymentMethodRepository struct {
	methods []domain.PaymentMethodConfig
}

func (r *memPaymentMethodRepository) ListActive(_ context.Context, _ string) ([]domain.PaymentMethodConfig, error) {
	return append([]domain.PaymentMethodConfig(nil), r.methods...), nil
}

func (r *memPaymentMethodRepository) FindByCode(_ context.Context, _ string, code string) (domain.PaymentMethodConfig, error) {
	for _, method := range r.methods {
		if method.Code == code {
			return method, nil
		}
	}
	return domain.PaymentMethodConfig{}, repoNotFound("payment method")
}

type memShippingRateRepository struct {
	rates []domain.ShippingRateConfig
}

func (r *memShippingRateRepository) ListByCountry(_ context.Context, country string) ([]domain.ShippingRateConfig, error) {
	var rows []domain.ShippingRateConfig
	for _, rate := range r.rates {
		for _, candidate := range rate.Countries {
			if candidate == country {
				rows = append(rows, rate)
				break
			}
		}
	}
	return rows, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []CartClonedEvent
	err    error
}

func (p *recordingPublisher) PublishCartCloned(_ context.Context, event CartClonedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// testPipeline wires the repository backed collaborators around in-memory repositories.
type testPipeline struct {
	carts     *memCartRepository
	products  *memProductRepository
	coupons   *memCouponRepository
	payments  *memPaymentMethodRepository
	rates     *memShippingRateRepository
	store     *CartStore
	locker    *lock.MemoryLocker
	publisher *recordingPublisher
	service   CartCloneService
}

func newTestPipeline(t *testing.T, carts ...domain.Cart) *testPipeline {
	t.Helper()

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	var seq int
	var seqMu sync.Mutex
	nextID := func(prefix string) func() string {
		return func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("%s-%03d", prefix, seq)
		}
	}

	p := &testPipeline{
		carts: newMemCartRepository(carts...),
		products: &memProductRepository{products: map[string]domain.Product{
			"A":       {ID: "p-a", Type: domain.ProductTypeSimple, SKU: "A", OwnSKU: "A", Name: "Stamp A"},
			"B":       {ID: "p-b", Type: domain.ProductTypeSimple, SKU: "B", OwnSKU: "B", Name: "Stamp B"},
			"SHIRT-M": {ID: "p-m", Type: domain.ProductTypeSimple, SKU: "SHIRT-M", OwnSKU: "SHIRT-M", Name: "Shirt M"},
		}},
		coupons: &memCouponRepository{coupons: map[string]domain.Coupon{
			"SPRING10": {Code: "SPRING10", Active: true},
		}},
		payments: &memPaymentMethodRepository{methods: []domain.PaymentMethodConfig{
			{Code: "checkmo", Title: "Check / Money order", Active: true, SortOrder: 1},
			{Code: "purchaseorder", Title: "Purchase Order", Active: true, SortOrder: 2},
		}},
		rates: &memShippingRateRepository{rates: []domain.ShippingRateConfig{
			{CarrierCode: "flatrate", MethodCode: "flatrate", CarrierTitle: "Flat Rate", MethodTitle: "Fixed", Price: decimal.NewFromInt(500), Countries: []string{"JP", "US"}, Active: true},
			{CarrierCode: "tablerate", MethodCode: "best_way", CarrierTitle: "Best Way", MethodTitle: "Table Rate", Price: decimal.NewFromInt(800), Countries: []string{"JP"}, Active: true},
		}},
		locker:    lock.NewMemoryLocker(0),
		publisher: &recordingPublisher{},
	}

	store, err := NewCartStore(CartStoreDeps{
		Carts:           p.carts,
		Products:        p.products,
		Coupons:         p.coupons,
		StoreID:         "default",
		DefaultCurrency: "JPY",
		Clock:           func() time.Time { return now },
		IDGenerator:     nextID("id"),
		MaskGenerator:   nextID("masked"),
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart store: %v", err)
	}
	p.store = store

	service, err := NewCartCloneService(CartCloneServiceDeps{
		Factory:   store,
		Resolver:  store,
		Items:     store,
		Addresses: mustAddressTransfer(t, p),
		Shipping:  mustShippingSelector(t, p),
		Payments:  mustPaymentSelector(t, p),
		Emails:    mustEmailTransfer(t, p),
		Coupons:   mustCouponTransfer(t, p),
		Locker:    p.locker,
		Publisher: p.publisher,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing clone service: %v", err)
	}
	p.service = service
	return p
}

func validAddress(id string) domain.CartAddress {
	return domain.CartAddress{
		ID:          id,
		Firstname:   "Hanako",
		Lastname:    "Yamada",
		Street:      []string{"1-2-3 Jingumae", "Apt 4"},
		City:        "Shibuya",
		RegionCode:  "13",
		RegionID:    13,
		Postcode:    "150-0001",
		CountryCode: "JP",
		Telephone:   "03-1234-5678",
	}
}

func simpleItem(id, sku string, quantity int64) domain.CartItem {
	return domain.CartItem{
		ID:       id,
		Product:  domain.Product{ID: "p-" + sku, Type: domain.ProductTypeSimple, SKU: sku, OwnSKU: sku},
		Quantity: qty(quantity),
	}
}

func sourceCart() domain.Cart {
	return domain.Cart{
		ID:       "src-1",
		MaskedID: "source-masked",
		StoreID:  "default",
		Currency: "JPY",
		IsActive: true,
	}
}
