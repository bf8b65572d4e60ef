package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/cartclone/internal/domain"
	"github.com/hanko-field/cartclone/internal/platform/lock"
)

type stubPaymentCatalog struct {
	methods  []PaymentMethodOption
	titles   map[string]string
	listErr  error
	titleErr error
}

func (s *stubPaymentCatalog) AvailablePaymentMethods(context.Context, Cart) ([]PaymentMethodOption, error) {
	return s.methods, s.listErr
}

func (s *stubPaymentCatalog) PaymentMethodTitle(_ context.Context, _ Cart, code string) (string, error) {
	if s.titleErr != nil {
		return "", s.titleErr
	}
	return s.titles[code], nil
}

type stubShippingInfo struct {
	selected SelectedShipping
	err      error
}

func (s *stubShippingInfo) SelectedShipping(context.Context, Cart) (SelectedShipping, error) {
	return s.selected, s.err
}

var standardMethods = []PaymentMethodOption{
	{Code: "checkmo", Title: "Check / Money order"},
	{Code: "Simple free", Title: "No Payment Information Required"},
	{Code: "purchaseorder", Title: "Purchase Order"},
}

func newStubPaymentSelector(t *testing.T, catalog PaymentMethodCatalog, info ShippingInfoReader, mutator CartMutator, guard CheckoutGuard) *PaymentMethodSelector {
	t.Helper()
	selector, err := NewPaymentMethodSelector(PaymentMethodSelectorDeps{
		Catalog:  catalog,
		Shipping: info,
		Resolver: &stubResolver{},
		Mutator:  mutator,
		Guard:    guard,
		Locker:   lock.NewMemoryLocker(0),
	})
	if err != nil {
		t.Fatalf("unexpected error constructing selector: %v", err)
	}
	return selector
}

func TestPaymentSelectorFreeOrderOffersOnlyFreeMethod(t *testing.T) {
	info := &stubShippingInfo{selected: SelectedShipping{CarrierCode: "freeshipping", MethodCode: "freeshipping", BaseAmount: decimal.Zero}}
	selector := newStubPaymentSelector(t, &stubPaymentCatalog{methods: standardMethods}, info, &stubMutator{}, &stubGuard{})

	methods, err := selector.AvailableMethods(context.Background(), Cart{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(methods) != 1 || methods[0].Code != "Simple free" {
		t.Fatalf("expected only the free method, got %+v", methods)
	}
}

func TestPaymentSelectorListsAllMethodsOtherwise(t *testing.T) {
	cases := map[string]*stubShippingInfo{
		"paid shipping":   {selected: SelectedShipping{CarrierCode: "freeshipping", BaseAmount: decimal.NewFromInt(500)}},
		"other carrier":   {selected: SelectedShipping{CarrierCode: "flatrate", BaseAmount: decimal.Zero}},
		"unreadable info": {err: ErrNoShippingMethod},
	}
	for name, info := range cases {
		selector := newStubPaymentSelector(t, &stubPaymentCatalog{methods: standardMethods}, info, &stubMutator{}, &stubGuard{})
		methods, err := selector.AvailableMethods(context.Background(), Cart{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if len(methods) != len(standardMethods) {
			t.Fatalf("%s: expected all methods, got %+v", name, methods)
		}
	}
}

func TestPaymentSelectorNegativeTotalOffersNothing(t *testing.T) {
	info := &stubShippingInfo{selected: SelectedShipping{CarrierCode: "flatrate", BaseAmount: decimal.NewFromInt(-5)}}
	selector := newStubPaymentSelector(t, &stubPaymentCatalog{methods: standardMethods}, info, &stubMutator{}, &stubGuard{})

	methods, err := selector.AvailableMethods(context.Background(), Cart{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(methods) != 0 {
		t.Fatalf("expected no methods, got %+v", methods)
	}
}

func TestPaymentSelectorTransferFailsWithoutAvailableMethods(t *testing.T) {
	mutator := &stubMutator{}
	selector := newStubPaymentSelector(t, &stubPaymentCatalog{}, &stubShippingInfo{}, mutator, &stubGuard{})
	src := sourceCart()
	src.Payment = &domain.CartPayment{Method: "checkmo"}

	err := selector.Transfer(context.Background(), CloneRequest{Caller: guestCaller, TargetCartID: "dst"}, src)
	if !errors.Is(err, ErrCloneInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if msg, _ := UserMessage(err); msg != `Required parameter "code" for "payment_method" is missing.` {
		t.Fatalf("unexpected message %q", msg)
	}
	if len(mutator.payments) != 0 {
		t.Fatalf("expected no payment mutation")
	}
}

func TestPaymentSelectorTransferFailsForUnknownMethod(t *testing.T) {
	mutator := &stubMutator{}
	selector := newStubPaymentSelector(t, &stubPaymentCatalog{methods: standardMethods}, &stubShippingInfo{}, mutator, &stubGuard{})
	src := sourceCart()
	src.Payment = &domain.CartPayment{Method: "braintree"}

	err := selector.Transfer(context.Background(), CloneRequest{Caller: guestCaller, TargetCartID: "dst"}, src)
	if !errors.Is(err, ErrCloneInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if msg, _ := UserMessage(err); msg != `Required parameter "code" for "payment_method" to clone is missing.` {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPaymentSelectorTransferSetsMethod(t *testing.T) {
	mutator := &stubMutator{}
	guard := &stubGuard{}
	catalog := &stubPaymentCatalog{methods: standardMethods, titleErr: errors.New("method instance missing")}
	selector := newStubPaymentSelector(t, catalog, &stubShippingInfo{}, mutator, guard)
	src := sourceCart()
	src.Payment = &domain.CartPayment{Method: "purchaseorder", PurchaseOrderNumber: "PO-42"}

	if err := selector.Transfer(context.Background(), CloneRequest{Caller: guestCaller, TargetCartID: "dst"}, src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if guard.calls != 1 {
		t.Fatalf("expected checkout check, got %d calls", guard.calls)
	}
	if len(mutator.payments) != 1 {
		t.Fatalf("expected payment to be set")
	}
	got := mutator.payments[0]
	if got.Code != "purchaseorder" || got.PurchaseOrderNumber != "PO-42" || got.Title != "" {
		t.Fatalf("unexpected payment directive %+v", got)
	}
}
