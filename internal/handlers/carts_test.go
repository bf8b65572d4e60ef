package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/cartclone/internal/domain"
	"github.com/hanko-field/cartclone/internal/platform/auth"
	"github.com/hanko-field/cartclone/internal/platform/observability"
	"github.com/hanko-field/cartclone/internal/services"
)

type stubCloneService struct {
	result services.CloneResult
	err    error
	calls  []services.CloneCartCommand
}

func (s *stubCloneService) CloneCart(ctx context.Context, cmd services.CloneCartCommand) (services.CloneResult, error) {
	s.calls = append(s.calls, cmd)
	return s.result, s.err
}

type stubCartResolver struct {
	carts  map[string]domain.Cart
	caller domain.Caller
}

func (s *stubCartResolver) ResolveCartForCaller(ctx context.Context, maskedID string, caller domain.Caller) (domain.Cart, error) {
	s.caller = caller
	cart, ok := s.carts[maskedID]
	if !ok {
		return domain.Cart{}, fmt.Errorf("%w: cart %s", services.ErrCloneNotFound, maskedID)
	}
	return cart, nil
}

type stubVerifier struct {
	token *firebaseauth.Token
}

func (s stubVerifier) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	return s.token, nil
}

func newCartRouter(t *testing.T, clones services.CartCloneService, resolver services.CartResolver, opts ...CartHandlersOption) http.Handler {
	t.Helper()
	var items services.CartItemService
	if resolver != nil {
		svc, err := services.NewCartItemService(services.CartItemServiceDeps{Resolver: resolver})
		if err != nil {
			t.Fatalf("NewCartItemService: %v", err)
		}
		items = svc
	}
	authn := auth.NewAuthenticator(stubVerifier{token: &firebaseauth.Token{
		UID:    "customer-7",
		Claims: map[string]interface{}{"store_id": "osaka", "locale": "ja-JP"},
	}})
	handlers := NewCartHandlers(clones, items, "default", opts...)
	return NewRouter(
		WithMiddlewares(observability.LocaleMiddleware),
		WithCartMiddlewares(authn.OptionalFirebaseAuth),
		WithCartRoutes(handlers.Routes),
	)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestCloneCartReturnsCreatedCart(t *testing.T) {
	svc := &stubCloneService{result: services.CloneResult{
		CartID:       "new-mask",
		SourceCartID: "src-mask",
		Stage:        domain.CloneStageDone,
		ItemErrors:   []domain.LineItemError{{Code: "PRODUCT_NOT_FOUND", Message: "gone", Position: 1}},
	}}
	router := newCartRouter(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/src-mask:clone", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["cart_id"] != "new-mask" || body["stage"] != "done" {
		t.Fatalf("unexpected body %v", body)
	}
	itemErrors, ok := body["item_errors"].([]any)
	if !ok || len(itemErrors) != 1 {
		t.Fatalf("expected one item error, got %v", body["item_errors"])
	}
	first := itemErrors[0].(map[string]any)
	if first["code"] != "PRODUCT_NOT_FOUND" || first["position"] != float64(1) {
		t.Fatalf("unexpected item error %v", first)
	}

	if len(svc.calls) != 1 {
		t.Fatalf("expected one clone call, got %d", len(svc.calls))
	}
	cmd := svc.calls[0]
	if cmd.SourceCartID != "src-mask" {
		t.Fatalf("expected source src-mask, got %q", cmd.SourceCartID)
	}
	if !cmd.Caller.IsGuest() || cmd.Caller.StoreID != "default" || cmd.Caller.Locale != "en-US" {
		t.Fatalf("unexpected guest caller %+v", cmd.Caller)
	}
}

func TestCloneCartEmptyItemErrorsEncodeAsArray(t *testing.T) {
	svc := &stubCloneService{result: services.CloneResult{CartID: "new", Stage: domain.CloneStageDone}}
	router := newCartRouter(t, svc, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/src:clone", nil))

	body := decodeBody(t, rr)
	if items, ok := body["item_errors"].([]any); !ok || len(items) != 0 {
		t.Fatalf("expected empty item_errors array, got %#v", body["item_errors"])
	}
}

func TestCloneCartUsesSignedInIdentity(t *testing.T) {
	svc := &stubCloneService{result: services.CloneResult{CartID: "new", Stage: domain.CloneStageDone}}
	router := newCartRouter(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/src:clone", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Accept-Language", "en")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	caller := svc.calls[0].Caller
	if caller.UserID != "customer-7" || caller.StoreID != "osaka" || caller.Locale != "ja-JP" {
		t.Fatalf("unexpected caller %+v", caller)
	}
}

func TestCloneCartTreatsAnonymousSessionAsGuest(t *testing.T) {
	svc := &stubCloneService{result: services.CloneResult{CartID: "new", Stage: domain.CloneStageDone}}
	authn := auth.NewAuthenticator(stubVerifier{token: &firebaseauth.Token{
		UID:      "anon-42",
		Claims:   map[string]interface{}{"store_id": "osaka", "locale": "ja-JP"},
		Firebase: firebaseauth.FirebaseInfo{SignInProvider: "anonymous"},
	}})
	router := NewRouter(
		WithCartMiddlewares(authn.OptionalFirebaseAuth),
		WithCartRoutes(NewCartHandlers(svc, nil, "default").Routes),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/src:clone", nil)
	req.Header.Set("Authorization", "Bearer anon")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	caller := svc.calls[0].Caller
	if !caller.IsGuest() || caller.StoreID != "default" || caller.Locale != "ja-JP" {
		t.Fatalf("expected guest caller with claim locale, got %+v", caller)
	}
}

func TestCloneCartErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid input", err: fmt.Errorf("%w: bad", services.ErrCloneInvalidInput), wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "not found", err: fmt.Errorf("%w: gone", services.ErrCloneNotFound), wantStatus: http.StatusNotFound, wantCode: "cart_not_found"},
		{name: "checkout not allowed", err: services.ErrCheckoutNotAllowed, wantStatus: http.StatusForbidden, wantCode: "checkout_not_allowed"},
		{name: "persistence", err: fmt.Errorf("%w: boom", services.ErrClonePersistence), wantStatus: http.StatusInternalServerError, wantCode: "cart_not_saved"},
		{name: "unavailable", err: fmt.Errorf("%w: redis down", services.ErrCloneUnavailable), wantStatus: http.StatusServiceUnavailable, wantCode: "service_unavailable"},
		{name: "configuration", err: services.ErrCloneConfiguration, wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newCartRouter(t, &stubCloneService{err: tc.err}, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/src:clone", nil))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			body := decodeBody(t, rr)
			if body["error"] != tc.wantCode {
				t.Fatalf("expected code %s, got %v", tc.wantCode, body["error"])
			}
			if body["status"] != float64(tc.wantStatus) {
				t.Fatalf("expected status member %d, got %v", tc.wantStatus, body["status"])
			}
		})
	}
}

func TestCloneCartStageFailureReportsPartialCart(t *testing.T) {
	err := &services.CloneError{
		Stage:  domain.CloneStageEmailSet,
		CartID: "half-done",
		Err:    fmt.Errorf("%w: save failed", services.ErrClonePersistence),
	}
	router := newCartRouter(t, &stubCloneService{err: err}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/src:clone", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["cart_id"] != "half-done" || body["stage"] != string(domain.CloneStageEmailSet) {
		t.Fatalf("expected partial cart details, got %v", body)
	}
	if body["error"] != "cart_not_saved" {
		t.Fatalf("expected cart_not_saved, got %v", body["error"])
	}
}

func TestCloneCartRateLimit(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubCloneService{result: services.CloneResult{CartID: "new", Stage: domain.CloneStageDone}}
	router := newCartRouter(t, svc, nil, WithCloneRateLimit(1, time.Minute, func() time.Time { return now }))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/src:clone", nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 201 then 429, got %v", codes)
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected one clone call, got %d", len(svc.calls))
	}
}

func TestListItemsReturnsSortedPage(t *testing.T) {
	resolver := &stubCartResolver{carts: map[string]domain.Cart{
		"src": {
			ID:       "1",
			MaskedID: "src",
			Items: []domain.CartItem{
				{ID: "10", Product: domain.Product{SKU: "B", Type: domain.ProductType("simple")}, Quantity: decimal.NewFromInt(1)},
				{ID: "11", Product: domain.Product{SKU: "A", Type: domain.ProductType("simple")}, Quantity: decimal.NewFromInt(2)},
				{ID: "12", ParentItemID: "11", Product: domain.Product{SKU: "A-child"}, Quantity: decimal.NewFromInt(2)},
			},
		},
	}}
	router := newCartRouter(t, &stubCloneService{}, resolver)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/carts/src/items?sort=SKU&order=desc", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body cartItemsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalCount != 2 || len(body.Items) != 2 {
		t.Fatalf("expected two visible items, got %+v", body)
	}
	if body.Items[0].SKU != "B" || body.Items[1].SKU != "A" {
		t.Fatalf("expected descending sku order, got %+v", body.Items)
	}
	if body.Items[1].Quantity != "2" {
		t.Fatalf("expected quantity 2, got %s", body.Items[1].Quantity)
	}
	if body.Items[0].TypeLabel != "Simple Product" {
		t.Fatalf("expected simple product label, got %q", body.Items[0].TypeLabel)
	}
	if body.PageInfo.PageSize != 20 || body.PageInfo.CurrentPage != 1 || body.PageInfo.TotalPages != 1 {
		t.Fatalf("unexpected page info %+v", body.PageInfo)
	}
}

func TestListItemsLocalizesUnsupportedSort(t *testing.T) {
	resolver := &stubCartResolver{carts: map[string]domain.Cart{"src": {ID: "1", MaskedID: "src"}}}
	router := newCartRouter(t, &stubCloneService{}, resolver)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts/src/items?sort=price", nil)
	req.Header.Set("Accept-Language", "ja-JP")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["message"] != `並び替え項目 "price" には対応していません。` {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if resolver.caller.Locale != "ja-JP" {
		t.Fatalf("expected resolver to receive ja-JP locale, got %q", resolver.caller.Locale)
	}
}

func TestListItemsUnknownCart(t *testing.T) {
	router := newCartRouter(t, &stubCloneService{}, &stubCartResolver{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/carts/missing/items", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCartHandlersWithoutServices(t *testing.T) {
	router := NewRouter(WithCartRoutes(NewCartHandlers(nil, nil, "default").Routes))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/src:clone", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
