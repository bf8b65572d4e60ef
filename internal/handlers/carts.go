package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanko-field/cartclone/internal/platform/auth"
	"github.com/hanko-field/cartclone/internal/platform/httpx"
	"github.com/hanko-field/cartclone/internal/platform/requestctx"
	"github.com/hanko-field/cartclone/internal/services"
)

// CartHandlers exposes the cart clone endpoints. Both routes accept guests;
// a verified Firebase identity, when present, makes the caller a customer.
type CartHandlers struct {
	clones   services.CartCloneService
	items    services.CartItemService
	storeID  string
	limiter  rateLimiter
	clientIP func(*http.Request) string
}

// CartHandlersOption customises CartHandlers.
type CartHandlersOption func(*CartHandlers)

// WithCloneRateLimit caps clone requests per caller within window.
func WithCloneRateLimit(limit int, window time.Duration, clock func() time.Time) CartHandlersOption {
	return func(h *CartHandlers) {
		h.limiter = newWindowLimiter(limit, window, clock)
	}
}

// NewCartHandlers constructs cart handlers. storeID is used for callers whose
// identity does not name a store.
func NewCartHandlers(clones services.CartCloneService, items services.CartItemService, storeID string, opts ...CartHandlersOption) *CartHandlers {
	h := &CartHandlers{
		clones:   clones,
		items:    items,
		storeID:  strings.TrimSpace(storeID),
		clientIP: remoteHost,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /carts endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{cartId}:clone", h.cloneCart)
	r.Get("/{cartId}/items", h.listItems)
}

type lineItemErrorPayload struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Position int    `json:"position"`
}

type cloneCartResponse struct {
	CartID     string                 `json:"cart_id"`
	Stage      string                 `json:"stage"`
	ItemErrors []lineItemErrorPayload `json:"item_errors"`
}

func (h *CartHandlers) cloneCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clones == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	caller := h.callerFromRequest(r)
	if h.limiter != nil && !h.limiter.Allow(h.rateLimitKey(r, caller)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many clone requests", http.StatusTooManyRequests))
		return
	}

	result, err := h.clones.CloneCart(ctx, services.CloneCartCommand{
		SourceCartID: chi.URLParam(r, "cartId"),
		Caller:       caller,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	payload := cloneCartResponse{
		CartID:     result.CartID,
		Stage:      string(result.Stage),
		ItemErrors: make([]lineItemErrorPayload, 0, len(result.ItemErrors)),
	}
	for _, itemErr := range result.ItemErrors {
		payload.ItemErrors = append(payload.ItemErrors, lineItemErrorPayload{
			Code:     itemErr.Code,
			Message:  itemErr.Message,
			Position: itemErr.Position,
		})
	}
	httpx.WriteJSON(w, http.StatusCreated, payload)
}

type cartItemPayload struct {
	ItemID      string `json:"item_id"`
	SKU         string `json:"sku"`
	Name        string `json:"name,omitempty"`
	ProductType string `json:"product_type"`
	TypeLabel   string `json:"product_type_label"`
	Quantity    string `json:"quantity"`
}

type pageInfoPayload struct {
	PageSize    int `json:"page_size"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

type cartItemsResponse struct {
	Items      []cartItemPayload `json:"items"`
	TotalCount int               `json:"total_count"`
	PageInfo   pageInfoPayload   `json:"page_info"`
}

func (h *CartHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.items == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	page, err := h.items.ListItems(ctx, services.ListCartItemsCommand{
		CartID: chi.URLParam(r, "cartId"),
		Caller: h.callerFromRequest(r),
		Query: services.ItemQuery{
			Paginate:  true,
			SortField: query.Get("sort"),
			SortOrder: query.Get("order"),
		},
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	payload := cartItemsResponse{
		Items:      make([]cartItemPayload, 0, len(page.Items)),
		TotalCount: page.TotalCount,
		PageInfo: pageInfoPayload{
			PageSize:    page.PageInfo.PageSize,
			CurrentPage: page.PageInfo.CurrentPage,
			TotalPages:  page.PageInfo.TotalPages,
		},
	}
	for _, selected := range page.Items {
		payload.Items = append(payload.Items, cartItemPayload{
			ItemID:      selected.Item.ID,
			SKU:         selected.Product.SKU,
			Name:        selected.Product.Name,
			ProductType: string(selected.Product.Type),
			TypeLabel:   selected.Product.Type.Label(),
			Quantity:    selected.Quantity.String(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

// callerFromRequest builds the caller from the optional identity. Claims win
// over the Accept-Language locale and the configured store. Anonymous Firebase
// sessions keep their locale but clone as guests.
func (h *CartHandlers) callerFromRequest(r *http.Request) services.Caller {
	ctx := r.Context()
	caller := services.Caller{
		StoreID: h.storeID,
		Locale:  requestctx.Locale(ctx),
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return caller
	}
	if identity.Locale != "" {
		caller.Locale = identity.Locale
	}
	if identity.Anonymous() {
		return caller
	}
	caller.UserID = strings.TrimSpace(identity.UID)
	if identity.StoreID != "" {
		caller.StoreID = identity.StoreID
	}
	return caller
}

func (h *CartHandlers) rateLimitKey(r *http.Request, caller services.Caller) string {
	if !caller.IsGuest() {
		return "user:" + caller.UserID
	}
	return "ip:" + h.clientIP(r)
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// writeCartError maps service errors onto the JSON envelope. Localized
// messages are passed through; anything else gets a generic message.
func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		status   int
		code     string
		fallback string
	)
	switch {
	case errors.Is(err, services.ErrCloneInvalidInput):
		status, code, fallback = http.StatusBadRequest, "invalid_request", "invalid request"
	case errors.Is(err, services.ErrCloneNotFound):
		status, code, fallback = http.StatusNotFound, "cart_not_found", "cart not found"
	case errors.Is(err, services.ErrCheckoutNotAllowed):
		status, code, fallback = http.StatusForbidden, "checkout_not_allowed", "checkout is not allowed for this cart"
	case errors.Is(err, services.ErrClonePersistence):
		status, code, fallback = http.StatusInternalServerError, "cart_not_saved", "the cart could not be saved"
	case errors.Is(err, services.ErrCloneUnavailable), errors.Is(err, context.DeadlineExceeded):
		status, code, fallback = http.StatusServiceUnavailable, "service_unavailable", "cart service is temporarily unavailable"
	default:
		status, code, fallback = http.StatusInternalServerError, "internal_error", "internal server error"
	}

	message, ok := services.UserMessage(err)
	if !ok || status == http.StatusServiceUnavailable || code == "internal_error" {
		message = fallback
	}

	envelope := httpx.NewError(code, message, status)
	var cloneErr *services.CloneError
	if errors.As(err, &cloneErr) {
		envelope = envelope.WithDetails(map[string]any{
			"cart_id": cloneErr.CartID,
			"stage":   string(cloneErr.Stage),
		})
	}

	if status >= http.StatusInternalServerError {
		requestctx.Logger(ctx).Error("cart request failed", zap.Error(err), zap.Int("status", status))
	}
	httpx.WriteError(ctx, w, envelope)
}
