package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/cartclone/internal/platform/httpx"
)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routes struct {
	prefix  string
	timeout time.Duration
	global  []func(http.Handler) http.Handler
	health  *HealthHandlers

	carts           RouteRegistrar
	cartMiddlewares []func(http.Handler) http.Handler
}

// Option customises the router before construction.
type Option func(*routes)

// WithMiddlewares appends global middleware after request id, real ip and timeout.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(rt *routes) {
		rt.global = append(rt.global, mw...)
	}
}

// WithHealthHandlers overrides the handlers behind /healthz and /readyz.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(rt *routes) {
		rt.health = h
	}
}

// WithCartRoutes mounts the cart endpoints under /api/v1/carts.
func WithCartRoutes(reg RouteRegistrar) Option {
	return func(rt *routes) {
		rt.carts = reg
	}
}

// WithCartMiddlewares wraps only the /carts group, e.g. optional authentication.
func WithCartMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(rt *routes) {
		rt.cartMiddlewares = append(rt.cartMiddlewares, mw...)
	}
}

// WithRequestTimeout overrides the per-request deadline. Lock waits and
// Firestore transactions must fit inside it.
func WithRequestTimeout(d time.Duration) Option {
	return func(rt *routes) {
		if d > 0 {
			rt.timeout = d
		}
	}
}

// NewRouter builds the HTTP surface: probes at the root and the cart API under /api/v1.
func NewRouter(opts ...Option) chi.Router {
	rt := routes{prefix: apiPrefix, timeout: requestTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&rt)
		}
	}
	if rt.health == nil {
		rt.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(rt.timeout))
	for _, mw := range rt.global {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(routeNotFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)

	r.Route(rt.prefix+"/carts", rt.mountCarts)
	return r
}

func (rt routes) mountCarts(group chi.Router) {
	for _, mw := range rt.cartMiddlewares {
		if mw != nil {
			group.Use(mw)
		}
	}
	if rt.carts == nil {
		// Probes stay up while the cart services are not wired.
		group.HandleFunc("/*", cartsUnavailable)
		group.HandleFunc("/", cartsUnavailable)
		return
	}
	rt.carts(group)
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", r.URL.Path), http.StatusNotFound))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path), http.StatusMethodNotAllowed))
}

func cartsUnavailable(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("carts_unavailable", "cart routes are not configured", http.StatusServiceUnavailable))
}
