package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/cartclone/internal/platform/config"
	"github.com/hanko-field/cartclone/internal/platform/lock"
	"github.com/hanko-field/cartclone/internal/platform/observability"
	"github.com/hanko-field/cartclone/internal/repositories"
	"github.com/hanko-field/cartclone/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Clones services.CartCloneService
	Items  services.CartItemService
}

// Container wires repositories, services, and shared infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Locker       lock.Locker
	Services     Services

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Option customises container assembly.
type Option func(*containerOptions)

type containerOptions struct {
	logger    *zap.Logger
	locker    lock.Locker
	publisher services.CloneEventPublisher
	clock     func() time.Time
	closers   []closer
}

// WithLogger sets the base logger used for service events outside a request.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLocker supplies the per-cart lock backend. Without it only the memory backend can be built.
func WithLocker(locker lock.Locker) Option {
	return func(o *containerOptions) {
		if locker != nil {
			o.locker = locker
		}
	}
}

// WithPublisher sets the cart.cloned event sink.
func WithPublisher(publisher services.CloneEventPublisher) Option {
	return func(o *containerOptions) {
		if publisher != nil {
			o.publisher = publisher
		}
	}
}

// WithClock injects a custom clock primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithCloser registers a hook released by Container.Close, in reverse registration order.
func WithCloser(name string, fn func(context.Context) error) Option {
	return func(o *containerOptions) {
		if fn != nil {
			o.closers = append(o.closers, closer{name: name, fn: fn})
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring goes through Build,
// while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	if options.locker == nil {
		if cfg.Lock.Backend != "" && cfg.Lock.Backend != config.LockBackendMemory {
			return nil, fmt.Errorf("lock backend %q requires an explicit locker", cfg.Lock.Backend)
		}
		options.locker = lock.NewMemoryLocker(cfg.Lock.Wait)
	}

	svc, err := buildServices(ctx, reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Locker:       options.locker,
		Services:     svc,
		closers:      options.closers,
	}, nil
}

// Close releases registered clients and then the repository registry.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.closers[i].name, err))
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close repositories: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, opts containerOptions) (Services, error) {
	eventLogger := observability.EventLogger(opts.logger.Named("cart_clone"))
	locker := opts.locker

	store, err := services.NewCartStore(services.CartStoreDeps{
		Carts:           reg.Carts(),
		Products:        reg.Products(),
		Coupons:         reg.Coupons(),
		StoreID:         cfg.Cart.StoreID,
		DefaultCurrency: cfg.Cart.DefaultCurrency,
		Clock:           opts.clock,
		Logger:          eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart store: %w", err)
	}

	schema := services.NewAddressSchema()
	guard := services.NewCheckoutPolicy(cfg.Checkout.AllowGuest)

	rates, err := services.NewShippingRateTable(reg.ShippingRates())
	if err != nil {
		return Services{}, fmt.Errorf("build shipping rate table: %w", err)
	}
	catalog, err := services.NewPaymentCatalog(reg.PaymentMethods(), cfg.Cart.StoreID)
	if err != nil {
		return Services{}, fmt.Errorf("build payment catalog: %w", err)
	}

	addresses, err := services.NewAddressTransfer(services.AddressTransferDeps{
		Extractor: schema,
		Validator: schema,
		Resolver:  store,
		Mutator:   store,
		Guard:     guard,
		Locker:    locker,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build address transfer: %w", err)
	}

	shipping, err := services.NewShippingMethodSelector(services.ShippingMethodSelectorDeps{
		Addresses:  addresses,
		Calculator: rates,
		Converter:  services.NewTaxedRateConverter(cfg.Cart.TaxRate),
		Resolver:   store,
		Mutator:    store,
		Guard:      guard,
		Locker:     locker,
		Logger:     eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping method selector: %w", err)
	}

	payments, err := services.NewPaymentMethodSelector(services.PaymentMethodSelectorDeps{
		Catalog:             catalog,
		Shipping:            services.CartShippingInfo{},
		Resolver:            store,
		Mutator:             store,
		Guard:               guard,
		Locker:              locker,
		FreeShippingCarrier: cfg.Cart.FreeShippingCarrier,
		FreePaymentCode:     cfg.Cart.FreePaymentCode,
		Logger:              eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment method selector: %w", err)
	}

	emails, err := services.NewEmailTransfer(services.EmailTransferDeps{
		Resolver:  store,
		Guard:     guard,
		Persister: store,
		Locker:    locker,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build email transfer: %w", err)
	}

	coupons, err := services.NewCouponTransfer(services.CouponTransferDeps{
		Coupons:  store,
		Resolver: store,
		Locker:   locker,
		Logger:   eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon transfer: %w", err)
	}

	selector := services.NewLineItemSelector()

	clones, err := services.NewCartCloneService(services.CartCloneServiceDeps{
		Factory:   store,
		Resolver:  store,
		Items:     store,
		Selector:  selector,
		Addresses: addresses,
		Shipping:  shipping,
		Payments:  payments,
		Emails:    emails,
		Coupons:   coupons,
		Locker:    locker,
		Publisher: opts.publisher,
		Logger:    eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart clone service: %w", err)
	}

	items, err := services.NewCartItemService(services.CartItemServiceDeps{
		Resolver: store,
		Selector: selector,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart item service: %w", err)
	}

	return Services{Clones: clones, Items: items}, nil
}
