package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hanko-field/cartclone/internal/platform/i18n"
	"github.com/hanko-field/cartclone/internal/platform/lock"
)

const (
	instrumentationName = "github.com/hanko-field/cartclone/internal/services"

	cloneLoggerEventStarted         = "cart_clone.started"
	cloneLoggerEventStageCompleted  = "cart_clone.stage_completed"
	cloneLoggerEventStageFailed     = "cart_clone.stage_failed"
	cloneLoggerEventItemUnsupported = "cart_clone.item_unsupported"
	cloneLoggerEventItemRejected    = "cart_clone.item_rejected"
	cloneLoggerEventPublishFailed   = "cart_clone.publish_failed"
	cloneLoggerEventCompleted       = "cart_clone.completed"
)

var errCloneTargetIsSource = fmt.Errorf("%w: destination cart matches source cart", ErrCloneConfiguration)

// CartCloneServiceDeps wires the clone pipeline.
type CartCloneServiceDeps struct {
	Factory   GuestCartFactory
	Resolver  CartResolver
	Items     LineItemAdder
	Selector  *LineItemSelector
	Addresses *AddressTransfer
	Shipping  *ShippingMethodSelector
	Payments  *PaymentMethodSelector
	Emails    *EmailTransfer
	Coupons   *CouponTransfer
	Locker    lock.Locker
	Publisher CloneEventPublisher
	Tracer    trace.Tracer
	Meter     metric.Meter
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type cartCloneService struct {
	factory   GuestCartFactory
	resolver  CartResolver
	items     LineItemAdder
	selector  *LineItemSelector
	addresses *AddressTransfer
	shipping  *ShippingMethodSelector
	payments  *PaymentMethodSelector
	emails    *EmailTransfer
	coupons   *CouponTransfer
	locker    lock.Locker
	publisher CloneEventPublisher
	tracer    trace.Tracer
	clones    metric.Int64Counter
	logger    func(context.Context, string, map[string]any)
}

// cloneStep is one stage of the pipeline. run reports false when the stage had
// nothing to do and was skipped.
type cloneStep struct {
	stage CloneStage
	run   func(ctx context.Context, req CloneRequest, source Cart, state *cloneState) (bool, error)
}

// NewCartCloneService constructs the clone orchestrator.
func NewCartCloneService(deps CartCloneServiceDeps) (CartCloneService, error) {
	if deps.Factory == nil || deps.Resolver == nil || deps.Items == nil {
		return nil, errors.New("cart clone service: cart factory, resolver and line item adder are required")
	}
	if deps.Addresses == nil || deps.Shipping == nil || deps.Payments == nil || deps.Emails == nil || deps.Coupons == nil {
		return nil, errors.New("cart clone service: all transfer stages are required")
	}
	if deps.Locker == nil {
		return nil, errors.New("cart clone service: locker is required")
	}

	selector := deps.Selector
	if selector == nil {
		selector = NewLineItemSelector()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	logger := loggerOrNoop(deps.Logger)

	clones, err := meter.Int64Counter(
		"cart_clone_total",
		metric.WithDescription("Count of cart clone attempts by outcome and final stage"),
	)
	if err != nil {
		logger(context.Background(), "cart_clone.metric_unavailable", map[string]any{"error": err.Error()})
	}

	return &cartCloneService{
		factory:   deps.Factory,
		resolver:  deps.Resolver,
		items:     deps.Items,
		selector:  selector,
		addresses: deps.Addresses,
		shipping:  deps.Shipping,
		payments:  deps.Payments,
		emails:    deps.Emails,
		coupons:   deps.Coupons,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		tracer:    tracer,
		clones:    clones,
		logger:    logger,
	}, nil
}

func (s *cartCloneService) CloneCart(ctx context.Context, cmd CloneCartCommand) (CloneResult, error) {
	sourceID := strings.TrimSpace(cmd.SourceCartID)
	if sourceID == "" {
		return CloneResult{}, inputError(cmd.Caller.Locale, i18n.MsgCartIDMissing)
	}

	ctx, span := s.tracer.Start(ctx, "cartclone.CloneCart", trace.WithAttributes(
		attribute.String("cart.source_id", sourceID),
		attribute.Bool("caller.guest", cmd.Caller.IsGuest()),
	))
	defer span.End()

	s.logger(ctx, cloneLoggerEventStarted, map[string]any{
		"sourceCartId": sourceID,
		"callerId":     cmd.Caller.UserID,
	})

	// The source is resolved first so a missing source never leaves an orphan cart.
	source, err := s.resolver.ResolveCartForCaller(ctx, sourceID, cmd.Caller)
	if err != nil {
		err = classifyStageError(err)
		s.finish(ctx, span, CloneStageCreated, err)
		return CloneResult{}, err
	}

	targetID, err := s.factory.CreateEmptyGuestCart(ctx)
	if err != nil {
		err = classifyStageError(err)
		s.finish(ctx, span, CloneStageCreated, err)
		return CloneResult{}, err
	}
	if targetID == sourceID || targetID == source.MaskedID {
		s.finish(ctx, span, CloneStageCreated, errCloneTargetIsSource)
		return CloneResult{}, errCloneTargetIsSource
	}
	span.SetAttributes(attribute.String("cart.target_id", targetID))

	req := CloneRequest{Caller: cmd.Caller, SourceCartID: sourceID, TargetCartID: targetID}
	state := newCloneState()
	result := CloneResult{CartID: targetID, SourceCartID: sourceID, Stage: state.stage}

	for _, step := range s.steps() {
		ran, err := s.runStep(ctx, step, req, source, state)
		if err != nil {
			result.Stage = state.stage
			result.ItemErrors = state.itemErrors
			cloneErr := &CloneError{Stage: step.stage, CartID: targetID, Err: classifyStageError(err)}
			s.finish(ctx, span, state.stage, cloneErr)
			return result, cloneErr
		}
		if ran {
			state.stage = step.stage
		}
	}

	state.stage = CloneStageDone
	result.Stage = state.stage
	result.ItemErrors = state.itemErrors

	s.publish(ctx, CartClonedEvent{
		SourceCartID: sourceID,
		CartID:       targetID,
		ItemCount:    state.itemCount,
		Stage:        state.stage,
		CallerID:     cmd.Caller.UserID,
	})
	s.finish(ctx, span, state.stage, nil)
	return result, nil
}

func (s *cartCloneService) steps() []cloneStep {
	return []cloneStep{
		{stage: CloneStageItemsCopied, run: s.copyItems},
		{stage: CloneStageShippingAddressSet, run: func(ctx context.Context, req CloneRequest, source Cart, _ *cloneState) (bool, error) {
			return true, s.addresses.ApplyShippingAddresses(ctx, req, s.addresses.BuildShippingAddresses(source))
		}},
		{stage: CloneStageBillingAddressSet, run: func(ctx context.Context, req CloneRequest, source Cart, _ *cloneState) (bool, error) {
			return true, s.addresses.ApplyBillingAddress(ctx, req, s.addresses.BuildBillingAddress(source))
		}},
		{stage: CloneStageShippingMethodSet, run: func(ctx context.Context, req CloneRequest, source Cart, _ *cloneState) (bool, error) {
			directives, err := s.shipping.Build(ctx, source)
			if err != nil {
				return false, err
			}
			return true, s.shipping.Apply(ctx, req, directives)
		}},
		{stage: CloneStagePaymentMethodSet, run: func(ctx context.Context, req CloneRequest, source Cart, _ *cloneState) (bool, error) {
			if source.Payment == nil || strings.TrimSpace(source.Payment.Method) == "" {
				return false, nil
			}
			return true, s.payments.Transfer(ctx, req, source)
		}},
		{stage: CloneStageEmailSet, run: func(ctx context.Context, req CloneRequest, source Cart, _ *cloneState) (bool, error) {
			if strings.TrimSpace(source.CustomerEmail) == "" {
				return false, nil
			}
			return true, s.emails.Transfer(ctx, req, source)
		}},
		{stage: CloneStageCouponApplied, run: func(ctx context.Context, req CloneRequest, source Cart, _ *cloneState) (bool, error) {
			code, err := s.coupons.AppliedCode(ctx, source)
			if err != nil {
				return false, err
			}
			if code == "" {
				return false, nil
			}
			return true, s.coupons.Transfer(ctx, req, code)
		}},
	}
}

func (s *cartCloneService) runStep(ctx context.Context, step cloneStep, req CloneRequest, source Cart, state *cloneState) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "cartclone.stage."+string(step.stage))
	defer span.End()

	ran, err := step.run(ctx, req, source, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger(ctx, cloneLoggerEventStageFailed, map[string]any{
			"cartId": req.TargetCartID,
			"stage":  string(step.stage),
			"error":  err.Error(),
		})
		return false, err
	}
	span.SetAttributes(attribute.Bool("stage.skipped", !ran))
	s.logger(ctx, cloneLoggerEventStageCompleted, map[string]any{
		"cartId":  req.TargetCartID,
		"stage":   string(step.stage),
		"skipped": !ran,
	})
	return ran, nil
}

// copyItems submits one add-products request per visible source item while
// holding the destination cart lock. Rejected items are reported, not fatal.
func (s *cartCloneService) copyItems(ctx context.Context, req CloneRequest, source Cart, state *cloneState) (bool, error) {
	page, err := s.selector.Select(&source, ItemQuery{})
	if err != nil {
		return false, err
	}

	for position, selected := range page.Items {
		request, ok := state.dispatcher.Dispatch(selected.Product, selected.Quantity)
		if !ok {
			s.logger(ctx, cloneLoggerEventItemUnsupported, map[string]any{
				"cartId":      req.TargetCartID,
				"sku":         selected.Product.SKU,
				"productType": string(selected.Product.Type),
				"typeLabel":   selected.Product.Type.Label(),
				"knownType":   selected.Product.Type.Known(),
			})
			continue
		}

		added, err := lock.Do(ctx, s.locker, cartLockKey(req.TargetCartID), func(ctx context.Context) (AddProductsResult, error) {
			return s.items.AddLineItems(ctx, req.TargetCartID, []LineItemRequest{request})
		})
		if err != nil {
			if errors.Is(err, lock.ErrTimeout) {
				return false, errors.Join(ErrCloneUnavailable, err)
			}
			return false, err
		}
		if len(added.Errors) > 0 {
			for _, itemErr := range added.Errors {
				itemErr.Position = position
				state.itemErrors = append(state.itemErrors, itemErr)
				s.logger(ctx, cloneLoggerEventItemRejected, map[string]any{
					"cartId":  req.TargetCartID,
					"sku":     request.SKU,
					"code":    itemErr.Code,
					"message": itemErr.Message,
				})
			}
			continue
		}
		state.itemCount++
	}
	return true, nil
}

func (s *cartCloneService) publish(ctx context.Context, event CartClonedEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCartCloned(ctx, event); err != nil {
		s.logger(ctx, cloneLoggerEventPublishFailed, map[string]any{
			"cartId": event.CartID,
			"error":  err.Error(),
		})
	}
}

func (s *cartCloneService) finish(ctx context.Context, span trace.Span, stage CloneStage, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("clone.stage", string(stage)))
	if s.clones != nil {
		s.clones.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("stage", string(stage)),
		))
	}
	fields := map[string]any{"stage": string(stage), "outcome": outcome}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.logger(ctx, cloneLoggerEventCompleted, fields)
}

func loggerOrNoop(logger func(context.Context, string, map[string]any)) func(context.Context, string, map[string]any) {
	if logger == nil {
		return func(context.Context, string, map[string]any) {}
	}
	return logger
}
