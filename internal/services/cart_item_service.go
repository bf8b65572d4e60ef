package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hanko-field/cartclone/internal/platform/i18n"
)

// CartItemServiceDeps wires the cart item listing service.
type CartItemServiceDeps struct {
	Resolver CartResolver
	Selector *LineItemSelector
}

type cartItemService struct {
	resolver CartResolver
	selector *LineItemSelector
}

// NewCartItemService constructs a CartItemService.
func NewCartItemService(deps CartItemServiceDeps) (CartItemService, error) {
	if deps.Resolver == nil {
		return nil, errors.New("cart item service: resolver is required")
	}
	selector := deps.Selector
	if selector == nil {
		selector = NewLineItemSelector()
	}
	return &cartItemService{resolver: deps.Resolver, selector: selector}, nil
}

func (s *cartItemService) ListItems(ctx context.Context, cmd ListCartItemsCommand) (LineItemPage, error) {
	cartID := strings.TrimSpace(cmd.CartID)
	if cartID == "" {
		return LineItemPage{}, inputError(cmd.Caller.Locale, i18n.MsgCartIDMissing)
	}

	cart, err := s.resolver.ResolveCartForCaller(ctx, cartID, cmd.Caller)
	if err != nil {
		return LineItemPage{}, err
	}

	page, err := s.selector.Select(&cart, cmd.Query)
	if err != nil {
		if errors.Is(err, errUnsupportedSort) {
			return LineItemPage{}, inputError(cmd.Caller.Locale, i18n.MsgInvalidSortField, strings.TrimSpace(cmd.Query.SortField+" "+cmd.Query.SortOrder))
		}
		return LineItemPage{}, err
	}
	return page, nil
}
