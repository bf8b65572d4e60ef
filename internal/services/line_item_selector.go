package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/cartclone/internal/domain"
)

const (
	defaultItemPageSize    = 20
	defaultItemCurrentPage = 1
	defaultItemSortField   = "item_id"
	defaultItemSortOrder   = domain.SortAsc
)

var errSourceCartRequired = fmt.Errorf(`%w: "model" value should be specified`, ErrCloneConfiguration)

// ItemQuery controls how line items are listed. Sort applies only when Paginate is set.
type ItemQuery struct {
	Paginate    bool
	PageSize    int
	CurrentPage int
	SortField   string
	SortOrder   string
}

// SelectedLineItem pairs a visible line item with its product.
type SelectedLineItem struct {
	Item     CartItem
	Product  Product
	Quantity decimal.Decimal
}

// PageInfo describes the page returned by the selector.
type PageInfo struct {
	PageSize    int
	CurrentPage int
	TotalPages  int
}

// LineItemPage is the result of a selection.
type LineItemPage struct {
	Items      []SelectedLineItem
	TotalCount int
	PageInfo   PageInfo
}

// LineItemSelector reads the visible line items of a source cart.
type LineItemSelector struct{}

// NewLineItemSelector constructs a LineItemSelector.
func NewLineItemSelector() *LineItemSelector {
	return &LineItemSelector{}
}

// Select lists the visible items of source. Paginated requests are always
// served as the first page of 20 items whatever the caller asked for.
func (s *LineItemSelector) Select(source *Cart, query ItemQuery) (LineItemPage, error) {
	if source == nil {
		return LineItemPage{}, errSourceCartRequired
	}

	field, order := defaultItemSortField, string(defaultItemSortOrder)
	if query.SortField != "" {
		field = strings.ToLower(strings.TrimSpace(query.SortField))
	}
	if query.SortOrder != "" {
		order = strings.ToUpper(strings.TrimSpace(query.SortOrder))
	}

	visible := source.VisibleItems()
	page := LineItemPage{
		PageInfo: PageInfo{PageSize: defaultItemPageSize, CurrentPage: defaultItemCurrentPage},
	}

	items := visible
	if query.Paginate {
		less, err := itemComparator(field, domain.SortOrder(order))
		if err != nil {
			return LineItemPage{}, err
		}
		sorted := append([]CartItem(nil), visible...)
		sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

		offset := (page.PageInfo.CurrentPage - 1) * page.PageInfo.PageSize
		end := offset + page.PageInfo.PageSize
		if offset > len(sorted) {
			offset = len(sorted)
		}
		if end > len(sorted) {
			end = len(sorted)
		}
		items = sorted[offset:end]
	}

	page.Items = make([]SelectedLineItem, 0, len(items))
	for _, item := range items {
		page.Items = append(page.Items, SelectedLineItem{Item: item, Product: item.Product, Quantity: item.Quantity})
	}
	page.TotalCount = len(visible)
	page.PageInfo.TotalPages = totalPages(page.TotalCount, page.PageInfo.PageSize)
	return page, nil
}

func totalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

var errUnsupportedSort = errors.New("unsupported sort")

func itemComparator(field string, order domain.SortOrder) (func(a, b CartItem) bool, error) {
	var less func(a, b CartItem) bool
	switch field {
	case "item_id":
		less = func(a, b CartItem) bool { return a.ID < b.ID }
	case "sku":
		less = func(a, b CartItem) bool { return a.Product.SKU < b.Product.SKU }
	case "quantity", "qty":
		less = func(a, b CartItem) bool { return a.Quantity.LessThan(b.Quantity) }
	case "created_at":
		less = func(a, b CartItem) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return nil, fmt.Errorf("%w: %w field %q", ErrCloneInvalidInput, errUnsupportedSort, field)
	}

	switch order {
	case domain.SortAsc:
		return less, nil
	case domain.SortDesc:
		return func(a, b CartItem) bool { return less(b, a) }, nil
	default:
		return nil, fmt.Errorf("%w: %w order %q", ErrCloneInvalidInput, errUnsupportedSort, order)
	}
}
