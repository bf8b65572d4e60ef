package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/hanko-field/cartclone/internal/domain"
)

func cartWithItems(n int) *domain.Cart {
	cart := sourceCart()
	for i := 1; i <= n; i++ {
		cart.Items = append(cart.Items, simpleItem(fmt.Sprintf("%03d", i), fmt.Sprintf("SKU-%03d", i), int64(i)))
	}
	return &cart
}

func TestLineItemSelectorRequiresSource(t *testing.T) {
	_, err := NewLineItemSelector().Select(nil, ItemQuery{})
	if !errors.Is(err, ErrCloneConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLineItemSelectorFiltersInvisibleItems(t *testing.T) {
	cart := sourceCart()
	child := simpleItem("4", "CHILD", 1)
	child.ParentItemID = "3"
	deleted := simpleItem("5", "GONE", 1)
	deleted.Deleted = true
	cart.Items = []domain.CartItem{
		simpleItem("", "NOID", 1),
		simpleItem("0", "ZERO", 1),
		simpleItem("3", "PARENT", 2),
		child,
		deleted,
	}

	page, err := NewLineItemSelector().Select(&cart, ItemQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalCount != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one visible item, got %+v", page)
	}
	if page.Items[0].Product.SKU != "PARENT" || !page.Items[0].Quantity.Equal(qty(2)) {
		t.Fatalf("unexpected item %+v", page.Items[0])
	}
}

func TestLineItemSelectorAlwaysServesFirstPageOfTwenty(t *testing.T) {
	page, err := NewLineItemSelector().Select(cartWithItems(25), ItemQuery{Paginate: true, PageSize: 5, CurrentPage: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.PageInfo.PageSize != 20 || page.PageInfo.CurrentPage != 1 {
		t.Fatalf("expected page 1 of size 20, got %+v", page.PageInfo)
	}
	if len(page.Items) != 20 {
		t.Fatalf("expected 20 items, got %d", len(page.Items))
	}
	if page.Items[0].Item.ID != "001" {
		t.Fatalf("expected first page to start at item 001, got %q", page.Items[0].Item.ID)
	}
	if page.TotalCount != 25 || page.PageInfo.TotalPages != 2 {
		t.Fatalf("expected total 25 over 2 pages, got %d over %d", page.TotalCount, page.PageInfo.TotalPages)
	}
}

func TestLineItemSelectorTotalPages(t *testing.T) {
	cases := []struct {
		items int
		want  int
	}{
		{items: 0, want: 0},
		{items: 1, want: 1},
		{items: 20, want: 1},
		{items: 21, want: 2},
		{items: 45, want: 3},
	}
	for _, tc := range cases {
		page, err := NewLineItemSelector().Select(cartWithItems(tc.items), ItemQuery{Paginate: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.PageInfo.TotalPages != tc.want {
			t.Fatalf("expected %d total pages for %d items, got %d", tc.want, tc.items, page.PageInfo.TotalPages)
		}
	}
}

func TestLineItemSelectorSortsPaginatedResults(t *testing.T) {
	cart := cartWithItems(3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range cart.Items {
		cart.Items[i].CreatedAt = base.Add(-time.Duration(i) * time.Hour)
	}

	page, err := NewLineItemSelector().Select(cart, ItemQuery{Paginate: true, SortField: " SKU ", SortOrder: "desc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := page.Items[0].Product.SKU; got != "SKU-003" {
		t.Fatalf("expected SKU-003 first, got %q", got)
	}

	page, err = NewLineItemSelector().Select(cart, ItemQuery{Paginate: true, SortField: "created_at"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := page.Items[0].Item.ID; got != "003" {
		t.Fatalf("expected oldest item 003 first, got %q", got)
	}
}

func TestLineItemSelectorIgnoresSortWithoutPagination(t *testing.T) {
	page, err := NewLineItemSelector().Select(cartWithItems(3), ItemQuery{SortField: "bogus", SortOrder: "DESC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Items[0].Item.ID != "001" || page.Items[2].Item.ID != "003" {
		t.Fatalf("expected cart order, got %+v", page.Items)
	}
}

func TestLineItemSelectorRejectsUnknownSort(t *testing.T) {
	for _, query := range []ItemQuery{
		{Paginate: true, SortField: "price"},
		{Paginate: true, SortOrder: "sideways"},
	} {
		_, err := NewLineItemSelector().Select(cartWithItems(2), query)
		if !errors.Is(err, ErrCloneInvalidInput) || !errors.Is(err, errUnsupportedSort) {
			t.Fatalf("expected unsupported sort error for %+v, got %v", query, err)
		}
	}
}
