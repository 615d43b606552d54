package cart_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tableside/internal/cart"
	"tableside/internal/domain"
)

func burger() *domain.MenuItem {
	return &domain.MenuItem{
		ID:        "burger",
		Name:      "Burger",
		Price:     decimal.RequireFromString("5.00"),
		Available: true,
		Modifiers: []domain.Modifier{
			{
				ID:   "cheese",
				Name: "Cheese",
				Max:  1,
				Options: []domain.ModifierOption{
					{ID: "cheddar", Name: "Cheddar", PriceDelta: decimal.RequireFromString("0.50")},
					{ID: "none", Name: "No cheese", PriceDelta: decimal.Zero},
				},
			},
			{
				ID:   "size",
				Name: "Size",
				Options: []domain.ModifierOption{
					{ID: "small", Name: "Small", PriceDelta: decimal.RequireFromString("-1.00")},
					{ID: "large", Name: "Large", PriceDelta: decimal.RequireFromString("2.25")},
				},
			},
		},
	}
}

func TestTotalWithModifier(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 2, domain.Selections{"cheese": "cheddar"})
	want := decimal.RequireFromString("11.00")
	if got := c.Total(); !got.Equal(want) {
		t.Fatalf("total = %s, want %s", got, want)
	}
	// pure: a second call gives the same answer
	if got := c.Total(); !got.Equal(want) {
		t.Fatalf("second total = %s, want %s", got, want)
	}
}

func TestAddLineMergesIdenticalLines(t *testing.T) {
	c := cart.New()
	item := burger()
	c.AddLine(item, 1, domain.Selections{"cheese": "cheddar"})
	c.AddLine(item, 3, domain.Selections{"cheese": "cheddar"})
	if c.Len() != 1 {
		t.Fatalf("expected one merged line, got %d", c.Len())
	}
	if q := c.Lines()[0].Quantity; q != 4 {
		t.Fatalf("quantity = %d, want 4", q)
	}
	c.AddLine(item, 1, domain.Selections{"cheese": "none"})
	if c.Len() != 2 {
		t.Fatalf("different selections should not merge, got %d lines", c.Len())
	}
}

func TestAddLineNilAndEmptySelectionsMerge(t *testing.T) {
	c := cart.New()
	item := burger()
	c.AddLine(item, 1, nil)
	c.AddLine(item, 1, domain.Selections{})
	if c.Len() != 1 || c.Lines()[0].Quantity != 2 {
		t.Fatalf("expected nil and empty selections to merge: %+v", c.Lines())
	}
}

func TestAddLineCoercesQuantity(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero", 0, 1},
		{"negative", -4, 1},
		{"positive", 3, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := cart.New()
			c.AddLine(burger(), tc.in, nil)
			if q := c.Lines()[0].Quantity; q != tc.want {
				t.Fatalf("quantity = %d, want %d", q, tc.want)
			}
		})
	}
}

func TestUnknownModifiersContributeZero(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 1, domain.Selections{"cheese": "gouda", "sauce": "bbq"})
	if got := c.Total(); !got.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("total = %s, want 5", got)
	}
}

func TestMissingItemPricesAtZero(t *testing.T) {
	c := cart.New()
	c.SetLines([]domain.CartLine{{Item: nil, Quantity: 2}})
	if !c.Total().IsZero() {
		t.Fatalf("expected zero total, got %s", c.Total())
	}
}

func TestDiscountOption(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 3, domain.Selections{"size": "small", "cheese": "cheddar"})
	// (5.00 - 1.00 + 0.50) * 3
	if got := c.Total(); !got.Equal(decimal.RequireFromString("13.50")) {
		t.Fatalf("total = %s, want 13.50", got)
	}
}

func TestUpdateLineModifiersRemerges(t *testing.T) {
	c := cart.New()
	item := burger()
	c.AddLine(item, 2, domain.Selections{"cheese": "cheddar"})
	c.AddLine(item, 1, domain.Selections{"cheese": "none"})
	fries := &domain.MenuItem{ID: "fries", Price: decimal.RequireFromString("3")}
	c.AddLine(fries, 1, nil)

	if err := c.UpdateLineModifiers(1, domain.Selections{"cheese": "cheddar"}); err != nil {
		t.Fatalf("update modifiers: %v", err)
	}
	lines := c.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines after merge, got %d", len(lines))
	}
	if lines[0].ItemID() != "burger" || lines[0].Quantity != 3 {
		t.Fatalf("unexpected merged line: %+v", lines[0])
	}
	if lines[1].ItemID() != "fries" {
		t.Fatalf("expected fries to keep its relative position, got %s", lines[1].ItemID())
	}
}

func TestUpdateLineModifiersBadIndex(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 1, nil)
	for _, idx := range []int{-1, 1, 7} {
		if err := c.UpdateLineModifiers(idx, nil); !errors.Is(err, cart.ErrLineIndex) {
			t.Fatalf("index %d: expected ErrLineIndex, got %v", idx, err)
		}
	}
}

func TestRemoveLineIsCoarse(t *testing.T) {
	c := cart.New()
	item := burger()
	c.AddLine(item, 1, domain.Selections{"cheese": "cheddar"})
	c.AddLine(item, 1, domain.Selections{"cheese": "none"})
	c.AddLine(&domain.MenuItem{ID: "cola", Price: decimal.RequireFromString("2")}, 1, nil)
	c.RemoveLine("burger")
	if c.Len() != 1 || c.Lines()[0].ItemID() != "cola" {
		t.Fatalf("expected only cola left, got %+v", c.Lines())
	}
}

func TestSetQuantityAppliesToAllVariants(t *testing.T) {
	c := cart.New()
	item := burger()
	c.AddLine(item, 1, domain.Selections{"cheese": "cheddar"})
	c.AddLine(item, 1, domain.Selections{"cheese": "none"})
	c.SetQuantity("burger", 4)
	for _, l := range c.Lines() {
		if l.Quantity != 4 {
			t.Fatalf("expected quantity 4 on every variant, got %+v", l)
		}
	}
	c.SetQuantity("burger", 0)
	for _, l := range c.Lines() {
		if l.Quantity != 1 {
			t.Fatalf("expected coerced quantity 1, got %d", l.Quantity)
		}
	}
}

func TestSetLinesMergesAndClear(t *testing.T) {
	c := cart.New()
	item := burger()
	c.SetLines([]domain.CartLine{
		{Item: item, Quantity: 1, Selections: domain.Selections{"size": "large"}},
		{Item: item, Quantity: 2, Selections: domain.Selections{"size": "large"}},
	})
	if c.Len() != 1 || c.Lines()[0].Quantity != 3 {
		t.Fatalf("expected merged restore, got %+v", c.Lines())
	}
	c.Clear()
	if c.Len() != 0 || !c.Total().IsZero() {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestLinesSnapshotIsStable(t *testing.T) {
	c := cart.New()
	item := burger()
	c.AddLine(item, 1, nil)
	before := c.Lines()
	c.AddLine(item, 5, nil)
	c.SetQuantity("burger", 9)
	if before[0].Quantity != 1 {
		t.Fatalf("earlier snapshot mutated: %+v", before[0])
	}
}

func TestSubmission(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 2, domain.Selections{"cheese": "cheddar"})
	sub := c.Submission()
	if len(sub) != 1 || sub[0].ItemID != "burger" || sub[0].Quantity != 2 || sub[0].Selections["cheese"] != "cheddar" {
		t.Fatalf("unexpected submission: %+v", sub)
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 1, domain.Selections{"cheese": "cheddar"})
	lines := c.Lines()
	lines[0].Quantity = 40
	lines[0].Selections["cheese"] = "none"
	got := c.Lines()[0]
	if got.Quantity != 1 || got.Selections["cheese"] != "cheddar" {
		t.Fatalf("cart changed through Lines result: %+v", got)
	}
}

func TestAddLineMergeTakesLatestItem(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 1, nil)
	dearer := burger()
	dearer.Price = decimal.RequireFromString("9.00")
	c.AddLine(dearer, 1, nil)
	if got := c.Total(); !got.Equal(decimal.RequireFromString("18.00")) {
		t.Fatalf("total = %s, want 18.00", got)
	}
}

func TestReprice(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 2, domain.Selections{"cheese": "cheddar"})
	c.AddLine(&domain.MenuItem{ID: "soup", Name: "Soup", Price: decimal.RequireFromString("4")}, 1, nil)

	menu := map[string]*domain.MenuItem{"burger": burger()}
	menu["burger"].Price = decimal.RequireFromString("6.00")
	err := c.Reprice(func(id string) (*domain.MenuItem, error) {
		return menu[id], nil
	})
	if err != nil {
		t.Fatalf("reprice: %v", err)
	}
	// (6.00 + 0.50) * 2, soup left the menu and prices at zero
	if got := c.Total(); !got.Equal(decimal.RequireFromString("13.00")) {
		t.Fatalf("total = %s, want 13.00", got)
	}
	lines := c.Lines()
	if lines[1].ItemID() != "soup" || lines[1].Item.Name != "Soup" {
		t.Fatalf("missing item should keep its identity: %+v", lines[1])
	}
}

func TestRepriceErrorLeavesCart(t *testing.T) {
	c := cart.New()
	c.AddLine(burger(), 1, nil)
	boom := errors.New("menu offline")
	if err := c.Reprice(func(string) (*domain.MenuItem, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected resolver error, got %v", err)
	}
	if got := c.Total(); !got.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("cart changed after failed reprice: %s", got)
	}
}
