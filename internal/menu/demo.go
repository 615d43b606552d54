package menu

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/jaswdr/faker"
	"github.com/shopspring/decimal"

	"tableside/internal/domain"
)

var demoCategories = []string{"starters", "mains", "desserts", "drinks"}

// DemoMenu builds n plausible menu items. The same seed yields the same menu.
func DemoMenu(seed int64, n int) []domain.MenuItem {
	fake := faker.NewWithSeed(rand.NewSource(seed))
	items := make([]domain.MenuItem, 0, n)
	for i := 0; i < n; i++ {
		name := fake.Lorem().Word() + " " + strings.ToLower(fake.Food().Vegetable())
		name = strings.ToUpper(name[:1]) + name[1:]
		item := domain.MenuItem{
			ID:          fmt.Sprintf("item-%03d", i+1),
			Name:        name,
			Description: fake.Lorem().Sentence(10),
			Category:    demoCategories[i%len(demoCategories)],
			Price:       decimal.NewFromFloat(fake.Float64(2, 5, 50)).Round(2),
			Available:   fake.IntBetween(0, 9) > 0,
		}
		if fake.Bool() {
			item.Modifiers = append(item.Modifiers, domain.Modifier{
				ID:   "size",
				Name: "Size",
				Max:  1,
				Options: []domain.ModifierOption{
					{ID: "regular", Name: "Regular", PriceDelta: decimal.Zero},
					{ID: "large", Name: "Large", PriceDelta: decimal.NewFromFloat(fake.Float64(2, 1, 4)).Round(2)},
				},
			})
		}
		if fake.Bool() {
			item.Modifiers = append(item.Modifiers, domain.Modifier{
				ID:   "extra",
				Name: "Extra",
				Options: []domain.ModifierOption{
					{ID: "none", Name: "None", PriceDelta: decimal.Zero},
					{ID: "half", Name: "Half portion", PriceDelta: decimal.NewFromFloat(-fake.Float64(2, 1, 3)).Round(2)},
				},
			})
		}
		items = append(items, item)
	}
	return items
}
