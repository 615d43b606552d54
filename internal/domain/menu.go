package domain

import (
	"maps"

	"github.com/shopspring/decimal"
)

// MenuItem is a sellable product owned by the menu catalog.
type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Available   bool            `json:"available"`
	Modifiers   []Modifier      `json:"modifiers,omitempty"`
}

// Modifier is a named group of options. Selection counts are enforced by the ordering UI.
type Modifier struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Required bool             `json:"required,omitempty"`
	Min      int              `json:"min,omitempty"`
	Max      int              `json:"max,omitempty"`
	Options  []ModifierOption `json:"options"`
}

// ModifierOption carries a signed price delta; negative deltas model discounts.
type ModifierOption struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// OptionDelta resolves the price delta of optionID inside modifier group groupID.
// Unknown groups or options report false.
func (m *MenuItem) OptionDelta(groupID, optionID string) (decimal.Decimal, bool) {
	if m == nil {
		return decimal.Zero, false
	}
	for _, mod := range m.Modifiers {
		if mod.ID != groupID {
			continue
		}
		for _, opt := range mod.Options {
			if opt.ID == optionID {
				return opt.PriceDelta, true
			}
		}
		return decimal.Zero, false
	}
	return decimal.Zero, false
}

// Selections maps a modifier group id to the single selected option id.
type Selections map[string]string

// Equal reports whether both selections pick the same option for the same groups.
// A nil selection equals an empty one.
func (s Selections) Equal(other Selections) bool {
	return maps.Equal(s, other)
}

func (s Selections) Clone() Selections {
	if len(s) == 0 {
		return nil
	}
	return maps.Clone(s)
}
