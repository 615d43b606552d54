package menu

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tableside/internal/domain"
)

type fileOption struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Delta string `yaml:"delta"`
}

type fileModifier struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Required bool         `yaml:"required"`
	Min      int          `yaml:"min"`
	Max      int          `yaml:"max"`
	Options  []fileOption `yaml:"options"`
}

type fileItem struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	Price       string         `yaml:"price"`
	Available   *bool          `yaml:"available"`
	Modifiers   []fileModifier `yaml:"modifiers"`
}

type file struct {
	Items []fileItem `yaml:"items"`
}

// FromYAML parses a menu document. Items are available unless stated otherwise.
func FromYAML(data []byte) ([]domain.MenuItem, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid menu yaml: %w", err)
	}
	items := make([]domain.MenuItem, 0, len(f.Items))
	for _, fi := range f.Items {
		price, err := parseMoney(fi.Price)
		if err != nil {
			return nil, fmt.Errorf("item %s price: %w", fi.ID, err)
		}
		item := domain.MenuItem{
			ID:          fi.ID,
			Name:        fi.Name,
			Description: fi.Description,
			Category:    fi.Category,
			Price:       price,
			Available:   fi.Available == nil || *fi.Available,
		}
		for _, fm := range fi.Modifiers {
			m := domain.Modifier{ID: fm.ID, Name: fm.Name, Required: fm.Required, Min: fm.Min, Max: fm.Max}
			for _, fo := range fm.Options {
				delta, err := parseMoney(fo.Delta)
				if err != nil {
					return nil, fmt.Errorf("item %s option %s delta: %w", fi.ID, fo.ID, err)
				}
				m.Options = append(m.Options, domain.ModifierOption{ID: fo.ID, Name: fo.Name, PriceDelta: delta})
			}
			item.Modifiers = append(item.Modifiers, m)
		}
		items = append(items, item)
	}
	if err := Validate(items); err != nil {
		return nil, err
	}
	return items, nil
}

func FromFile(path string) ([]domain.MenuItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
