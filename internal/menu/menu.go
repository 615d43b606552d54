// Package menu is the read-only item catalog consulted when guests build carts.
package menu

import (
	"context"
	"errors"
	"fmt"

	"tableside/internal/cart"
	"tableside/internal/domain"
	"tableside/internal/events"
	"tableside/internal/repo"
)

var ErrUnavailable = errors.New("menu item unavailable")

type Catalog struct {
	Repo   repo.Repo
	Events events.Writer
}

func (c Catalog) List(ctx context.Context, category string, availableOnly bool) ([]domain.MenuItem, error) {
	items, err := c.Repo.ListMenuItems(ctx, category, availableOnly)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return items, nil
}

func (c Catalog) Get(ctx context.Context, id string) (domain.MenuItem, error) {
	item, err := c.Repo.GetMenuItem(ctx, id)
	if err != nil {
		return item, fmt.Errorf("menu item %s: %w", id, err)
	}
	return item, nil
}

// Orderable returns the item when it can be added to a cart.
func (c Catalog) Orderable(ctx context.Context, id string) (*domain.MenuItem, error) {
	item, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, id)
	}
	return &item, nil
}

// Resolver looks items up for cart.Reprice. Items no longer on the menu resolve to
// nil. Lookups are cached for the life of the returned func.
func (c Catalog) Resolver(ctx context.Context) cart.Resolver {
	seen := map[string]*domain.MenuItem{}
	return func(id string) (*domain.MenuItem, error) {
		if item, ok := seen[id]; ok {
			return item, nil
		}
		item, err := c.Get(ctx, id)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			seen[id] = nil
			return nil, nil
		case err != nil:
			return nil, err
		}
		seen[id] = &item
		return &item, nil
	}
}

// Import replaces the whole catalog and records a menu.imported event.
func (c Catalog) Import(ctx context.Context, actorID string, items []domain.MenuItem) error {
	if err := Validate(items); err != nil {
		return err
	}
	tx, err := c.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := c.Repo.ReplaceMenuTx(ctx, tx, items); err != nil {
		return err
	}
	if err := c.Events.Append(ctx, tx, domain.EventMenuImported, "menu", "", actorID, events.EventPayload{"items": len(items)}); err != nil {
		return err
	}
	return tx.Commit()
}

func (c Catalog) SetAvailable(ctx context.Context, id string, available bool) error {
	if err := c.Repo.SetMenuItemAvailable(ctx, id, available); err != nil {
		return fmt.Errorf("menu item %s: %w", id, err)
	}
	return nil
}

// Validate checks ids are present and unique and prices are non-negative.
func Validate(items []domain.MenuItem) error {
	seen := map[string]struct{}{}
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("menu item %q has no id", it.Name)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("duplicate menu item id %s", it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.Price.IsNegative() {
			return fmt.Errorf("menu item %s has a negative price", it.ID)
		}
		groups := map[string]struct{}{}
		for _, m := range it.Modifiers {
			if m.ID == "" {
				return fmt.Errorf("menu item %s has a modifier without id", it.ID)
			}
			if _, dup := groups[m.ID]; dup {
				return fmt.Errorf("menu item %s repeats modifier %s", it.ID, m.ID)
			}
			groups[m.ID] = struct{}{}
		}
	}
	return nil
}
