package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tableside/internal/config"
	"tableside/internal/domain"
)

func registerMenu(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-menu",
		Method:      http.MethodGet,
		Path:        "/menu",
		Summary:     "List menu items",
	}, func(ctx context.Context, input *struct {
		Category  string `query:"category"`
		Available bool   `query:"available" doc:"only items that can be ordered now"`
	}) (*struct {
		Body []MenuItemResponse `json:"body"`
	}, error) {
		items, err := cfg.Menu.List(ctx, input.Category, input.Available)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MenuItemResponse `json:"body"`
		}{Body: mapMenuItems(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-menu-item",
		Method:      http.MethodGet,
		Path:        "/menu/{item_id}",
		Summary:     "Get menu item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ItemID string `path:"item_id"`
	}) (*struct {
		Body MenuItemResponse `json:"body"`
	}, error) {
		item, err := cfg.Menu.Get(ctx, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MenuItemResponse `json:"body"`
		}{Body: menuItemResponse(item)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-menu",
		Method:      http.MethodPut,
		Path:        "/menu",
		Summary:     "Replace the menu",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body ImportMenuRequest `json:"body"`
	}) (*struct {
		Body []MenuItemResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, cfg.App, config.PermMenuWrite); err != nil {
			return nil, handleError(err)
		}
		items := make([]domain.MenuItem, 0, len(input.Body.Items))
		for _, req := range input.Body.Items {
			item, err := req.toDomain()
			if err != nil {
				return nil, handleError(err)
			}
			items = append(items, item)
		}
		if err := cfg.Menu.Import(ctx, actorID(ctx, ""), items); err != nil {
			return nil, handleError(err)
		}
		cfg.Log.Infow("menu imported", "items", len(items), "actor_id", actorID(ctx, ""))
		return &struct {
			Body []MenuItemResponse `json:"body"`
		}{Body: mapMenuItems(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-menu-item-availability",
		Method:      http.MethodPatch,
		Path:        "/menu/{item_id}/availability",
		Summary:     "Mark an item available or sold out",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ItemID string                 `path:"item_id"`
		Body   SetAvailabilityRequest `json:"body"`
	}) (*struct {
		Body MenuItemResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, cfg.App, config.PermMenuWrite); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Menu.SetAvailable(ctx, input.ItemID, input.Body.Available); err != nil {
			return nil, handleError(err)
		}
		item, err := cfg.Menu.Get(ctx, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MenuItemResponse `json:"body"`
		}{Body: menuItemResponse(item)}, nil
	})
}

func mapMenuItems(items []domain.MenuItem) []MenuItemResponse {
	out := make([]MenuItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, menuItemResponse(it))
	}
	return out
}
