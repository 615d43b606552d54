package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"tableside/internal/cart"
	"tableside/internal/domain"
	"tableside/internal/session"
)

type tablePath struct {
	Table string `path:"table" minLength:"1"`
}

type cartOutput struct {
	Body CartResponse `json:"body"`
}

func registerCart(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-cart",
		Method:      http.MethodGet,
		Path:        "/tables/{table}/cart",
		Summary:     "Current cart of a table",
	}, func(ctx context.Context, input *tablePath) (*cartOutput, error) {
		view, err := updateCart(ctx, cfg, input.Table, nil)
		if err != nil {
			return nil, handleError(err)
		}
		return &cartOutput{Body: cartResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-cart-line",
		Method:      http.MethodPost,
		Path:        "/tables/{table}/cart/lines",
		Summary:     "Add a line, merging with an identical one",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Table string      `path:"table" minLength:"1"`
		Body  LineRequest `json:"body"`
	}) (*cartOutput, error) {
		item, err := cfg.Menu.Orderable(ctx, input.Body.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		view, err := updateCart(ctx, cfg, input.Table, func(c *cart.Cart) error {
			c.AddLine(item, input.Body.Quantity, domain.Selections(input.Body.Modifiers))
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &cartOutput{Body: cartResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-cart-lines",
		Method:      http.MethodPut,
		Path:        "/tables/{table}/cart/lines",
		Summary:     "Replace every line of the cart",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Table string          `path:"table" minLength:"1"`
		Body  SetLinesRequest `json:"body"`
	}) (*cartOutput, error) {
		lines := make([]domain.CartLine, 0, len(input.Body.Lines))
		for _, l := range input.Body.Lines {
			// editing a placed order may keep items that have since sold out
			item, err := cfg.Menu.Get(ctx, l.ItemID)
			if err != nil {
				return nil, handleError(err)
			}
			lines = append(lines, domain.CartLine{Item: &item, Quantity: l.Quantity, Selections: domain.Selections(l.Modifiers)})
		}
		view, err := updateCart(ctx, cfg, input.Table, func(c *cart.Cart) error {
			c.SetLines(lines)
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &cartOutput{Body: cartResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-cart-item",
		Method:      http.MethodDelete,
		Path:        "/tables/{table}/cart/items/{item_id}",
		Summary:     "Remove every line for an item",
	}, func(ctx context.Context, input *struct {
		Table  string `path:"table" minLength:"1"`
		ItemID string `path:"item_id"`
	}) (*cartOutput, error) {
		view, err := updateCart(ctx, cfg, input.Table, func(c *cart.Cart) error {
			c.RemoveLine(input.ItemID)
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &cartOutput{Body: cartResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-cart-item-quantity",
		Method:      http.MethodPatch,
		Path:        "/tables/{table}/cart/items/{item_id}",
		Summary:     "Set the quantity of every line for an item",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Table  string             `path:"table" minLength:"1"`
		ItemID string             `path:"item_id"`
		Body   SetQuantityRequest `json:"body"`
	}) (*cartOutput, error) {
		view, err := updateCart(ctx, cfg, input.Table, func(c *cart.Cart) error {
			c.SetQuantity(input.ItemID, input.Body.Quantity)
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &cartOutput{Body: cartResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-cart-line-modifiers",
		Method:      http.MethodPatch,
		Path:        "/tables/{table}/cart/lines/{index}",
		Summary:     "Replace the modifier selection of one line",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Table string                 `path:"table" minLength:"1"`
		Index int                    `path:"index"`
		Body  UpdateModifiersRequest `json:"body"`
	}) (*cartOutput, error) {
		view, err := updateCart(ctx, cfg, input.Table, func(c *cart.Cart) error {
			return c.UpdateLineModifiers(input.Index, domain.Selections(input.Body.Modifiers))
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &cartOutput{Body: cartResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-cart",
		Method:      http.MethodDelete,
		Path:        "/tables/{table}/cart",
		Summary:     "Empty the cart",
	}, func(ctx context.Context, input *tablePath) (*cartOutput, error) {
		dropped := cfg.Carts.Take(ctx, input.Table)
		if len(dropped.Lines) > 0 {
			cfg.Log.Debugw("cart cleared", "table", input.Table, "lines", len(dropped.Lines))
		}
		return &cartOutput{Body: cartResponse(cfg.Carts.View(input.Table))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-cart",
		Method:        http.MethodPost,
		Path:          "/tables/{table}/cart/submit",
		Summary:       "Turn the cart into a placed order",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Table string             `path:"table" minLength:"1"`
		Body  *SubmitCartRequest `json:"body,omitempty"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		note := ""
		if input.Body != nil {
			note = input.Body.Note
		}
		var order domain.Order
		_, err := updateCart(ctx, cfg, input.Table, func(c *cart.Cart) error {
			if c.Len() == 0 {
				return errEmptyCart
			}
			order = orderFromCart(input.Table, note, c, cfg.now())
			c.Clear()
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		stored, ok := cfg.Orders.Submit(ctx, actorID(ctx, input.Table), order)
		if !ok {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "order was not recorded", nil)
		}
		cfg.Log.Infow("order submitted", "order_id", stored.ID, "table", stored.Table, "total", stored.Total)
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(stored)}, nil
	})
}

// updateCart reprices the table's cart against the current menu before running fn, so
// totals and submitted orders never carry prices from an earlier menu. A nil fn only
// reprices.
func updateCart(ctx context.Context, cfg Config, table string, fn func(*cart.Cart) error) (session.CartView, error) {
	resolve := cfg.Menu.Resolver(ctx)
	return cfg.Carts.Update(ctx, table, func(c *cart.Cart) error {
		if err := c.Reprice(resolve); err != nil {
			return err
		}
		if fn == nil {
			return nil
		}
		return fn(c)
	})
}

// orderFromCart builds a PLACED order from the cart's current lines.
func orderFromCart(table, note string, c *cart.Cart, now time.Time) domain.Order {
	total := c.Total()
	items := make([]domain.OrderItem, 0, c.Len())
	for _, l := range c.Lines() {
		unit := cart.UnitPrice(l)
		it := domain.OrderItem{
			ItemID:     l.ItemID(),
			Quantity:   l.Quantity,
			Selections: l.Selections.Clone(),
			UnitPrice:  &unit,
		}
		if l.Item != nil {
			it.Name = l.Item.Name
		}
		items = append(items, it)
	}
	return domain.Order{
		ID:          uuid.NewString(),
		Table:       table,
		Items:       items,
		Status:      domain.StatusPlaced,
		Note:        note,
		Total:       &total,
		CreatedAt:   now,
		UpdatedAt:   now,
		StatusTimes: map[domain.Status]time.Time{domain.StatusPlaced: now},
	}
}
