package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dustin/go-humanize"

	"tableside/internal/archive"
	"tableside/internal/config"
	"tableside/internal/domain"
	"tableside/internal/ledger"
)

type orderOutput struct {
	Body OrderResponse `json:"body"`
}

type ordersOutput struct {
	Body OrdersResponse `json:"body"`
}

func parseStatus(raw string) (domain.Status, error) {
	st := domain.Status(raw).Normalize()
	if st != "" && !st.Valid() {
		return "", newAPIError(http.StatusBadRequest, "invalid_status", fmt.Sprintf("invalid status %q", raw), map[string]any{"status": raw})
	}
	return st, nil
}

func registerOrders(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List known orders, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" example:"PREPARING"`
	}) (*ordersOutput, error) {
		if err := requirePermission(ctx, cfg.App, config.PermOrdersRead); err != nil {
			return nil, handleError(err)
		}
		st, err := parseStatus(input.Status)
		if err != nil {
			return nil, err
		}
		return &ordersOutput{Body: ordersResponse(cfg.Orders.Snapshot(), st)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}",
		Summary:     "Get order",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*orderOutput, error) {
		if err := requirePermission(ctx, cfg.App, config.PermOrdersRead); err != nil {
			return nil, handleError(err)
		}
		o, ok := cfg.Orders.Order(input.OrderID)
		if !ok {
			return nil, orderNotFound(input.OrderID)
		}
		return &orderOutput{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-order",
		Method:      http.MethodPost,
		Path:        "/orders",
		Summary:     "Merge an order into the ledger or add it",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body OrderRequest `json:"body"`
	}) (*orderOutput, error) {
		if err := requirePermission(ctx, cfg.App, config.PermOrdersWrite); err != nil {
			return nil, handleError(err)
		}
		in, err := input.Body.toDomain()
		if err != nil {
			return nil, handleError(err)
		}
		stored, ok := cfg.Orders.Upsert(ctx, actorID(ctx, ""), in)
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "order id is required", nil)
		}
		return &orderOutput{Body: orderResponse(stored)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "replace-orders",
		Method:      http.MethodPut,
		Path:        "/orders",
		Summary:     "Replace the order set with a full refresh",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body ReplaceOrdersRequest `json:"body"`
	}) (*ordersOutput, error) {
		if err := requirePermission(ctx, cfg.App, config.PermOrdersWrite); err != nil {
			return nil, handleError(err)
		}
		list := make([]domain.Order, 0, len(input.Body.Orders))
		for _, req := range input.Body.Orders {
			o, err := req.toDomain()
			if err != nil {
				return nil, handleError(err)
			}
			list = append(list, o)
		}
		cfg.Orders.SetOrders(ctx, actorID(ctx, ""), list)
		return &ordersOutput{Body: ordersResponse(cfg.Orders.Snapshot(), "")}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-order-status",
		Method:      http.MethodPatch,
		Path:        "/orders/{order_id}/status",
		Summary:     "Apply a status change",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string              `path:"order_id"`
		Body    UpdateStatusRequest `json:"body"`
	}) (*orderOutput, error) {
		if err := requirePermission(ctx, cfg.App, config.PermOrdersStatus); err != nil {
			return nil, handleError(err)
		}
		st, err := parseStatus(input.Body.Status)
		if err != nil {
			return nil, err
		}
		o, found := cfg.Orders.UpdateStatus(ctx, actorID(ctx, ""), input.OrderID, st)
		if !found {
			return nil, orderNotFound(input.OrderID)
		}
		return &orderOutput{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-orders",
		Method:      http.MethodDelete,
		Path:        "/orders",
		Summary:     "End the shift: drop every order, optionally archiving them first",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		Archive bool `query:"archive" doc:"write the shift to the configured archive stores before clearing"`
	}) (*struct {
		Body ClearOrdersResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, cfg.App, config.PermOrdersClear); err != nil {
			return nil, handleError(err)
		}
		actor := actorID(ctx, "")
		resp := ClearOrdersResponse{Archived: []string{}}
		if !input.Archive {
			prev := cfg.Orders.Clear(ctx, actor)
			resp.Cleared = len(prev.Orders)
			return &struct {
				Body ClearOrdersResponse `json:"body"`
			}{Body: resp}, nil
		}
		prev, err := cfg.Orders.CloseShift(ctx, actor, func(snap ledger.Snapshot) error {
			shift := archive.NewShift(cfg.restaurantID(), actor, snap.Orders, cfg.now())
			locations, err := archive.Write(ctx, shift, cfg.Archive...)
			resp.Archived = append(resp.Archived, locations...)
			return err
		})
		if err != nil {
			cfg.Log.Errorw("shift archive failed, orders kept", "error", err)
			return nil, newAPIError(http.StatusBadGateway, "archive_failed", err.Error(), nil)
		}
		resp.Cleared = len(prev.Orders)
		cfg.Log.Infow("shift closed", "orders", resp.Cleared, "archived", resp.Archived)
		return &struct {
			Body ClearOrdersResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerQueue(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-queue",
		Method:      http.MethodGet,
		Path:        "/queue",
		Summary:     "Kitchen preparation queue, head first",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []QueueEntry `json:"body"`
	}, error) {
		if err := requirePermission(ctx, cfg.App, config.PermOrdersRead); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []QueueEntry `json:"body"`
		}{Body: queueEntries(cfg.Orders.Snapshot(), cfg.now())}, nil
	})
}

func queueEntries(snap ledger.Snapshot, now time.Time) []QueueEntry {
	out := make([]QueueEntry, 0, len(snap.Queue))
	for i, id := range snap.Queue {
		o, ok := snap.Order(id)
		if !ok {
			continue
		}
		entry := QueueEntry{Position: i + 1, Order: orderResponse(o)}
		if since, ok := o.StatusTimes[domain.StatusPreparing]; ok {
			entry.Waiting = humanize.RelTime(since, now, "ago", "from now")
		}
		out = append(out, entry)
	}
	return out
}

func orderNotFound(id string) huma.StatusError {
	return newAPIError(http.StatusNotFound, "order_not_found", fmt.Sprintf("order %s not found", id), map[string]any{"order_id": id})
}
