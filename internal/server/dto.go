package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tableside/internal/cart"
	"tableside/internal/domain"
	"tableside/internal/ledger"
	"tableside/internal/session"
)

// Request payloads. Money travels as decimal strings.

type LineRequest struct {
	ItemID    string            `json:"item_id" minLength:"1"`
	Quantity  int               `json:"quantity,omitempty"`
	Modifiers map[string]string `json:"modifiers,omitempty"`
}

type SetLinesRequest struct {
	Lines []LineRequest `json:"lines"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type UpdateModifiersRequest struct {
	Modifiers map[string]string `json:"modifiers"`
}

type SubmitCartRequest struct {
	Note string `json:"note,omitempty"`
}

type OrderItemRequest struct {
	ItemID    string            `json:"item_id"`
	Name      string            `json:"name,omitempty"`
	Quantity  int               `json:"quantity"`
	Modifiers map[string]string `json:"modifiers,omitempty"`
	UnitPrice *string           `json:"unit_price,omitempty" example:"4.50"`
}

type OrderRequest struct {
	ID          string               `json:"id" minLength:"1"`
	Table       string               `json:"table,omitempty"`
	Items       []OrderItemRequest   `json:"items,omitempty"`
	Status      string               `json:"status,omitempty" example:"PREPARING"`
	Note        string               `json:"note,omitempty"`
	Total       *string              `json:"total,omitempty" example:"18.40"`
	CreatedAt   *time.Time           `json:"created_at,omitempty"`
	UpdatedAt   *time.Time           `json:"updated_at,omitempty"`
	StatusTimes map[string]time.Time `json:"status_times,omitempty"`
}

type ReplaceOrdersRequest struct {
	Orders []OrderRequest `json:"orders"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" minLength:"1" example:"READY"`
}

type SetAvailabilityRequest struct {
	Available bool `json:"available"`
}

type ImportMenuRequest struct {
	Items []MenuItemRequest `json:"items" minItems:"1"`
}

type MenuOptionRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	PriceDelta string `json:"price_delta,omitempty" example:"0.50"`
}

type MenuModifierRequest struct {
	ID       string              `json:"id"`
	Name     string              `json:"name,omitempty"`
	Required bool                `json:"required,omitempty"`
	Min      int                 `json:"min,omitempty"`
	Max      int                 `json:"max,omitempty"`
	Options  []MenuOptionRequest `json:"options,omitempty"`
}

type MenuItemRequest struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Category    string                `json:"category,omitempty"`
	Price       string                `json:"price" example:"12.00"`
	Available   *bool                 `json:"available,omitempty"`
	Modifiers   []MenuModifierRequest `json:"modifiers,omitempty"`
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
}

// Responses

type MoneyLine struct {
	ItemID    string            `json:"item_id"`
	Name      string            `json:"name,omitempty"`
	Quantity  int               `json:"quantity"`
	Modifiers map[string]string `json:"modifiers,omitempty"`
	UnitPrice string            `json:"unit_price"`
	LineTotal string            `json:"line_total"`
}

type CartResponse struct {
	Table string      `json:"table"`
	Lines []MoneyLine `json:"lines"`
	Total string      `json:"total"`
}

type OrderItemResponse struct {
	ItemID    string            `json:"item_id"`
	Name      string            `json:"name,omitempty"`
	Quantity  int               `json:"quantity"`
	Modifiers map[string]string `json:"modifiers,omitempty"`
	UnitPrice string            `json:"unit_price,omitempty"`
}

type OrderResponse struct {
	ID          string               `json:"id"`
	Table       string               `json:"table,omitempty"`
	Items       []OrderItemResponse  `json:"items"`
	Status      string               `json:"status"`
	Note        string               `json:"note,omitempty"`
	Total       string               `json:"total,omitempty"`
	CreatedAt   *time.Time           `json:"created_at,omitempty"`
	UpdatedAt   *time.Time           `json:"updated_at,omitempty"`
	StatusTimes map[string]time.Time `json:"status_times,omitempty"`
	Priority    *int                 `json:"priority,omitempty"`
}

type OrdersResponse struct {
	Items []OrderResponse `json:"items"`
	Queue []string        `json:"queue"`
}

type QueueEntry struct {
	Position int           `json:"position"`
	Order    OrderResponse `json:"order"`
	Waiting  string        `json:"waiting,omitempty"`
}

type MenuOptionResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	PriceDelta string `json:"price_delta"`
}

type MenuModifierResponse struct {
	ID       string               `json:"id"`
	Name     string               `json:"name,omitempty"`
	Required bool                 `json:"required"`
	Min      int                  `json:"min"`
	Max      int                  `json:"max"`
	Options  []MenuOptionResponse `json:"options"`
}

type MenuItemResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Category    string                 `json:"category,omitempty"`
	Price       string                 `json:"price"`
	Available   bool                   `json:"available"`
	Modifiers   []MenuModifierResponse `json:"modifiers"`
}

type EventResponse struct {
	ID           int64          `json:"id"`
	TS           string         `json:"ts" format:"date-time"`
	Type         string         `json:"type"`
	RestaurantID string         `json:"restaurant_id,omitempty"`
	EntityKind   string         `json:"entity_kind"`
	EntityID     string         `json:"entity_id,omitempty"`
	ActorID      string         `json:"actor_id"`
	Payload      map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type ClearOrdersResponse struct {
	Cleared  int      `json:"cleared"`
	Archived []string `json:"archived"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Conversion helpers

func parseMoney(field string, in *string) (*decimal.Decimal, error) {
	if in == nil || *in == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*in)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", field, *in)
	}
	return &d, nil
}

func (r OrderRequest) toDomain() (domain.Order, error) {
	o := domain.Order{
		ID:     r.ID,
		Table:  r.Table,
		Status: domain.Status(r.Status).Normalize(),
		Note:   r.Note,
	}
	if o.Status != "" && !o.Status.Valid() {
		return o, fmt.Errorf("invalid status %q", r.Status)
	}
	total, err := parseMoney("total", r.Total)
	if err != nil {
		return o, err
	}
	o.Total = total
	if r.CreatedAt != nil {
		o.CreatedAt = r.CreatedAt.UTC()
	}
	if r.UpdatedAt != nil {
		o.UpdatedAt = r.UpdatedAt.UTC()
	}
	if r.Items != nil {
		o.Items = make([]domain.OrderItem, 0, len(r.Items))
		for _, it := range r.Items {
			price, err := parseMoney("unit_price", it.UnitPrice)
			if err != nil {
				return o, err
			}
			o.Items = append(o.Items, domain.OrderItem{
				ItemID:     it.ItemID,
				Name:       it.Name,
				Quantity:   it.Quantity,
				Selections: domain.Selections(it.Modifiers).Clone(),
				UnitPrice:  price,
			})
		}
	}
	if r.StatusTimes != nil {
		o.StatusTimes = make(map[domain.Status]time.Time, len(r.StatusTimes))
		for k, v := range r.StatusTimes {
			o.StatusTimes[domain.Status(k).Normalize()] = v.UTC()
		}
	}
	return o, nil
}

func (r MenuItemRequest) toDomain() (domain.MenuItem, error) {
	price, err := parseMoney("price", &r.Price)
	if err != nil {
		return domain.MenuItem{}, err
	}
	item := domain.MenuItem{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       decimal.Zero,
		Available:   r.Available == nil || *r.Available,
	}
	if price != nil {
		item.Price = *price
	}
	for _, m := range r.Modifiers {
		mod := domain.Modifier{ID: m.ID, Name: m.Name, Required: m.Required, Min: m.Min, Max: m.Max}
		for _, opt := range m.Options {
			delta, err := parseMoney("price_delta", &opt.PriceDelta)
			if err != nil {
				return item, err
			}
			o := domain.ModifierOption{ID: opt.ID, Name: opt.Name, PriceDelta: decimal.Zero}
			if delta != nil {
				o.PriceDelta = *delta
			}
			mod.Options = append(mod.Options, o)
		}
		item.Modifiers = append(item.Modifiers, mod)
	}
	return item, nil
}

func orderResponse(o domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:       o.ID,
		Table:    o.Table,
		Items:    []OrderItemResponse{},
		Status:   string(o.Status),
		Note:     o.Note,
		Priority: o.Priority,
	}
	if o.Total != nil {
		resp.Total = o.Total.StringFixed(2)
	}
	if !o.CreatedAt.IsZero() {
		t := o.CreatedAt
		resp.CreatedAt = &t
	}
	if !o.UpdatedAt.IsZero() {
		t := o.UpdatedAt
		resp.UpdatedAt = &t
	}
	for _, it := range o.Items {
		item := OrderItemResponse{ItemID: it.ItemID, Name: it.Name, Quantity: it.Quantity, Modifiers: it.Selections}
		if it.UnitPrice != nil {
			item.UnitPrice = it.UnitPrice.StringFixed(2)
		}
		resp.Items = append(resp.Items, item)
	}
	if len(o.StatusTimes) > 0 {
		resp.StatusTimes = make(map[string]time.Time, len(o.StatusTimes))
		for k, v := range o.StatusTimes {
			resp.StatusTimes[string(k)] = v
		}
	}
	return resp
}

func ordersResponse(s ledger.Snapshot, status domain.Status) OrdersResponse {
	resp := OrdersResponse{Items: []OrderResponse{}, Queue: nonNilSlice(s.Queue)}
	for _, o := range s.Orders {
		if status != "" && o.Status != status {
			continue
		}
		resp.Items = append(resp.Items, orderResponse(o))
	}
	return resp
}

func cartResponse(v session.CartView) CartResponse {
	resp := CartResponse{Table: v.Table, Lines: []MoneyLine{}, Total: v.Total.StringFixed(2)}
	for _, l := range v.Lines {
		line := MoneyLine{
			ItemID:    l.ItemID(),
			Quantity:  l.Quantity,
			Modifiers: l.Selections,
			UnitPrice: cart.UnitPrice(l).StringFixed(2),
			LineTotal: cart.LineTotal(l).StringFixed(2),
		}
		if l.Item != nil {
			line.Name = l.Item.Name
		}
		resp.Lines = append(resp.Lines, line)
	}
	return resp
}

func menuItemResponse(it domain.MenuItem) MenuItemResponse {
	resp := MenuItemResponse{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Category:    it.Category,
		Price:       it.Price.StringFixed(2),
		Available:   it.Available,
		Modifiers:   []MenuModifierResponse{},
	}
	for _, m := range it.Modifiers {
		mod := MenuModifierResponse{ID: m.ID, Name: m.Name, Required: m.Required, Min: m.Min, Max: m.Max, Options: []MenuOptionResponse{}}
		for _, o := range m.Options {
			mod.Options = append(mod.Options, MenuOptionResponse{ID: o.ID, Name: o.Name, PriceDelta: o.PriceDelta.StringFixed(2)})
		}
		resp.Modifiers = append(resp.Modifiers, mod)
	}
	return resp
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		TS:           e.TS,
		Type:         e.Type,
		RestaurantID: e.RestaurantID,
		EntityKind:   e.EntityKind,
		EntityID:     e.EntityID,
		ActorID:      e.ActorID,
		Payload:      decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
