package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tableside/internal/domain"
	tablesidesdk "tableside/sdk/go"
)

// RemoteOrders reads the order list of another Tableside host. It satisfies
// stream.OrderSource.
type RemoteOrders struct {
	Client *tablesidesdk.Client
}

func (r RemoteOrders) ListOrders(ctx context.Context) ([]domain.Order, error) {
	page, err := r.Client.ListOrders(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(page.Items))
	for _, o := range page.Items {
		out = append(out, FromAPIOrder(o))
	}
	return out, nil
}

// FromAPIOrder converts an API order. Unparseable money is dropped and the
// server-side priority is ignored, since the local ledger derives its own.
func FromAPIOrder(o tablesidesdk.Order) domain.Order {
	out := domain.Order{
		ID:     o.ID,
		Table:  o.Table,
		Status: domain.Status(o.Status).Normalize(),
		Note:   o.Note,
		Total:  money(o.Total),
	}
	if o.CreatedAt != nil {
		out.CreatedAt = o.CreatedAt.UTC()
	}
	if o.UpdatedAt != nil {
		out.UpdatedAt = o.UpdatedAt.UTC()
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, domain.OrderItem{
			ItemID:     it.ItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Selections: domain.Selections(it.Modifiers).Clone(),
			UnitPrice:  money(it.UnitPrice),
		})
	}
	if len(o.StatusTimes) > 0 {
		out.StatusTimes = make(map[domain.Status]time.Time, len(o.StatusTimes))
		for k, v := range o.StatusTimes {
			out.StatusTimes[domain.Status(k).Normalize()] = v.UTC()
		}
	}
	return out
}

func money(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
