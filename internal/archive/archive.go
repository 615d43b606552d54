// Package archive writes closed shifts to durable storage.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tableside/internal/domain"
)

// Shift is the document written when a shift is closed.
type Shift struct {
	RestaurantID string         `json:"restaurant_id"`
	ClosedAt     time.Time      `json:"closed_at"`
	ClosedBy     string         `json:"closed_by"`
	Summary      Summary        `json:"summary"`
	Orders       []domain.Order `json:"orders"`
}

type Summary struct {
	Orders   int                   `json:"orders"`
	ByStatus map[domain.Status]int `json:"by_status"`
	Items    int                   `json:"items"`
	Revenue  decimal.Decimal       `json:"revenue"`
}

// NewShift summarizes orders. Revenue counts the echoed totals of PAID orders only.
func NewShift(restaurantID, closedBy string, orders []domain.Order, closedAt time.Time) Shift {
	sum := Summary{Orders: len(orders), ByStatus: map[domain.Status]int{}, Revenue: decimal.Zero}
	for _, o := range orders {
		sum.ByStatus[o.Status]++
		for _, it := range o.Items {
			sum.Items += it.Quantity
		}
		if o.Status == domain.StatusPaid && o.Total != nil {
			sum.Revenue = sum.Revenue.Add(*o.Total)
		}
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return Shift{RestaurantID: restaurantID, ClosedAt: closedAt.UTC(), ClosedBy: closedBy, Summary: sum, Orders: orders}
}

// Name is the object name a shift is stored under.
func (s Shift) Name() string {
	return fmt.Sprintf("shift-%s-%s.json", s.RestaurantID, s.ClosedAt.Format("20060102T150405Z"))
}

// Store persists one named blob and reports where it went.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Write encodes the shift and hands it to every store. It stops at the first failure.
func Write(ctx context.Context, s Shift, stores ...Store) ([]string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode shift: %w", err)
	}
	var locations []string
	for _, st := range stores {
		loc, err := st.Put(ctx, s.Name(), data)
		if err != nil {
			return locations, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// Dir writes shifts as files under a local directory.
type Dir struct {
	Path string
}

func (d Dir) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(d.Path, filepath.Base(strings.TrimSpace(name)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return path, nil
}
