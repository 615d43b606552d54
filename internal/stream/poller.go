package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tableside/internal/domain"
)

// OrderSource returns the full current order list. The Go SDK client satisfies it.
type OrderSource interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// RefreshSink accepts full refreshes. session.Orders satisfies it.
type RefreshSink interface {
	SetOrders(ctx context.Context, actor string, list []domain.Order)
}

// Poller periodically replaces the local order set with the upstream list.
type Poller struct {
	Source   OrderSource
	Sink     RefreshSink
	Interval time.Duration
	Log      *zap.SugaredLogger
	// OnRefresh, when set, runs after every successful refresh.
	OnRefresh func()
}

// Run polls immediately and then every Interval until ctx is done.
func (p Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.Once(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Once performs a single refresh. Failures keep the previous state.
func (p Poller) Once(ctx context.Context) bool {
	list, err := p.Source.ListOrders(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.Log.Warnw("order refresh failed", "error", err)
		}
		return false
	}
	p.Sink.SetOrders(ctx, "poller", list)
	if p.OnRefresh != nil {
		p.OnRefresh()
	}
	return true
}
