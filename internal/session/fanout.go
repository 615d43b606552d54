package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultFanoutBuffer = 256

type fanoutItem struct {
	ctx    context.Context
	change Change
}

// Fanout hands changes to a slow listener on its own goroutine, in the order they
// were committed, so a stalled broker never holds the ledger lock. When the buffer is
// full the change is dropped and logged.
type Fanout struct {
	name string
	next Listener
	log  *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
	ch     chan fanoutItem
	done   chan struct{}
}

func NewFanout(name string, next Listener, buffer int, log *zap.SugaredLogger) *Fanout {
	if buffer <= 0 {
		buffer = defaultFanoutBuffer
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	f := &Fanout{
		name: name,
		next: next,
		log:  log,
		ch:   make(chan fanoutItem, buffer),
		done: make(chan struct{}),
	}
	go f.run()
	return f
}

// OnChange is a Listener. It never blocks.
func (f *Fanout) OnChange(ctx context.Context, c Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- fanoutItem{ctx: context.WithoutCancel(ctx), change: c}:
	default:
		f.log.Warnw("listener is behind, dropping change", "sink", f.name, "type", c.Type, "order_id", c.OrderID)
	}
}

// Close stops accepting changes and waits until the queued ones are delivered.
func (f *Fanout) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	f.mu.Unlock()
	<-f.done
}

func (f *Fanout) run() {
	defer close(f.done)
	for item := range f.ch {
		f.next(item.ctx, item.change)
	}
}
