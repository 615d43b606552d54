// Package store persists opaque snapshot blobs under string keys.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrEmpty is returned by Read when nothing was written under the key.
var ErrEmpty = errors.New("slot empty")

// Slot is a tiny key-value store holding one blob per key.
type Slot interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// Memory keeps slots in process memory. It backs the "none" persistence mode.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrEmpty
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}
