package runner

import (
	"context"
	"fmt"
	"sync"
)

// PVClient reads and writes process variables.
type PVClient interface {
	Put(ctx context.Context, name string, v any) error
	Get(ctx context.Context, name string) (any, error)
}

// MemoryPVs is an in-memory PVClient. Only PVs that were defined or written
// can be read.
type MemoryPVs struct {
	mu     sync.RWMutex
	values map[string]any
	links  map[string][]link
	puts   []Put
}

type link struct {
	to string
	fn func(any) any
}

// Put is a recorded write.
type Put struct {
	Name  string
	Value any
}

// NewMemoryPVs returns a client holding the given values.
func NewMemoryPVs(initial map[string]any) *MemoryPVs {
	m := &MemoryPVs{values: make(map[string]any), links: make(map[string][]link)}
	for k, v := range initial {
		m.values[k] = v
	}
	return m
}

// Link makes every write to from also update to with fn(value). A nil fn
// copies the value.
func (m *MemoryPVs) Link(from, to string, fn func(any) any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		fn = func(v any) any { return v }
	}
	m.links[from] = append(m.links[from], link{to: to, fn: fn})
}

// Put implements PVClient.
func (m *MemoryPVs) Put(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = v
	m.puts = append(m.puts, Put{Name: name, Value: v})
	for _, l := range m.links[name] {
		m.values[l.to] = l.fn(v)
	}
	return nil
}

// Get implements PVClient.
func (m *MemoryPVs) Get(ctx context.Context, name string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	if !ok {
		return nil, fmt.Errorf("Unable to connect to getter PV %s", name)
	}
	return v, nil
}

// Puts returns the writes in order.
func (m *MemoryPVs) Puts() []Put {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Put(nil), m.puts...)
}
