package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Backend. It lets several stores in one process
// share resolved documents. Expired entries are dropped when read or listed.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

// NewMemory creates an empty in-process backend
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// liveLocked returns the entry for key, dropping it when expired
func (m *Memory) liveLocked(key string) (memoryItem, bool) {
	item, ok := m.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		delete(m.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.liveLocked(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), item.value...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = item
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if _, ok := m.liveLocked(key); ok {
			delete(m.items, key)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.items {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, ok := m.liveLocked(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op; Memory holds no resources
func (m *Memory) Close() error { return nil }
