package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process area. Several tab sessions sharing one Memory
// behave like several tabs of one browser.
type Memory struct {
	mu      sync.Mutex
	items   map[string]string
	quota   int // bytes of keys+values, 0 = unlimited
	failErr error

	bc broadcaster
}

// NewMemory returns an empty area. quota <= 0 disables the size check.
func NewMemory(quota int) *Memory {
	return &Memory{
		items: make(map[string]string),
		quota: quota,
	}
}

// Fail makes every following operation return err (nil restores service).
// It lets callers exercise unavailable-storage paths.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return "", false, m.failErr
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) SetItems(_ context.Context, items map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}

	next := make(map[string]string, len(m.items)+len(items))
	for k, v := range m.items {
		next[k] = v
	}
	for k, v := range items {
		next[k] = v
	}
	if m.quota > 0 {
		if size := sizeOf(next); size > m.quota {
			return fmt.Errorf("%w: %d bytes > %d", ErrQuotaExceeded, size, m.quota)
		}
	}

	changes := diff(m.items, next)
	m.items = next
	m.bc.publish(changes)
	return nil
}

func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}

	var changes []Change
	for _, k := range keys {
		if old, ok := m.items[k]; ok {
			delete(m.items, k)
			changes = append(changes, Change{Key: k, OldValue: old, Removed: true})
		}
	}
	m.bc.publish(changes)
	return nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return nil, m.failErr
	}
	return m.bc.add(ctx), nil
}

func sizeOf(items map[string]string) int {
	n := 0
	for k, v := range items {
		n += len(k) + len(v)
	}
	return n
}
