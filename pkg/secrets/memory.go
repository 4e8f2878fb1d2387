// Copyright 2026 fanjia1024
// In-memory secret store, used in tests and local runs

package secrets

import (
	"context"
	"sync"

	"admin-assistant/pkg/errors"
)

// memoryStore provider=memory 时 secrets.config 的键值即为初始 secret
type memoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore 创建内存 secret store；seed 依次合并为初始值
func NewMemoryStore(seed ...map[string]string) Store {
	values := make(map[string]string)
	for _, m := range seed {
		for k, v := range m {
			values[k] = v
		}
	}
	return &memoryStore{values: values}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	value, ok := m.values[key]
	m.mu.RUnlock()
	if !ok || value == "" {
		return "", errors.Wrapf(errors.ErrNotFound, "secret %s", key)
	}
	return value, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}
