// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"admin-assistant/pkg/errors"
)

const defaultCleanupInterval = 10 * time.Minute

// ErrFull 内存缓存达到条目上限
var ErrFull = fmt.Errorf("memory cache full")

// MemoryStore 进程内缓存，过期清理由 go-cache 负责；值按 JSON 保存，与 RedisStore 语义一致
type MemoryStore struct {
	c          *gocache.Cache
	maxEntries int
}

// MemoryOption 调整 MemoryStore
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	cleanup    time.Duration
	maxEntries int
}

// WithCleanupInterval 过期条目清理周期
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		if d > 0 {
			o.cleanup = d
		}
	}
}

// WithMaxEntries 条目上限；写满且无过期可清理时 Set 返回 ErrFull
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) { o.maxEntries = n }
}

// NewMemoryStore 创建内存缓存
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	o := memoryOptions{cleanup: defaultCleanupInterval}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, o.cleanup), maxEntries: o.maxEntries}
}

func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value %s: %w", key, err)
	}
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	if s.maxEntries > 0 && s.c.ItemCount() >= s.maxEntries {
		if _, exists := s.c.Get(key); !exists {
			s.c.DeleteExpired()
			if s.c.ItemCount() >= s.maxEntries {
				return errors.Wrapf(ErrFull, "%d entries", s.maxEntries)
			}
		}
	}
	s.c.Set(key, data, expiration)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := s.c.Get(key)
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "cache key %s", key)
	}
	if err := json.Unmarshal(v.([]byte), dest); err != nil {
		return fmt.Errorf("unmarshal cache value %s: %w", key, err)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.c.Get(key)
	return ok, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.c.Flush()
	return nil
}

// Len 条目数，可能包含尚未清理的过期项
func (s *MemoryStore) Len() int { return s.c.ItemCount() }

func (s *MemoryStore) Close() error { return nil }
