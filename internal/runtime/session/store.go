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

package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"admin-assistant/pkg/config"
	"admin-assistant/pkg/log"
)

// DefaultKeyPrefix 状态记录键前缀
const DefaultKeyPrefix = "agent_state:"

// Store 会话状态存储：Load 在记录不存在或无法解析时返回新的空状态
type Store interface {
	Load(ctx context.Context, sessionID string) (*AgentState, error)
	Save(ctx context.Context, state *AgentState) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore 进程内实现，保存编码后的 blob 以保持与持久化实现一致的拷贝语义
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*AgentState, error) {
	m.mu.RLock()
	data, ok := m.data[sessionID]
	m.mu.RUnlock()
	if !ok {
		return NewAgentState(sessionID), nil
	}
	s, err := Decode(data, sessionID)
	if err != nil {
		return NewAgentState(sessionID), nil
	}
	return s, nil
}

func (m *MemoryStore) Save(ctx context.Context, state *AgentState) error {
	if state == nil {
		return nil
	}
	data, err := Encode(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[state.SessionID] = data
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

// NewStore 根据配置创建会话存储
func NewStore(ctx context.Context, cfg config.SessionConfig, logger *log.Logger) (Store, error) {
	ttl := config.Duration(cfg.TTL, 0)
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return NewRedisStore(client, cfg.KeyPrefix, ttl, logger), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("session store postgres requires dsn")
		}
		return NewPostgresStore(ctx, cfg.DSN, ttl, logger)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}
