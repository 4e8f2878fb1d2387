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
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"admin-assistant/pkg/errors"
	"admin-assistant/pkg/log"
)

// LegacyKeyPrefix 旧版消息列表键前缀（LPUSH 顺序，最新在前）
const LegacyKeyPrefix = "message_store:"

// RedisStore 状态以单个 SET 写入，同会话并发写入为后写覆盖
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisStore 创建 Redis 会话存储；ttl <= 0 表示不过期
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, logger *log.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, logger: log.OrDefault(logger)}
}

func (s *RedisStore) key(sessionID string) string { return s.prefix + sessionID }

// Load 读取版本化记录；缺失或损坏时尝试从旧版消息列表迁移
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*AgentState, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	switch {
	case err == redis.Nil:
	case err != nil:
		return nil, errors.Wrap(err, "load agent state")
	default:
		state, decErr := Decode(data, sessionID)
		if decErr == nil {
			return state, nil
		}
		s.logger.Warn("discarding unreadable agent state", "session_id", sessionID, "error", decErr)
	}
	return s.migrateLegacy(ctx, sessionID)
}

type legacyMessage struct {
	Type string `json:"type"`
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

func (s *RedisStore) migrateLegacy(ctx context.Context, sessionID string) (*AgentState, error) {
	items, err := s.client.LRange(ctx, LegacyKeyPrefix+sessionID, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "load legacy history")
	}
	state := NewAgentState(sessionID)
	if len(items) == 0 {
		return state, nil
	}
	for i := len(items) - 1; i >= 0; i-- {
		var lm legacyMessage
		if err := json.Unmarshal([]byte(items[i]), &lm); err != nil {
			continue
		}
		switch lm.Type {
		case RoleHuman:
			state.AddHuman(lm.Data.Content)
		case RoleAI:
			state.AddAI(lm.Data.Content)
		}
	}
	if !state.HasHistory() {
		return state, nil
	}
	if err := s.Save(ctx, state); err != nil {
		s.logger.Warn("persist migrated agent state failed", "session_id", sessionID, "error", err)
	} else {
		s.logger.Info("migrated legacy history", "session_id", sessionID, "messages", len(state.Messages))
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, state *AgentState) error {
	if state == nil {
		return nil
	}
	data, err := Encode(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(state.SessionID), data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID), LegacyKeyPrefix+sessionID).Err()
}

// Close 关闭连接
func (s *RedisStore) Close() error { return s.client.Close() }
