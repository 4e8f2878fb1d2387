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

	"admin-assistant/pkg/log"
)

// Manager 包装 Store：存储故障时记录日志并降级为内存中的新状态，调用方不感知错误
type Manager struct {
	store  Store
	logger *log.Logger
}

// NewManager 创建会话管理器
func NewManager(store Store, logger *log.Logger) *Manager {
	return &Manager{store: store, logger: log.OrDefault(logger)}
}

// Load 加载会话状态；失败时返回空状态
func (m *Manager) Load(ctx context.Context, sessionID string) *AgentState {
	state, err := m.store.Load(ctx, sessionID)
	if err != nil || state == nil {
		if err != nil {
			m.logger.Warn("session load failed, using fresh state", "session_id", sessionID, "error", err)
		}
		return NewAgentState(sessionID)
	}
	return state
}

// Save 保存会话状态；失败只记录日志，返回是否成功
func (m *Manager) Save(ctx context.Context, state *AgentState) bool {
	if err := m.store.Save(ctx, state); err != nil {
		m.logger.Warn("session save failed", "session_id", state.SessionID, "error", err)
		return false
	}
	return true
}

// Delete 删除会话（管理员清理）
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}

// Store 返回底层存储
func (m *Manager) Store() Store { return m.store }
