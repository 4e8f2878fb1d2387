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
	"time"

	"github.com/google/uuid"
)

// AgentState 单个会话的完整状态，只由 Orchestrator 修改、由 Store 持久化
type AgentState struct {
	SessionID   string         `json:"session_id"`
	Messages    []Message      `json:"messages"`
	UserProfile UserProfile    `json:"user_profile"`
	CoreGoal    string         `json:"core_goal,omitempty"`
	Intent      Intent         `json:"intent,omitempty"`
	CurrentStep Step           `json:"current_step,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewAgentState 创建空状态
func NewAgentState(sessionID string) *AgentState {
	return &AgentState{
		SessionID:   sessionID,
		UserProfile: NewUserProfile(),
		Metadata:    make(map[string]any),
	}
}

// NewSessionID 生成新的会话 ID
func NewSessionID() string {
	return "session-" + uuid.New().String()
}

// AddHuman 追加用户消息
func (s *AgentState) AddHuman(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleHuman, Content: content, Timestamp: time.Now()})
}

// AddAI 追加助手消息
func (s *AgentState) AddAI(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAI, Content: content, Timestamp: time.Now()})
}

// HasHistory 是否已有历史消息
func (s *AgentState) HasHistory() bool { return len(s.Messages) > 0 }

// Recent 返回最近 n 条消息的副本（n <= 0 返回全部）；持久化数据不截断
func (s *AgentState) Recent(n int) []Message {
	msgs := s.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// SetMeta 写入单轮临时值
func (s *AgentState) SetMeta(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
}
