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
	"strings"
	"time"

	"admin-assistant/internal/model/llm"
)

// 消息角色
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Message 一轮对话消息
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// IsAI 是否为助手消息
func (m Message) IsAI() bool { return m.Role == RoleAI }

// ToLLM 转换为 LLM 消息
func (m Message) ToLLM() llm.Message {
	if m.Role == RoleAI {
		return llm.Assistant(m.Content)
	}
	return llm.User(m.Content)
}

// MessagesToLLM 批量转换
func MessagesToLLM(list []Message) []llm.Message {
	if len(list) == 0 {
		return nil
	}
	out := make([]llm.Message, len(list))
	for i, m := range list {
		out[i] = m.ToLLM()
	}
	return out
}

// FormatHistory 将消息格式化为 "role: content" 行，供提示词使用
func FormatHistory(list []Message) string {
	if len(list) == 0 {
		return "No history."
	}
	var b strings.Builder
	for i, m := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
