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

// Package guardrail 提供话题校验、幻觉检测、提示注入拦截与免责声明
package guardrail

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"admin-assistant/internal/model/llm"
	"admin-assistant/internal/runtime/session"
)

// 拒绝原因
const (
	ReasonOffTopic        = "off_topic"
	ReasonPromptInjection = "prompt_injection"
	ReasonHallucination   = "hallucination"
)

const topicPrompt = `You are a gatekeeper for a French Administrative Assistant.
Determine if the user's query is related to French administrative procedures, public services, residency, taxes, social benefits or legislation.
Use the conversation history: a query that continues an administrative conversation is related.
Reject queries about medical advice, general entertainment, or legal issues not specific to France.
Respond only with 'APPROVED' or 'REJECTED: <short reason in English>'.

Conversation History:
%s`

const hallucinationPrompt = `You are a factual verifier.
Does the provided Answer contain information that is NOT present or implied in the Context?
Questions asked back to the user and generic politeness are not hallucinations.
Respond only with 'SAFE' or 'HALLUCINATION'.`

// Verdict 话题校验结果
type Verdict struct {
	Approved bool
	Reason   string
}

// Approved 自动放行（如续答轮次）
func Approved() Verdict { return Verdict{Approved: true} }

// TopicGuardrail 基于 LLM 的话题校验
type TopicGuardrail struct {
	client llm.Client
	window int
}

// NewTopicGuardrail 创建话题校验器
func NewTopicGuardrail(client llm.Client) *TopicGuardrail {
	return &TopicGuardrail{client: client, window: 4}
}

// Validate 输出包含 APPROVED 视为通过，否则去掉 REJECTED: 前缀作为原因
func (g *TopicGuardrail) Validate(ctx context.Context, query string, history []session.Message) (Verdict, error) {
	if g.client == nil {
		return Verdict{}, fmt.Errorf("topic guardrail: llm client not configured")
	}
	if len(history) > g.window {
		history = history[len(history)-g.window:]
	}
	msgs := []llm.Message{
		llm.System(fmt.Sprintf(topicPrompt, session.FormatHistory(history))),
		llm.User(query),
	}
	out, err := g.client.ChatWithContext(ctx, msgs, llm.GenerateOptions{Temperature: 0, MaxTokens: 64})
	if err != nil {
		return Verdict{}, fmt.Errorf("topic guardrail: %w", err)
	}
	return ParseVerdict(out), nil
}

// ParseVerdict 解析话题校验输出
func ParseVerdict(out string) Verdict {
	out = strings.TrimSpace(out)
	upper := strings.ToUpper(out)
	if strings.Contains(upper, "APPROVED") && !strings.HasPrefix(upper, "REJECTED") {
		return Verdict{Approved: true}
	}
	reason := out
	if idx := strings.Index(upper, "REJECTED"); idx >= 0 {
		reason = out[idx+len("REJECTED"):]
	}
	reason = strings.TrimSpace(strings.TrimLeft(reason, ": "))
	if reason == "" {
		reason = ReasonOffTopic
	}
	return Verdict{Reason: reason}
}

// HallucinationGuardrail 检查回答是否基于上下文
type HallucinationGuardrail struct {
	client llm.Client
}

// NewHallucinationGuardrail 创建幻觉检测器
func NewHallucinationGuardrail(client llm.Client) *HallucinationGuardrail {
	return &HallucinationGuardrail{client: client}
}

// Check 返回 true 表示回答安全
func (g *HallucinationGuardrail) Check(ctx context.Context, contextText, answer, query string, history []session.Message) (bool, error) {
	if g.client == nil {
		return false, fmt.Errorf("hallucination guardrail: llm client not configured")
	}
	user := fmt.Sprintf("Question: %s\n\nContext: %s\n\nAnswer: %s", query, contextText, answer)
	if len(history) > 0 {
		user = fmt.Sprintf("Recent conversation:\n%s\n\n%s", session.FormatHistory(history[max(0, len(history)-2):]), user)
	}
	out, err := g.client.ChatWithContext(ctx, []llm.Message{llm.System(hallucinationPrompt), llm.User(user)},
		llm.GenerateOptions{Temperature: 0, MaxTokens: 8})
	if err != nil {
		return false, fmt.Errorf("hallucination guardrail: %w", err)
	}
	return isSafeVerdict(out), nil
}

// isSafeVerdict 只认第一个词为 SAFE 的回复，UNSAFE / NOT SAFE 都不算
func isSafeVerdict(out string) bool {
	words := strings.FieldsFunc(strings.ToUpper(out), func(r rune) bool { return !unicode.IsLetter(r) })
	return len(words) > 0 && words[0] == "SAFE"
}
