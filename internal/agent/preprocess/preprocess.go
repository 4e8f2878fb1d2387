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

// Package preprocess 提供查询预处理各步骤的 LLM 实现：目标抽取、查询改写、意图分类、画像抽取
package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"admin-assistant/internal/model/llm"
	"admin-assistant/internal/runtime/session"
)

// 各步骤读取的历史窗口
const (
	goalWindow    = 5
	rewriteWindow = 5
	intentWindow  = 3
	profileWindow = 10
)

func recent(history []session.Message, n int) []session.Message {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func chat(ctx context.Context, client llm.Client, system, user string, maxTokens int) (string, error) {
	if client == nil {
		return "", fmt.Errorf("llm client not configured")
	}
	msgs := make([]llm.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, llm.System(system))
	}
	msgs = append(msgs, llm.User(user))
	out, err := client.ChatWithContext(ctx, msgs, llm.GenerateOptions{Temperature: 0, MaxTokens: maxTokens})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GoalExtractor 目标抽取；返回 LLM 原始输出（可能为 "null" 哨兵），由调用方处理目标锁
type GoalExtractor struct {
	client llm.Client
}

// NewGoalExtractor 创建目标抽取器
func NewGoalExtractor(client llm.Client) *GoalExtractor {
	return &GoalExtractor{client: client}
}

// Extract 实现目标抽取
func (g *GoalExtractor) Extract(ctx context.Context, query string, history []session.Message, currentGoal string) (string, error) {
	goal := currentGoal
	if goal == "" {
		goal = "None"
	}
	prompt := fmt.Sprintf(goalPrompt, goal, session.FormatHistory(recent(history, goalWindow)), query)
	out, err := chat(ctx, g.client, "", prompt, 64)
	if err != nil {
		return "", fmt.Errorf("goal extraction: %w", err)
	}
	return strings.Trim(out, "\"'` "), nil
}

// QueryRewriter 以目标为锚的查询改写
type QueryRewriter struct {
	client llm.Client
}

// NewQueryRewriter 创建改写器
func NewQueryRewriter(client llm.Client) *QueryRewriter {
	return &QueryRewriter{client: client}
}

// Rewrite 无历史且无目标时直接返回原查询，不调用 LLM
func (r *QueryRewriter) Rewrite(ctx context.Context, query string, history []session.Message, coreGoal string, profile map[string]any) (string, error) {
	if len(history) == 0 && coreGoal == "" {
		return query, nil
	}
	goal := coreGoal
	if goal == "" {
		goal = "Not yet determined"
	}
	profileText := "Unknown"
	if len(profile) > 0 {
		if data, err := json.Marshal(profile); err == nil {
			profileText = string(data)
		}
	}
	prompt := fmt.Sprintf(rewritePrompt, goal, profileText, session.FormatHistory(recent(history, rewriteWindow)), query)
	out, err := chat(ctx, r.client, "", prompt, 256)
	if err != nil {
		return "", fmt.Errorf("query rewrite: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("query rewrite: empty output")
	}
	return out, nil
}

// IntentClassifier 意图分类
type IntentClassifier struct {
	client llm.Client
}

// NewIntentClassifier 创建意图分类器
func NewIntentClassifier(client llm.Client) *IntentClassifier {
	return &IntentClassifier{client: client}
}

// Classify 返回归一化意图；无法识别的输出为 IntentUnknown
func (c *IntentClassifier) Classify(ctx context.Context, query string, history []session.Message) (session.Intent, error) {
	system := fmt.Sprintf(intentPrompt, session.FormatHistory(recent(history, intentWindow)))
	out, err := chat(ctx, c.client, system, query, 16)
	if err != nil {
		return session.IntentUnknown, fmt.Errorf("intent classification: %w", err)
	}
	return session.ParseIntent(out), nil
}

// ProfileExtractor 画像抽取
type ProfileExtractor struct {
	client llm.Client
}

// NewProfileExtractor 创建画像抽取器
func NewProfileExtractor(client llm.Client) *ProfileExtractor {
	return &ProfileExtractor{client: client}
}

// Extract 返回抽取到的字段；null 值保留为 nil，由调用方忽略
func (p *ProfileExtractor) Extract(ctx context.Context, query string, history []session.Message) (map[string]any, error) {
	if query == "" && len(history) == 0 {
		return map[string]any{}, nil
	}
	prompt := fmt.Sprintf(profilePrompt, session.FormatHistory(recent(history, profileWindow)), query)
	out, err := chat(ctx, p.client, "", prompt, 256)
	if err != nil {
		return nil, fmt.Errorf("profile extraction: %w", err)
	}
	return ParseJSONObject(out)
}

// ParseJSONObject 从 LLM 回复中提取 JSON 对象（可能被 markdown 包裹）
func ParseJSONObject(reply string) (map[string]any, error) {
	reply = strings.TrimSpace(reply)
	if idx := strings.Index(reply, "{"); idx >= 0 {
		if end := strings.LastIndex(reply, "}"); end > idx {
			reply = reply[idx : end+1]
		}
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(reply), &out); err != nil {
		return nil, fmt.Errorf("parse json output: %w", err)
	}
	return out, nil
}
