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

package llm

import (
	"context"
	"fmt"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client LLM 客户端接口
type Client interface {
	// Generate 单轮生成
	Generate(prompt string, options GenerateOptions) (string, error)
	// GenerateWithContext 使用上下文生成
	GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	// Chat 多轮聊天
	Chat(messages []Message, options GenerateOptions) (string, error)
	// ChatWithContext 使用上下文聊天
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// StreamClient 支持增量输出的客户端；onChunk 返回错误时中止流
type StreamClient interface {
	Client
	StreamWithContext(ctx context.Context, messages []Message, options GenerateOptions, onChunk func(chunk string) error) (string, error)
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Model       string   `json:"model,omitempty"` // 覆盖默认模型
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// System 构造 system 消息
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User 构造 user 消息
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant 构造 assistant 消息
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// NewClient 按 provider 创建 LLM 客户端；openai / qwen / deepseek 等均走 OpenAI 兼容接口
func NewClient(provider, model, apiKey, baseURL string) (Client, error) {
	switch provider {
	case "openai", "qwen", "deepseek", "mistral", "":
		c, err := NewOpenAIClientWithBaseURL(model, apiKey, baseURL)
		if err != nil {
			return nil, err
		}
		if provider != "" {
			c.provider = provider
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

// Stream 若 client 支持流式则逐块回调，否则整段作为一个 chunk 回调
func Stream(ctx context.Context, client Client, messages []Message, options GenerateOptions, onChunk func(string) error) (string, error) {
	if sc, ok := client.(StreamClient); ok {
		return sc.StreamWithContext(ctx, messages, options, onChunk)
	}
	text, err := client.ChatWithContext(ctx, messages, options)
	if err != nil {
		return "", err
	}
	if err := onChunk(text); err != nil {
		return text, err
	}
	return text, nil
}

type modelOverrideKey struct{}

// WithModelOverride 在请求范围内覆盖模型；GenerateOptions.Model 非空时优先
func WithModelOverride(ctx context.Context, model string) context.Context {
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelOverrideKey{}, model)
}

// ModelOverride 读取请求范围的模型覆盖
func ModelOverride(ctx context.Context) string {
	if v, ok := ctx.Value(modelOverrideKey{}).(string); ok {
		return v
	}
	return ""
}

func resolveOptions(ctx context.Context, options GenerateOptions) GenerateOptions {
	if options.Model == "" {
		options.Model = ModelOverride(ctx)
	}
	return options
}
