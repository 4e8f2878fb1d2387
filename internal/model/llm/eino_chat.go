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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"admin-assistant/pkg/metrics"
)

// EinoChatClient 基于 eino ChatModel 的客户端，支持流式输出（用于快车道生成）
type EinoChatClient struct {
	provider string
	model    string
	chat     model.BaseChatModel
}

// NewEinoChatClient 包装任意 eino ChatModel
func NewEinoChatClient(provider, modelName string, chat model.BaseChatModel) *EinoChatClient {
	return &EinoChatClient{provider: provider, model: modelName, chat: chat}
}

// NewEinoOpenAIClient 使用 eino-ext OpenAI ChatModel 创建客户端；provider 为空时记为 openai
func NewEinoOpenAIClient(ctx context.Context, provider, modelName, apiKey, baseURL string) (*EinoChatClient, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   modelName,
		APIKey:  apiKey,
		BaseURL: baseURL,
		Timeout: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel 失败: %w", err)
	}
	if provider == "" {
		provider = "openai"
	}
	return NewEinoChatClient(provider, modelName, cm), nil
}

// Generate 生成文本
func (c *EinoChatClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.GenerateWithContext(context.Background(), prompt, options)
}

// GenerateWithContext 使用上下文生成文本
func (c *EinoChatClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{User(prompt)}, options)
}

// Chat 聊天
func (c *EinoChatClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

// ChatWithContext 使用上下文聊天
func (c *EinoChatClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	options = resolveOptions(ctx, options)
	start := time.Now()
	out, err := c.chat.Generate(ctx, toSchema(messages), c.modelOptions(options)...)
	metrics.LLMRequestDuration.WithLabelValues(c.modelName(options)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("eino chat generate: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("eino chat generate: empty message")
	}
	return out.Content, nil
}

// StreamWithContext 逐块回调，返回完整文本
func (c *EinoChatClient) StreamWithContext(ctx context.Context, messages []Message, options GenerateOptions, onChunk func(string) error) (string, error) {
	options = resolveOptions(ctx, options)
	start := time.Now()
	defer func() {
		metrics.LLMRequestDuration.WithLabelValues(c.modelName(options)).Observe(time.Since(start).Seconds())
	}()

	reader, err := c.chat.Stream(ctx, toSchema(messages), c.modelOptions(options)...)
	if err != nil {
		return "", fmt.Errorf("eino chat stream: %w", err)
	}
	defer reader.Close()

	var sb strings.Builder
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), fmt.Errorf("eino chat stream recv: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		sb.WriteString(msg.Content)
		if err := onChunk(msg.Content); err != nil {
			return sb.String(), err
		}
	}
}

// Model 返回模型名称
func (c *EinoChatClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *EinoChatClient) Provider() string { return c.provider }

func (c *EinoChatClient) modelName(options GenerateOptions) string {
	if options.Model != "" {
		return options.Model
	}
	return c.model
}

func (c *EinoChatClient) modelOptions(options GenerateOptions) []model.Option {
	opts := []model.Option{model.WithTemperature(float32(options.Temperature))}
	if options.Model != "" {
		opts = append(opts, model.WithModel(options.Model))
	}
	if options.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(options.MaxTokens))
	}
	if options.TopP > 0 {
		opts = append(opts, model.WithTopP(float32(options.TopP)))
	}
	if len(options.Stop) > 0 {
		opts = append(opts, model.WithStop(options.Stop))
	}
	return opts
}

func toSchema(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
