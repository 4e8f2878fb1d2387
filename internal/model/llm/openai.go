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
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"admin-assistant/pkg/metrics"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	openAIRequestTimeout = 30 * time.Second
)

// OpenAIClient OpenAI 兼容的 chat/completions 客户端（openai / qwen / deepseek / mistral）
type OpenAIClient struct {
	provider string
	model    string
	client   *resty.Client
}

// NewOpenAIClient 使用默认地址或 OPENAI_BASE_URL
func NewOpenAIClient(model, apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithBaseURL(model, apiKey, "")
}

// NewOpenAIClientWithBaseURL baseURL 为空时用 OPENAI_BASE_URL，再退回官方地址。
// 不做 HTTP 级重试，重试由调用点决定
func NewOpenAIClientWithBaseURL(model, apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai client requires an api key")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(openAIRequestTimeout)
	return &OpenAIClient{provider: "openai", model: model, client: client}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// APIError 非 200 响应
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable 限流与服务端错误可重试，鉴权和请求错误不可
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (c *OpenAIClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.GenerateWithContext(context.Background(), prompt, options)
}

func (c *OpenAIClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{User(prompt)}, options)
}

func (c *OpenAIClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

// ChatWithContext 调用 /chat/completions；ctx 中的模型覆盖优先于客户端默认模型
func (c *OpenAIClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	options = resolveOptions(ctx, options)
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       model,
			Messages:    messages,
			Temperature: options.Temperature,
			MaxTokens:   options.MaxTokens,
			TopP:        options.TopP,
			Stop:        options.Stop,
		}).
		Post("/chat/completions")
	metrics.LLMRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%s chat request: %w", c.provider, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", c.apiError(resp)
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%s chat response: %w", c.provider, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s chat response has no choices", c.provider)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) apiError(resp *resty.Response) *APIError {
	msg := strings.TrimSpace(resp.String())
	var er errorResponse
	if json.Unmarshal(resp.Body(), &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}
	return &APIError{Provider: c.provider, StatusCode: resp.StatusCode(), Message: msg}
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Provider() string { return c.provider }
