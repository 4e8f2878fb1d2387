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
	"time"
	"unicode/utf8"

	"admin-assistant/pkg/metrics"
)

// RateLimitedClient 按 provider 对 LLM 调用做请求数与 token 数限流
type RateLimitedClient struct {
	inner   Client
	limiter *LLMRateLimiter
}

// NewRateLimitedClient limiter 为 nil 时直接调用 inner
func NewRateLimitedClient(inner Client, limiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

func (c *RateLimitedClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.GenerateWithContext(context.Background(), prompt, options)
}

func (c *RateLimitedClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{User(prompt)}, options)
}

func (c *RateLimitedClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

func (c *RateLimitedClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	release, err := c.acquire(ctx, messages, options)
	if err != nil {
		return "", err
	}
	defer release()
	return c.inner.ChatWithContext(ctx, messages, options)
}

// StreamWithContext 许可在整个流结束后才释放
func (c *RateLimitedClient) StreamWithContext(ctx context.Context, messages []Message, options GenerateOptions, onChunk func(string) error) (string, error) {
	release, err := c.acquire(ctx, messages, options)
	if err != nil {
		return "", err
	}
	defer release()
	return Stream(ctx, c.inner, messages, options, onChunk)
}

func (c *RateLimitedClient) Model() string { return c.inner.Model() }

func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

func (c *RateLimitedClient) acquire(ctx context.Context, messages []Message, options GenerateOptions) (func(), error) {
	if c.limiter == nil {
		return func() {}, nil
	}
	provider := c.inner.Provider()
	start := time.Now()
	release, err := c.limiter.Acquire(ctx, provider, estimateTokens(messages, options.MaxTokens))
	if err != nil {
		return nil, err
	}
	metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(time.Since(start).Seconds())
	return release, nil
}

// estimateTokens 按字符数粗估：约 4 个字符 1 个 token，再加上输出上限
func estimateTokens(messages []Message, maxTokens int) int {
	chars := 0
	for _, m := range messages {
		chars += utf8.RuneCountInString(m.Content)
	}
	n := chars/4 + max(maxTokens, 0)
	return max(n, 1)
}
