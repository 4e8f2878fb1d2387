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
	"sync"

	"golang.org/x/time/rate"
)

// LLMLimitConfig LLM Provider 限流配置
type LLMLimitConfig struct {
	TokensPerMinute   int     // 每分钟 token 配额
	RequestsPerMinute float64 // 每分钟请求数
	MaxConcurrent     int     // 最大并发请求数
}

// LLMRateLimiter Provider 维度的限流器：请求速率 + token 预算 + 并发
type LLMRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*llmLimiter
	configs  map[string]LLMLimitConfig
	defaults LLMLimitConfig
}

type llmLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
}

// NewLLMRateLimiter 创建 LLM 限流器；defaults 为 nil 时使用内置默认值
func NewLLMRateLimiter(configs map[string]LLMLimitConfig, defaults *LLMLimitConfig) *LLMRateLimiter {
	d := LLMLimitConfig{TokensPerMinute: 90000, RequestsPerMinute: 3500, MaxConcurrent: 50}
	if defaults != nil {
		d = *defaults
	}
	if configs == nil {
		configs = map[string]LLMLimitConfig{}
	}
	return &LLMRateLimiter{
		limiters: make(map[string]*llmLimiter),
		configs:  configs,
		defaults: d,
	}
}

func newLLMLimiter(cfg LLMLimitConfig) *llmLimiter {
	l := &llmLimiter{}
	if cfg.RequestsPerMinute > 0 {
		burst := int(cfg.RequestsPerMinute / 60.0 * 2) // burst = 2 秒的配额
		if burst < 1 {
			burst = 1
		}
		l.requests = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), burst)
	}
	if cfg.TokensPerMinute > 0 {
		burst := cfg.TokensPerMinute / 60 * 2
		if burst < 1 {
			burst = 1
		}
		l.tokens = rate.NewLimiter(rate.Limit(float64(cfg.TokensPerMinute)/60.0), burst)
	}
	if cfg.MaxConcurrent > 0 {
		l.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return l
}

func (l *LLMRateLimiter) limiter(provider string) *llmLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[provider]
	if !ok {
		cfg, found := l.configs[provider]
		if !found {
			cfg = l.defaults
		}
		lim = newLLMLimiter(cfg)
		l.limiters[provider] = lim
	}
	return lim
}

// Acquire 阻塞直到获得执行许可；返回的 release 必须在调用结束后执行
func (l *LLMRateLimiter) Acquire(ctx context.Context, provider string, estimatedTokens int) (release func(), err error) {
	lim := l.limiter(provider)

	if lim.requests != nil {
		if err := lim.requests.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if lim.tokens != nil && estimatedTokens > 0 {
		n := estimatedTokens
		if b := lim.tokens.Burst(); n > b {
			n = b // 单次请求超过 burst 时按 burst 扣减，避免 WaitN 直接报错
		}
		if err := lim.tokens.WaitN(ctx, n); err != nil {
			return nil, fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if lim.semaphore == nil {
		return func() {}, nil
	}
	select {
	case lim.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-lim.semaphore }) }, nil
}
