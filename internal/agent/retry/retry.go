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

// Package retry 为生成与专家调用提供有界指数退避重试
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"admin-assistant/pkg/config"
	"admin-assistant/pkg/log"
)

// Config 重试策略
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig 3 次尝试，2s 起指数增长，上限 10s
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, InitialInterval: 2 * time.Second, MaxInterval: 10 * time.Second}
}

// FromConfig 从配置构造，非法值使用默认
func FromConfig(c config.RetryConfig) Config {
	def := DefaultConfig()
	out := Config{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: config.Duration(c.InitialInterval, def.InitialInterval),
		MaxInterval:     config.Duration(c.MaxInterval, def.MaxInterval),
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	return out
}

// Permanent 标记不应重试的错误
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// retryable 由错误自身声明是否可重试，如 LLM 接口的 4xx
type retryable interface {
	Retryable() bool
}

func classify(err error) error {
	var r retryable
	if errors.As(err, &r) && !r.Retryable() {
		return backoff.Permanent(err)
	}
	return err
}

func (c Config) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do 执行 fn，失败按退避重试，最多 MaxAttempts 次；返回最后一次错误
func Do(ctx context.Context, cfg Config, logger *log.Logger, op string, fn func(ctx context.Context) error) error {
	logger = log.OrDefault(logger)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		if err := fn(ctx); err != nil {
			return classify(err)
		}
		return nil
	}, cfg.policy(ctx), func(err error, wait time.Duration) {
		logger.Warn("调用失败，准备重试", "op", op, "attempt", attempt, "wait", wait, "error", err)
	})
}

// DoValue 同 Do，返回 fn 的结果
func DoValue[T any](ctx context.Context, cfg Config, logger *log.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, cfg, logger, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
