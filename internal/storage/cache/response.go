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

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"admin-assistant/pkg/errors"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/metrics"
)

// DefaultResponseTTL 回复缓存默认有效期
const DefaultResponseTTL = time.Hour

// ResponseCache 以 (query, languageHint, sessionID) 为键缓存最终回复。
// 所有存储错误都被记录后吞掉，调用方按未命中处理。
type ResponseCache struct {
	store  Store
	ttl    time.Duration
	bypass bool
	logger *log.Logger
}

// ResponseCacheOption 配置项
type ResponseCacheOption func(*ResponseCache)

// WithTTL 覆盖默认 TTL
func WithTTL(ttl time.Duration) ResponseCacheOption {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithBypass 开启后 Get 永不命中、Set 不写入
func WithBypass(bypass bool) ResponseCacheOption {
	return func(c *ResponseCache) { c.bypass = bypass }
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) ResponseCacheOption {
	return func(c *ResponseCache) { c.logger = l }
}

// NewResponseCache 创建回复缓存；store 为 nil 时等价于 bypass
func NewResponseCache(store Store, opts ...ResponseCacheOption) *ResponseCache {
	c := &ResponseCache{store: store, ttl: DefaultResponseTTL}
	for _, o := range opts {
		o(c)
	}
	c.logger = log.OrDefault(c.logger)
	if store == nil {
		c.bypass = true
	}
	return c
}

// Key 计算缓存键；三个字段以 \x00 分隔避免拼接歧义
func Key(query, languageHint, sessionID string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(languageHint))
	h.Write([]byte{0})
	h.Write([]byte(sessionID))
	return hex.EncodeToString(h.Sum(nil))
}

// Get 返回缓存的回复及是否命中
func (c *ResponseCache) Get(ctx context.Context, query, languageHint, sessionID string) (string, bool) {
	if c.bypass {
		metrics.CacheRequests.WithLabelValues("bypass").Inc()
		return "", false
	}
	var resp string
	if err := c.store.Get(ctx, Key(query, languageHint, sessionID), &resp); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			c.logger.Warn("response cache get failed", "session_id", sessionID, "error", err)
		}
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return "", false
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return resp, true
}

// Set 写入回复；失败只记日志
func (c *ResponseCache) Set(ctx context.Context, query, languageHint, sessionID, response string) {
	if c.bypass {
		return
	}
	if err := c.store.Set(ctx, Key(query, languageHint, sessionID), response, c.ttl); err != nil {
		c.logger.Warn("response cache set failed", "error", err)
	}
}

// Clear 清空回复缓存
func (c *ResponseCache) Clear(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Clear(ctx)
}

// Bypass 是否处于旁路模式
func (c *ResponseCache) Bypass() bool { return c.bypass }
