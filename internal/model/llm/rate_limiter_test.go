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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMRateLimiter_Concurrency(t *testing.T) {
	l := NewLLMRateLimiter(map[string]LLMLimitConfig{"fake": {MaxConcurrent: 1}}, nil)

	release, err := l.Acquire(context.Background(), "fake", 10)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "fake", 10)
	assert.Error(t, err, "second acquire should block until ctx deadline")

	release()
	release() // 重复释放无副作用
	release2, err := l.Acquire(context.Background(), "fake", 10)
	require.NoError(t, err)
	release2()
}

func TestLLMRateLimiter_DefaultsForUnknownProvider(t *testing.T) {
	l := NewLLMRateLimiter(nil, &LLMLimitConfig{RequestsPerMinute: 6000, TokensPerMinute: 600})
	release, err := l.Acquire(context.Background(), "other", 1000000)
	require.NoError(t, err, "oversized estimate is clamped to burst")
	release()
}

func TestRateLimitedClient(t *testing.T) {
	f := &fakeClient{reply: "ok"}
	c := NewRateLimitedClient(f, NewLLMRateLimiter(nil, nil))

	out, err := c.ChatWithContext(context.Background(), []Message{User("bonjour")}, GenerateOptions{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	out, err = c.Generate("bonjour", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, "fake", c.Provider())

	var chunks []string
	_, err = c.StreamWithContext(context.Background(), []Message{User("x")}, GenerateOptions{}, func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, chunks)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, estimateTokens(nil, 0))
	assert.Equal(t, 2+100, estimateTokens([]Message{User("1234"), Assistant("5678")}, 100))
	// 按字符而非字节计数
	assert.Equal(t, 2, estimateTokens([]Message{User("séjourée")}, -1))
}
