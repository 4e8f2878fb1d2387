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

// Package expert 慢车道专家工作流：按意图路由到程序指南或法律研究
package expert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admin-assistant/internal/agent/retry"
	"admin-assistant/internal/model/llm"
	"admin-assistant/internal/pipeline/common"
	"admin-assistant/internal/runtime/session"
	"admin-assistant/pkg/errors"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/metrics"
	"admin-assistant/pkg/tracing"
)

// Searcher 知识库检索
type Searcher interface {
	Search(ctx context.Context, query, domain string, profile map[string]any) ([]*common.Document, error)
}

// Result 专家执行结果；Context 为回答所依据的文档文本，供幻觉检查
type Result struct {
	Agent     string
	Answer    string
	Step      session.Step
	Context   string
	Documents []*common.Document
}

// Agent 单个专家
type Agent interface {
	Name() string
	Run(ctx context.Context, query string, state *session.AgentState) (*Result, error)
}

// Router 意图到专家的路由
type Router struct {
	legal     Agent
	procedure Agent
}

// NewRouter 创建路由
func NewRouter(legal, procedure Agent) *Router {
	return &Router{legal: legal, procedure: procedure}
}

// Route LEGAL_INQUIRY → 法律研究；COMPLEX_PROCEDURE / FORM_FILLING → 程序指南
func (r *Router) Route(intent session.Intent) (Agent, bool) {
	switch intent {
	case session.IntentLegalInquiry:
		return r.legal, r.legal != nil
	case session.IntentComplexProcedure, session.IntentFormFilling:
		return r.procedure, r.procedure != nil
	}
	return nil, false
}

// Run 路由并执行；state.Intent 决定专家
func (r *Router) Run(ctx context.Context, query string, state *session.AgentState) (*Result, error) {
	agent, ok := r.Route(state.Intent)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidArg, "no expert for intent %s", state.Intent)
	}
	return agent.Run(ctx, query, state)
}

// caller 带重试、指标与追踪的 LLM 调用
type caller struct {
	client llm.Client
	retry  retry.Config
	logger *log.Logger
}

func (c *caller) call(ctx context.Context, op, prompt string, maxTokens int) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("%s: llm client not configured", op)
	}
	model := llm.ModelOverride(ctx)
	if model == "" {
		model = c.client.Model()
	}
	return retry.DoValue(ctx, c.retry, c.logger, op, func(ctx context.Context) (string, error) {
		ctx, span := tracing.StartLLMSpan(ctx, model, op)
		start := time.Now()
		out, err := c.client.ChatWithContext(ctx, []llm.Message{llm.User(prompt)},
			llm.GenerateOptions{Temperature: 0, MaxTokens: maxTokens})
		metrics.LLMRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	})
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
