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

// Package orchestrator 每轮对话的驱动：缓存 → 状态 → 预处理 → 语言 → 护栏 → 快/慢车道 → 幻觉检查 → 持久化 → 本地化 → 写缓存
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"admin-assistant/internal/agent/expert"
	"admin-assistant/internal/agent/guardrail"
	"admin-assistant/internal/agent/language"
	"admin-assistant/internal/agent/pipeline"
	"admin-assistant/internal/agent/retry"
	"admin-assistant/internal/model/llm"
	"admin-assistant/internal/pipeline/common"
	"admin-assistant/internal/runtime/session"
	"admin-assistant/pkg/errors"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/metrics"
	"admin-assistant/pkg/tracing"
)

// DefaultTurnTimeout 单轮墙钟预算
const DefaultTurnTimeout = 60 * time.Second

// Outcome 单轮结果分类
type Outcome string

const (
	OutcomeCacheHit Outcome = "cache_hit"
	OutcomeAnswered Outcome = "answered"
	OutcomeRejected Outcome = "rejected"
	OutcomeFallback Outcome = "fallback"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeError    Outcome = "error"
)

// 车道
const (
	LaneCache     = "cache"
	LaneGuardrail = "guardrail"
	LaneFast      = "fast"
	LaneSlow      = "slow"
	LaneNone      = "none"
)

// StateManager 会话状态读写；Load 失败时返回新状态，Save 失败只返回 false
type StateManager interface {
	Load(ctx context.Context, sessionID string) *session.AgentState
	Save(ctx context.Context, state *session.AgentState) bool
}

// ResponseCache 最终回答缓存
type ResponseCache interface {
	Get(ctx context.Context, query, languageHint, sessionID string) (string, bool)
	Set(ctx context.Context, query, languageHint, sessionID, response string)
}

// Preprocessor 查询预处理流水线
type Preprocessor interface {
	Run(ctx context.Context, in pipeline.Input) *pipeline.Result
}

// TopicValidator 话题护栏
type TopicValidator interface {
	Validate(ctx context.Context, query string, history []session.Message) (guardrail.Verdict, error)
}

// InjectionScreen 提示注入拦截
type InjectionScreen interface {
	Validate(query string) (bool, string)
}

// GroundingChecker 幻觉检查
type GroundingChecker interface {
	Check(ctx context.Context, contextText, answer, query string, history []session.Message) (bool, error)
}

// Retriever 知识库检索
type Retriever interface {
	Search(ctx context.Context, query, domain string, profile map[string]any) ([]*common.Document, error)
}

// Generator 回答生成
type Generator interface {
	Complete(ctx context.Context, messages []llm.Message, model string) (string, error)
	Stream(ctx context.Context, messages []llm.Message, model string, onChunk func(string) error) (string, error)
}

// Expert 慢车道专家工作流
type Expert interface {
	Run(ctx context.Context, query string, state *session.AgentState) (*expert.Result, error)
}

// Translator 翻译
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Config 编排参数
type Config struct {
	WorkingLanguage            string
	TurnTimeout                time.Duration
	HistoryWindow              int
	RetrievalDomain            string
	SlowLaneHallucinationCheck bool
	InjectionGuard             bool
	Retry                      retry.Config
}

// Dependencies 协作者；Cache / Injection / Grounding / Translator 可为 nil
type Dependencies struct {
	States     StateManager
	Cache      ResponseCache
	Pipeline   Preprocessor
	Topic      TopicValidator
	Injection  InjectionScreen
	Grounding  GroundingChecker
	Retriever  Retriever
	Generator  Generator
	Expert     Expert
	Translator Translator
	Logger     *log.Logger
}

// Request 单轮请求
type Request struct {
	SessionID   string
	Query       string
	Language    string // 调用方显式语言（代码或名称），可为空
	Model       string // 本轮模型覆盖，可为空
	BypassCache bool
}

// Answer 单轮结果
type Answer struct {
	SessionID string
	Text      string
	Language  string
	Outcome   Outcome
	Lane      string
	Intent    session.Intent
	Duration  time.Duration

	streamed bool
}

// Orchestrator 单轮对话驱动，不持有跨会话的可变状态
type Orchestrator struct {
	cfg  Config
	deps Dependencies
	log  *log.Logger
}

// New 创建 Orchestrator；States / Pipeline / Topic / Retriever / Generator / Expert 必须提供
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.States == nil:
		return nil, errors.Wrap(errors.ErrInvalidArg, "state manager is required")
	case deps.Pipeline == nil:
		return nil, errors.Wrap(errors.ErrInvalidArg, "query pipeline is required")
	case deps.Topic == nil:
		return nil, errors.Wrap(errors.ErrInvalidArg, "topic guardrail is required")
	case deps.Retriever == nil:
		return nil, errors.Wrap(errors.ErrInvalidArg, "retriever is required")
	case deps.Generator == nil:
		return nil, errors.Wrap(errors.ErrInvalidArg, "generator is required")
	case deps.Expert == nil:
		return nil, errors.Wrap(errors.ErrInvalidArg, "expert workflow is required")
	}
	if cfg.WorkingLanguage == "" {
		cfg.WorkingLanguage = language.Default
	}
	cfg.WorkingLanguage = language.Normalize(cfg.WorkingLanguage)
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 6
	}
	if cfg.RetrievalDomain == "" {
		cfg.RetrievalDomain = "general"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Orchestrator{cfg: cfg, deps: deps, log: log.OrDefault(deps.Logger)}, nil
}

func (r Request) validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return errors.Wrap(errors.ErrInvalidArg, "session id is required")
	}
	if strings.TrimSpace(r.Query) == "" {
		return errors.Wrap(errors.ErrInvalidArg, "query is required")
	}
	return nil
}

// Handle 执行一轮对话；只有参数非法时返回 error，其余情况总有回答
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Answer, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return o.run(ctx, req, nil, false), nil
}

// Stream 流式执行一轮对话；通道以 done 事件结束并关闭
func (o *Orchestrator) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	em := newEmitter(ctx)
	go func() {
		ans := o.run(ctx, req, em, true)
		em.finish(ans)
	}()
	return em.ch, nil
}

// run 施加超时、恢复 panic、记录指标与追踪
func (o *Orchestrator) run(ctx context.Context, req Request, em *emitter, stream bool) *Answer {
	start := time.Now()
	ctx, span := tracing.StartTurnSpan(ctx, req.SessionID, stream)
	if req.Model != "" {
		ctx = llm.WithModelOverride(ctx, req.Model)
	}
	tctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	hint := language.Normalize(req.Language)
	logger := o.log.With("session_id", req.SessionID)

	done := make(chan *Answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("turn panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				done <- &Answer{Text: ApologyMessage(hint), Language: languageOr(hint), Outcome: OutcomeError, Lane: LaneNone}
			}
		}()
		t := &turn{o: o, req: req, hint: hint, em: em, log: logger}
		done <- t.execute(tctx)
	}()

	var ans *Answer
	select {
	case ans = <-done:
	case <-tctx.Done():
		ans = &Answer{Text: TimeoutMessage(hint), Language: languageOr(hint), Outcome: OutcomeTimeout, Lane: LaneNone}
		logger.Info("turn timed out", "timeout", o.cfg.TurnTimeout)
	}
	ans.SessionID = req.SessionID
	ans.Duration = time.Since(start)

	metrics.TurnDuration.WithLabelValues(ans.Lane).Observe(ans.Duration.Seconds())
	metrics.TurnTotal.WithLabelValues(string(ans.Outcome)).Inc()
	var spanErr error
	if ans.Outcome == OutcomeError {
		spanErr = fmt.Errorf("turn failed")
	}
	tracing.EndSpan(span, spanErr)
	return ans
}

func languageOr(lang string) string {
	if lang == "" {
		return language.Default
	}
	return lang
}
