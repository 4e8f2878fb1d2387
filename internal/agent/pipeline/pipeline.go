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

// Package pipeline 编排每轮查询的预处理：目标锁定、查询改写、续答检测、意图分类与画像抽取
package pipeline

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"admin-assistant/internal/runtime/session"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/metrics"
)

// ShortAnswerMaxWords 续答判定的词数上限
const ShortAnswerMaxWords = 5

// GoalExtractor 目标抽取协作者
type GoalExtractor interface {
	Extract(ctx context.Context, query string, history []session.Message, currentGoal string) (string, error)
}

// QueryRewriter 查询改写协作者
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string, history []session.Message, coreGoal string, profile map[string]any) (string, error)
}

// IntentClassifier 意图分类协作者
type IntentClassifier interface {
	Classify(ctx context.Context, query string, history []session.Message) (session.Intent, error)
}

// ProfileExtractor 画像抽取协作者
type ProfileExtractor interface {
	Extract(ctx context.Context, query string, history []session.Message) (map[string]any, error)
}

// Input 单次运行的输入
type Input struct {
	Query                string
	History              []session.Message
	CurrentGoal          string
	Profile              map[string]any
	ClarificationPending bool
}

// GoalOutcome 目标抽取结果；FallbackUsed 表示协作者失败后保留了原目标
type GoalOutcome struct {
	Goal         string
	FallbackUsed bool
}

// RewriteOutcome 改写结果；FallbackUsed 表示使用了原始查询
type RewriteOutcome struct {
	Query        string
	FallbackUsed bool
}

// IntentOutcome 分类结果
type IntentOutcome struct {
	Intent       session.Intent
	ShortCircuit bool
	FallbackUsed bool
}

// ProfileOutcome 画像抽取结果；失败时 Fields 为空
type ProfileOutcome struct {
	Fields       map[string]any
	FallbackUsed bool
}

// Result 预处理结果，返回后不再修改
type Result struct {
	RewrittenQuery           string
	Intent                   session.Intent
	ExtractedProfile         map[string]any
	NewCoreGoal              string
	IsContextualContinuation bool

	Goal    GoalOutcome
	Rewrite RewriteOutcome
	Class   IntentOutcome
	Profile ProfileOutcome
}

// Pipeline 查询预处理流水线
type Pipeline struct {
	goals      GoalExtractor
	rewriter   QueryRewriter
	classifier IntentClassifier
	profiler   ProfileExtractor
	logger     *log.Logger
}

// New 创建流水线；任一协作者为 nil 时该步骤直接走回退值
func New(goals GoalExtractor, rewriter QueryRewriter, classifier IntentClassifier, profiler ProfileExtractor, logger *log.Logger) *Pipeline {
	return &Pipeline{
		goals:      goals,
		rewriter:   rewriter,
		classifier: classifier,
		profiler:   profiler,
		logger:     log.OrDefault(logger),
	}
}

// Run 目标 → 改写 → 续答检测 → 意图 顺序执行；画像抽取与之并发，在返回前汇合
func (p *Pipeline) Run(ctx context.Context, in Input) *Result {
	var profile ProfileOutcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile = p.extractProfile(gctx, in)
		return nil
	})

	res := &Result{}
	res.Goal = p.extractGoal(ctx, in)
	res.NewCoreGoal = res.Goal.Goal

	res.Rewrite = p.rewrite(ctx, in, res.NewCoreGoal)
	res.RewrittenQuery = res.Rewrite.Query

	res.IsContextualContinuation = IsContextualContinuation(in.Query, in.History, in.ClarificationPending)
	res.Class = p.classify(ctx, in, res.RewrittenQuery, res.IsContextualContinuation)
	res.Intent = res.Class.Intent

	_ = g.Wait()
	res.Profile = profile
	res.ExtractedProfile = profile.Fields
	return res
}

func (p *Pipeline) extractGoal(ctx context.Context, in Input) GoalOutcome {
	if p.goals == nil {
		return GoalOutcome{Goal: in.CurrentGoal, FallbackUsed: true}
	}
	raw, err := p.goals.Extract(ctx, in.Query, in.History, in.CurrentGoal)
	if err != nil {
		p.fallback("goal", err)
		return GoalOutcome{Goal: in.CurrentGoal, FallbackUsed: true}
	}
	if IsNoGoal(raw) {
		return GoalOutcome{Goal: in.CurrentGoal}
	}
	return GoalOutcome{Goal: strings.TrimSpace(raw)}
}

func (p *Pipeline) rewrite(ctx context.Context, in Input, goal string) RewriteOutcome {
	if p.rewriter == nil {
		return RewriteOutcome{Query: in.Query, FallbackUsed: true}
	}
	out, err := p.rewriter.Rewrite(ctx, in.Query, in.History, goal, in.Profile)
	if err != nil || strings.TrimSpace(out) == "" {
		p.fallback("rewrite", err)
		return RewriteOutcome{Query: in.Query, FallbackUsed: true}
	}
	return RewriteOutcome{Query: strings.TrimSpace(out)}
}

func (p *Pipeline) classify(ctx context.Context, in Input, query string, continuation bool) IntentOutcome {
	if continuation {
		return IntentOutcome{Intent: session.IntentContinuation, ShortCircuit: true}
	}
	if p.classifier == nil {
		return IntentOutcome{Intent: session.IntentUnknown, FallbackUsed: true}
	}
	intent, err := p.classifier.Classify(ctx, query, in.History)
	if err != nil {
		p.fallback("intent", err)
		return IntentOutcome{Intent: session.IntentUnknown, FallbackUsed: true}
	}
	return IntentOutcome{Intent: intent}
}

func (p *Pipeline) extractProfile(ctx context.Context, in Input) ProfileOutcome {
	if p.profiler == nil {
		return ProfileOutcome{Fields: map[string]any{}, FallbackUsed: true}
	}
	fields, err := p.profiler.Extract(ctx, in.Query, in.History)
	if err != nil {
		p.fallback("profile", err)
		return ProfileOutcome{Fields: map[string]any{}, FallbackUsed: true}
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return ProfileOutcome{Fields: fields}
}

func (p *Pipeline) fallback(step string, err error) {
	metrics.CollaboratorFallbacks.WithLabelValues(step).Inc()
	p.logger.Warn("预处理步骤失败，使用回退值", "step", step, "error", err)
}

// IsNoGoal 判断目标抽取的“暂无目标”哨兵
func IsNoGoal(raw string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(raw), "\"'.")) {
	case "", "null", "none", "no-goal", "no goal":
		return true
	}
	return false
}

// WordCount 按空白切分的词数
func WordCount(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// IsShortAnswer 词数不超过 ShortAnswerMaxWords
func IsShortAnswer(query string) bool {
	return WordCount(query) <= ShortAnswerMaxWords
}

// LastTurnWasQuestion 历史最后一条为 AI 消息且包含问号
func LastTurnWasQuestion(history []session.Message) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	return last.IsAI() && strings.Contains(last.Content, "?")
}

// IsContextualContinuation (clarificationPending 或上一轮为提问) 且为短回答
func IsContextualContinuation(query string, history []session.Message, clarificationPending bool) bool {
	return (clarificationPending || LastTurnWasQuestion(history)) && IsShortAnswer(query)
}
