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

package orchestrator

import (
	"context"
	"strings"

	"admin-assistant/internal/agent/guardrail"
	"admin-assistant/internal/agent/language"
	"admin-assistant/internal/agent/pipeline"
	"admin-assistant/internal/agent/retry"
	"admin-assistant/internal/model/llm"
	"admin-assistant/internal/pipeline/common"
	"admin-assistant/internal/pipeline/query"
	"admin-assistant/internal/runtime/session"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/metrics"
	"admin-assistant/pkg/tracing"
)

// turn 单轮执行上下文，只在一个 goroutine 内使用
type turn struct {
	o    *Orchestrator
	req  Request
	hint string
	em   *emitter
	log  *log.Logger

	state *session.AgentState
	lang  string
}

// laneResult 车道输出；localized 为 true 时 answer 已是目标语言，不再翻译
type laneResult struct {
	answer    string
	outcome   Outcome
	localized bool
	streamed  bool
	cacheable bool
}

func (t *turn) execute(ctx context.Context) *Answer {
	o := t.o
	if !t.req.BypassCache && o.deps.Cache != nil {
		if cached, ok := o.deps.Cache.Get(ctx, t.req.Query, t.hint, t.req.SessionID); ok {
			t.em.status(StatusCache)
			t.log.Info("response cache hit")
			return &Answer{Text: cached, Language: languageOr(t.hint), Outcome: OutcomeCacheHit, Lane: LaneCache}
		}
	}

	t.state = o.deps.States.Load(ctx, t.req.SessionID)
	hasHistory := t.state.HasHistory()

	t.em.status(StatusAnalyzing)
	res := t.preprocess(ctx)

	language.ApplyToState(res.ExtractedProfile, t.req.Language, &t.state.UserProfile, hasHistory)
	t.lang = languageOr(t.state.UserProfile.Language)
	t.log = t.log.With("intent", t.state.Intent, "language", t.lang)

	if !res.IsContextualContinuation {
		if rejected := t.guard(ctx); rejected != nil {
			return rejected
		}
	}

	var (
		lane string
		out  laneResult
	)
	if t.state.Intent.IsComplex() {
		lane = LaneSlow
		out = t.slowLane(ctx, res.RewrittenQuery)
	} else {
		lane = LaneFast
		out = t.fastLane(ctx, res.RewrittenQuery)
		// 快车道回答后不再等待澄清
		t.state.CurrentStep = session.StepNone
	}
	t.log.Info("lane finished", "lane", lane, "outcome", out.outcome)

	t.state.AddHuman(t.req.Query)
	t.state.AddAI(out.answer)
	t.save(ctx)

	final := out.answer
	if !out.localized && language.Normalize(t.lang) != o.cfg.WorkingLanguage {
		final = t.localize(ctx, final)
		out.streamed = false
	}
	if out.outcome != OutcomeError {
		disclaimer := guardrail.Disclaimer(language.Code(t.lang))
		if out.streamed {
			t.em.token("\n\n" + disclaimer)
		}
		final = final + "\n\n" + disclaimer
	}

	if out.cacheable && o.deps.Cache != nil && ctx.Err() == nil {
		o.deps.Cache.Set(ctx, t.req.Query, t.hint, t.req.SessionID, final)
	}
	return &Answer{
		Text:     final,
		Language: t.lang,
		Outcome:  out.outcome,
		Lane:     lane,
		Intent:   t.state.Intent,
		streamed: out.streamed,
	}
}

// preprocess 运行流水线并把结果写入状态；澄清等待中的短回答强制视为续答
func (t *turn) preprocess(ctx context.Context) *pipeline.Result {
	ctx, span := tracing.StartStageSpan(ctx, "pipeline")
	defer tracing.EndSpan(span, nil)

	st := t.state
	res := t.o.deps.Pipeline.Run(ctx, pipeline.Input{
		Query:                t.req.Query,
		History:              st.Messages,
		CurrentGoal:          st.CoreGoal,
		Profile:              st.UserProfile.Snapshot(),
		ClarificationPending: st.CurrentStep.AwaitingAnswer(),
	})
	if st.CurrentStep.AwaitingAnswer() && pipeline.IsShortAnswer(t.req.Query) {
		res.IsContextualContinuation = true
		res.Intent = session.IntentContinuation
	}
	if res.NewCoreGoal != st.CoreGoal {
		t.log.Info("core goal updated", "from", st.CoreGoal, "to", res.NewCoreGoal)
		st.CoreGoal = res.NewCoreGoal
	}
	st.Intent = res.Intent
	st.SetMeta("current_query", res.RewrittenQuery)
	st.SetMeta("contextual_continuation", res.IsContextualContinuation)
	return res
}

// guard 注入拦截与话题校验；拒绝时持久化并返回本地化拒绝文本
func (t *turn) guard(ctx context.Context) *Answer {
	o := t.o
	ctx, span := tracing.StartStageSpan(ctx, "guardrail")
	defer tracing.EndSpan(span, nil)

	reason := ""
	if o.cfg.InjectionGuard && o.deps.Injection != nil {
		if ok, pattern := o.deps.Injection.Validate(t.req.Query); !ok {
			t.log.Warn("prompt injection blocked", "pattern", pattern)
			reason = guardrail.ReasonPromptInjection
		}
	}
	if reason == "" {
		verdict, err := o.deps.Topic.Validate(ctx, t.req.Query, t.state.Messages)
		switch {
		case err != nil:
			metrics.CollaboratorFallbacks.WithLabelValues("topic_guardrail").Inc()
			t.log.Warn("topic guardrail failed, approving", "error", err)
		case !verdict.Approved:
			t.log.Info("query rejected by topic guardrail", "reason", verdict.Reason)
			reason = guardrail.ReasonOffTopic
		}
	}
	if reason == "" {
		return nil
	}

	metrics.GuardrailRejections.WithLabelValues(reason).Inc()
	text := RejectionMessage(t.lang)
	t.state.CurrentStep = session.StepNone
	t.state.AddHuman(t.req.Query)
	t.state.AddAI(text)
	t.save(ctx)
	return &Answer{Text: text, Language: t.lang, Outcome: OutcomeRejected, Lane: LaneGuardrail, Intent: t.state.Intent}
}

// fastLane 检索 + 生成 + 幻觉检查
func (t *turn) fastLane(ctx context.Context, rewritten string) laneResult {
	o := t.o
	searchQuery := rewritten
	if language.Normalize(t.lang) != o.cfg.WorkingLanguage && o.deps.Translator != nil {
		t.em.status(StatusTranslating)
		if translated, err := o.deps.Translator.Translate(ctx, rewritten, o.cfg.WorkingLanguage); err != nil {
			metrics.CollaboratorFallbacks.WithLabelValues("query_translation").Inc()
			t.log.Warn("query translation failed, searching with rewritten query", "error", err)
		} else {
			searchQuery = translated
		}
	}

	t.em.status(StatusRetrieving)
	profile := t.state.UserProfile.Snapshot()
	sctx, span := tracing.StartStageSpan(ctx, "retrieval")
	docs, err := o.deps.Retriever.Search(sctx, searchQuery, o.cfg.RetrievalDomain, profile)
	tracing.EndSpan(span, err)
	if err != nil {
		t.log.Warn("retrieval failed, answering without documents", "stage", common.StageOf(err), "error", err)
		docs = nil
	}
	contextText := query.FormatContext(docs)

	history := session.MessagesToLLM(t.state.Recent(o.cfg.HistoryWindow))
	msgs := query.BuildGroundedPrompt(searchQuery, contextText, history, profile)

	t.em.status(StatusGenerating)
	// 只有无需翻译时才把生成内容直接推给调用方
	live := t.em.live() && language.Normalize(t.lang) == o.cfg.WorkingLanguage
	answer, err := t.generate(ctx, msgs, live)
	if err != nil {
		t.log.Error("generation failed", "stage", common.StageOf(err), "error", err)
		return laneResult{answer: ApologyMessage(t.lang), outcome: OutcomeError, localized: true}
	}

	if !query.IsPlaceholderContext(contextText) && !t.grounded(ctx, contextText, answer, rewritten) {
		fallback := SafeFallbackMessage(t.lang)
		if live {
			t.em.send(Event{Type: EventReplace, Content: fallback})
		}
		return laneResult{answer: fallback, outcome: OutcomeFallback, localized: true, streamed: live}
	}
	return laneResult{answer: answer, outcome: OutcomeAnswered, streamed: live, cacheable: true}
}

func (t *turn) generate(ctx context.Context, msgs []llm.Message, live bool) (string, error) {
	o := t.o
	model := llm.ModelOverride(ctx)
	if !live {
		return retry.DoValue(ctx, o.cfg.Retry, t.log, "generate", func(ctx context.Context) (string, error) {
			out, err := o.deps.Generator.Complete(ctx, msgs, model)
			if common.IsPermanent(err) {
				return "", retry.Permanent(err)
			}
			return out, err
		})
	}
	// 已推送分片后不再重试，避免重复输出
	streamed := false
	return retry.DoValue(ctx, o.cfg.Retry, t.log, "generate_stream", func(ctx context.Context) (string, error) {
		out, err := o.deps.Generator.Stream(ctx, msgs, model, func(chunk string) error {
			streamed = true
			t.em.token(chunk)
			return nil
		})
		if err != nil && (streamed || common.IsPermanent(err)) {
			return "", retry.Permanent(err)
		}
		return strings.TrimSpace(out), err
	})
}

// grounded 幻觉检查；检查器不可用或调用失败时放行
func (t *turn) grounded(ctx context.Context, contextText, answer, q string) bool {
	if t.o.deps.Grounding == nil {
		return true
	}
	t.em.status(StatusVerifying)
	ok, err := t.o.deps.Grounding.Check(ctx, contextText, answer, q, t.state.Recent(2))
	if err != nil {
		metrics.CollaboratorFallbacks.WithLabelValues("hallucination_guardrail").Inc()
		t.log.Warn("hallucination check failed, keeping answer", "error", err)
		return true
	}
	if !ok {
		metrics.GuardrailRejections.WithLabelValues(guardrail.ReasonHallucination).Inc()
		t.log.Info("answer failed grounding check")
	}
	return ok
}

// slowLane 专家工作流；CurrentStep 由专家更新
func (t *turn) slowLane(ctx context.Context, rewritten string) laneResult {
	t.em.status(StatusExpert)
	ctx, span := tracing.StartStageSpan(ctx, "expert")
	res, err := t.o.deps.Expert.Run(ctx, rewritten, t.state)
	tracing.EndSpan(span, err)
	if err != nil {
		t.log.Error("expert workflow failed", "error", err)
		return laneResult{answer: ApologyMessage(t.lang), outcome: OutcomeError, localized: true}
	}
	if t.o.cfg.SlowLaneHallucinationCheck && !query.IsPlaceholderContext(res.Context) &&
		!t.grounded(ctx, res.Context, res.Answer, rewritten) {
		return laneResult{answer: SafeFallbackMessage(t.lang), outcome: OutcomeFallback, localized: true}
	}
	t.state.SetMeta("expert", res.Agent)
	return laneResult{answer: res.Answer, outcome: OutcomeAnswered, cacheable: res.Step != session.StepClarification}
}

func (t *turn) localize(ctx context.Context, text string) string {
	if t.o.deps.Translator == nil {
		return text
	}
	t.em.status(StatusTranslating)
	out, err := t.o.deps.Translator.Translate(ctx, text, language.Normalize(t.lang))
	if err != nil {
		metrics.CollaboratorFallbacks.WithLabelValues("answer_translation").Inc()
		t.log.Warn("answer translation failed, returning working-language answer", "error", err)
		return text
	}
	return out
}

// save 轮次已超时或被取消时不落盘，调用方看到的是超时提示而不是这轮的回答
func (t *turn) save(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		t.log.Warn("turn cancelled, state not persisted", "error", err)
		return
	}
	if !t.o.deps.States.Save(ctx, t.state) {
		t.log.Warn("state not persisted for this turn")
	}
}
