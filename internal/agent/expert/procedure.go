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

package expert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"admin-assistant/internal/agent/retry"
	"admin-assistant/internal/agent/topics"
	"admin-assistant/internal/model/llm"
	"admin-assistant/internal/pipeline/common"
	"admin-assistant/internal/pipeline/query"
	"admin-assistant/internal/runtime/session"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/metrics"
)

// NoProcedureFound 程序检索为空时的固定回答
const NoProcedureFound = "Je ne trouve pas de procédure correspondant exactement à votre demande sur service-public.fr."

const stepPrompt = `You are a French Administrative Procedure Guide.
Analyze the conversation history and the user's latest query to determine the next logical step.

Current known user profile: %s
Conversation History:
%s
Latest query: %s

%s

Possible Steps:
1. CLARIFICATION: Essential information is missing (e.g. nationality, age, status) to identify the correct procedure.
2. RETRIEVAL: We have enough info to find the procedure.
3. EXPLANATION: We have the procedure content, need to explain the next step to the user.
4. COMPLETED: The procedure is finished.

Return ONLY the step name (CLARIFICATION, RETRIEVAL, EXPLANATION, or COMPLETED).`

const clarifyPrompt = `You are helping a user with a French administrative procedure.
You need more information to identify the correct process.

User asks: %s
Known profile: %s

%s

%s

What is the ONE key piece of information still missing? Ask for it with a single polite, concise question in French.`

const explainPrompt = `You are a Guide for French Administration.
Explain the procedure clearly based on the provided context.
Use step-by-step formatting (1., 2., 3.).

Context:
%s

User Question: %s

Response (in French):`

const (
	procedureHistoryWindow = 5
	procedureDocChars      = 2000
)

// ProcedureAgent 程序指南：判定下一步（与程序检索并发），需要时追问一个问题，否则逐步讲解
type ProcedureAgent struct {
	caller
	searcher Searcher
	topics   *topics.Registry
}

// NewProcedureAgent 创建程序指南；registry 可为 nil
func NewProcedureAgent(client llm.Client, searcher Searcher, registry *topics.Registry, cfg retry.Config, logger *log.Logger) *ProcedureAgent {
	return &ProcedureAgent{
		caller:   caller{client: client, retry: cfg, logger: log.OrDefault(logger)},
		searcher: searcher,
		topics:   registry,
	}
}

// Name 专家名
func (a *ProcedureAgent) Name() string { return "procedure_guide" }

// Run 设置 state.CurrentStep 并返回回答
func (a *ProcedureAgent) Run(ctx context.Context, q string, state *session.AgentState) (*Result, error) {
	profile := state.UserProfile.Snapshot()
	topic, fragment := a.topicFragment(q, state.Intent, profile)

	var (
		step session.Step
		docs []*common.Document
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		step = a.determineStep(gctx, q, state, profile, fragment)
		return nil
	})
	g.Go(func() error {
		docs = a.search(gctx, q, profile)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state.CurrentStep = step
	a.logger.Info("程序指南判定下一步", "session_id", state.SessionID, "step", step, "topic", topic, "docs", len(docs))

	res := &Result{Agent: a.Name(), Step: step, Documents: docs}
	if step == session.StepClarification {
		answer, err := a.call(ctx, "procedure_clarify", fmt.Sprintf(clarifyPrompt, q, toJSON(profile), fragment, a.globalRules()), 256)
		if err != nil {
			return nil, err
		}
		res.Answer = answer
		return res, nil
	}

	if len(docs) == 0 {
		res.Answer = NoProcedureFound
		return res, nil
	}
	res.Context = formatProcedureContext(docs)
	answer, err := a.call(ctx, "procedure_explain", fmt.Sprintf(explainPrompt, res.Context, q), 1024)
	if err != nil {
		return nil, err
	}
	res.Answer = answer
	return res, nil
}

func (a *ProcedureAgent) topicFragment(q string, intent session.Intent, profile map[string]any) (string, string) {
	if a.topics == nil {
		return "", ""
	}
	topic := a.topics.Detect(q, intent)
	metrics.TopicDetection.WithLabelValues(topic).Inc()
	return topic, a.topics.PromptFragment(topic, profile, q)
}

func (a *ProcedureAgent) globalRules() string {
	if a.topics == nil {
		return ""
	}
	return a.topics.GlobalRules()
}

// determineStep 失败时退回 RETRIEVAL
func (a *ProcedureAgent) determineStep(ctx context.Context, q string, state *session.AgentState, profile map[string]any, fragment string) session.Step {
	history := session.FormatHistory(state.Recent(procedureHistoryWindow))
	out, err := a.call(ctx, "procedure_step", fmt.Sprintf(stepPrompt, toJSON(profile), history, q, fragment), 16)
	if err != nil {
		metrics.CollaboratorFallbacks.WithLabelValues("procedure_step").Inc()
		a.logger.Warn("判定步骤失败，默认检索", "session_id", state.SessionID, "error", err)
		return session.StepRetrieval
	}
	return session.ParseStep(out)
}

func (a *ProcedureAgent) search(ctx context.Context, q string, profile map[string]any) []*common.Document {
	if a.searcher == nil {
		return nil
	}
	docs, err := a.searcher.Search(ctx, q, query.DomainProcedure, profile)
	if err != nil {
		a.logger.Warn("程序检索失败", "error", err)
		return nil
	}
	return docs
}

func formatProcedureContext(docs []*common.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, truncateRunes(strings.TrimSpace(d.Content), procedureDocChars))
	}
	return strings.Join(parts, "\n\n")
}

func toJSON(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
