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
	"fmt"
	"strings"

	"admin-assistant/internal/agent/retry"
	"admin-assistant/internal/model/llm"
	"admin-assistant/internal/pipeline/common"
	"admin-assistant/internal/pipeline/query"
	"admin-assistant/internal/runtime/session"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/metrics"
)

// NoOfficialInformation 无检索上下文时的固定回答
const NoOfficialInformation = "Je n'ai trouvé aucune information officielle correspondante dans ma base de données."

const refinePrompt = `You are a French Legal Research Assistant.
Refine the following user query into a precise keyword-based search query for a legal database (service-public.fr, legifrance).
Remove conversational filler. Focus on administrative terms.

User Query: %s

Refined Query:`

const evaluatePrompt = `You are evaluating search results for a French administrative query.

User Query: %s

Retrieved Documents:
%s

Are these documents sufficient to answer the query?
Return ONLY 'YES' or 'NO'.`

const synthesisPrompt = `You are a rigorous French Administration Assistant.
Answer the user's question using ONLY the provided context.
Cite your sources (Service-Public or Legifrance).
If the context is insufficient, state clearly what is missing.

Context:
%s

Question: %s

Answer (in French):`

const legalDocChars = 1000

// LegalAgent 法律研究：改写检索词 → general 检索 → 充分性评估 → 带出处的综合回答
type LegalAgent struct {
	caller
	searcher Searcher
}

// NewLegalAgent 创建法律研究专家
func NewLegalAgent(client llm.Client, searcher Searcher, cfg retry.Config, logger *log.Logger) *LegalAgent {
	return &LegalAgent{
		caller:   caller{client: client, retry: cfg, logger: log.OrDefault(logger)},
		searcher: searcher,
	}
}

// Name 专家名
func (a *LegalAgent) Name() string { return "legal_research" }

// Run 执行法律研究
func (a *LegalAgent) Run(ctx context.Context, q string, state *session.AgentState) (*Result, error) {
	refined, err := a.call(ctx, "legal_refine", fmt.Sprintf(refinePrompt, q), 128)
	if err != nil || refined == "" {
		metrics.CollaboratorFallbacks.WithLabelValues("legal_refine").Inc()
		a.logger.Warn("检索词改写失败，使用原查询", "session_id", state.SessionID, "error", err)
		refined = q
	}

	var docs []*common.Document
	if a.searcher != nil {
		docs, err = a.searcher.Search(ctx, refined, query.DomainGeneral, state.UserProfile.Snapshot())
		if err != nil {
			a.logger.Warn("法律检索失败", "session_id", state.SessionID, "error", err)
			docs = nil
		}
	}
	contextText := formatLegalContext(docs)

	res := &Result{Agent: a.Name(), Step: session.StepCompleted, Documents: docs}
	if contextText == "" {
		res.Answer = NoOfficialInformation
		return res, nil
	}
	if !a.evaluate(ctx, q, contextText) {
		a.logger.Info("检索结果不足以完整回答", "session_id", state.SessionID, "refined", refined)
	}

	answer, err := a.call(ctx, "legal_synthesize", fmt.Sprintf(synthesisPrompt, contextText, q), 1024)
	if err != nil {
		return nil, err
	}
	res.Answer = answer
	res.Context = contextText
	return res, nil
}

func (a *LegalAgent) evaluate(ctx context.Context, q, contextText string) bool {
	out, err := a.call(ctx, "legal_evaluate", fmt.Sprintf(evaluatePrompt, q, contextText), 4)
	if err != nil {
		a.logger.Warn("充分性评估失败", "error", err)
		return false
	}
	return strings.Contains(strings.ToUpper(out), "YES")
}

func formatLegalContext(docs []*common.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		source := d.Source
		if source == "" {
			source = "Unknown"
		}
		title := d.Title()
		if title == "" {
			title = "N/A"
		}
		parts = append(parts, fmt.Sprintf("Source: %s\nTitle: %s\nContent: %s", source, title, truncateRunes(d.Content, legalDocChars)))
	}
	return strings.Join(parts, "\n\n")
}
