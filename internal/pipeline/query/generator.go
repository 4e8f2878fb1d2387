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

package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"admin-assistant/internal/model/llm"
	"admin-assistant/internal/pipeline/common"
	"admin-assistant/pkg/metrics"
)

// NoContextPlaceholder 未检索到文档时写入提示词的占位文本
const NoContextPlaceholder = "Aucun document pertinent trouvé."

const groundedSystemPrompt = `Tu es un assistant expert de l'administration française.
Réponds uniquement à partir des documents fournis ci-dessous.
Règles :
1. N'invente aucune information absente des documents.
2. Cite la source (titre ou URL) des informations utilisées.
3. Si les documents ne suffisent pas, dis-le clairement.
4. Réponds en français, de façon claire et structurée.`

// Generator 回答生成（RAG 生成阶段）
type Generator struct {
	name        string
	llmClient   llm.Client
	temperature float64
	maxTokens   int
}

// NewGenerator 创建新的生成器
func NewGenerator(llmClient llm.Client, temperature float64, maxTokens int) *Generator {
	if temperature <= 0 {
		temperature = 0.1
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Generator{
		name:        "generator",
		llmClient:   llmClient,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Name 返回组件名称
func (g *Generator) Name() string { return g.name }

func (g *Generator) options(model string) llm.GenerateOptions {
	return llm.GenerateOptions{Model: model, Temperature: g.temperature, MaxTokens: g.maxTokens, TopP: 0.9}
}

// Complete 调用 LLM 生成完整回答；model 为空时使用客户端默认模型
func (g *Generator) Complete(ctx context.Context, messages []llm.Message, model string) (string, error) {
	if g.llmClient == nil {
		return "", common.NewPipelineError(common.StageGeneration, "llm client not configured", common.ErrNotConfigured)
	}
	start := time.Now()
	out, err := g.llmClient.ChatWithContext(ctx, messages, g.options(model))
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", common.NewPipelineError(common.StageGeneration, "generate answer failed", fmt.Errorf("%w: %w", common.ErrGenerationFailed, err))
	}
	return strings.TrimSpace(out), nil
}

// Stream 流式生成，每个增量片段回调 onChunk；返回完整文本
func (g *Generator) Stream(ctx context.Context, messages []llm.Message, model string, onChunk func(string) error) (string, error) {
	if g.llmClient == nil {
		return "", common.NewPipelineError(common.StageGeneration, "llm client not configured", common.ErrNotConfigured)
	}
	start := time.Now()
	out, err := llm.Stream(ctx, g.llmClient, messages, g.options(model), onChunk)
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", common.NewPipelineError(common.StageGeneration, "stream answer failed", fmt.Errorf("%w: %w", common.ErrGenerationFailed, err))
	}
	return out, nil
}

// FormatContext 将文档拼接为带编号、来源、标题的上下文；无文档时返回占位文本
func FormatContext(docs []*common.Document) string {
	if len(docs) == 0 {
		return NoContextPlaceholder
	}
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] (%s)", i+1, d.Source)
		if t := d.Title(); t != "" {
			fmt.Fprintf(&b, " %s", t)
		}
		if u := d.URL(); u != "" {
			fmt.Fprintf(&b, " <%s>", u)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(d.Content))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// IsPlaceholderContext 上下文是否为空或占位文本（此时不做幻觉检查）
func IsPlaceholderContext(ctxText string) bool {
	c := strings.TrimSpace(ctxText)
	return c == "" || c == NoContextPlaceholder
}

// BuildGroundedPrompt 由检索上下文、近期历史与用户画像构建生成提示词
func BuildGroundedPrompt(query, ctxText string, history []llm.Message, profile map[string]any) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	sys := groundedSystemPrompt
	if len(profile) > 0 {
		if data, err := json.Marshal(profile); err == nil {
			sys += "\n\nProfil de l'utilisateur : " + string(data)
		}
	}
	msgs = append(msgs, llm.System(sys))
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.User(fmt.Sprintf("Documents :\n%s\n\nQuestion : %s", ctxText, query)))
	return msgs
}
