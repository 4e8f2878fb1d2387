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

package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	einoembed "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-assistant/internal/agent/guardrail"
	"admin-assistant/internal/agent/orchestrator"
	"admin-assistant/internal/model"
	"admin-assistant/internal/model/llm"
	"admin-assistant/pkg/config"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/secrets"
)

// routingLLM 按 prompt 中的角色描述返回固定回复
type routingLLM struct {
	mu    sync.Mutex
	calls map[string]int
}

func newRoutingLLM() *routingLLM { return &routingLLM{calls: make(map[string]int)} }

func (r *routingLLM) reply(text string) string {
	routes := []struct{ marker, role, out string }{
		{"factual verifier", "hallucination", "SAFE"},
		{"gatekeeper", "topic", "APPROVED"},
		{"Goal Extractor", "goal", "Renouveler un titre de séjour"},
		{"Query Rewriter", "rewrite", "renouvellement titre de séjour"},
		{"intent classifier", "intent", "SIMPLE_QA"},
		{"Profile Extractor", "profile", "{}"},
		{"translator", "translate", "translated"},
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range routes {
		if strings.Contains(text, rt.marker) {
			r.calls[rt.role]++
			return rt.out
		}
	}
	r.calls["generate"]++
	return "Déposez votre demande de renouvellement en ligne sur le site de l'ANEF."
}

func (r *routingLLM) count(role string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[role]
}

func (r *routingLLM) Generate(prompt string, o llm.GenerateOptions) (string, error) {
	return r.reply(prompt), nil
}
func (r *routingLLM) GenerateWithContext(_ context.Context, prompt string, o llm.GenerateOptions) (string, error) {
	return r.reply(prompt), nil
}
func (r *routingLLM) Chat(msgs []llm.Message, o llm.GenerateOptions) (string, error) {
	return r.ChatWithContext(context.Background(), msgs, o)
}
func (r *routingLLM) ChatWithContext(_ context.Context, msgs []llm.Message, _ llm.GenerateOptions) (string, error) {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return r.reply(strings.Join(parts, "\n")), nil
}
func (r *routingLLM) Model() string    { return "routing" }
func (r *routingLLM) Provider() string { return "fake" }

// flatEmbedder 所有文本映射到同一方向
type flatEmbedder struct{}

func (flatEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}
func (flatEmbedder) Model() string  { return "flat" }
func (flatEmbedder) Dimension() int { return 2 }

const seed = `{"collection":"service_public_procedures","id":"titre-sejour","title":"Renouvellement du titre de séjour","url":"https://www.service-public.fr/particuliers/vosdroits/F2209","content":"La demande de renouvellement du titre de séjour se fait en ligne sur le site de l'ANEF."}
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	cfg := config.Default()
	cfg.Model.Defaults.LLM = "fake.chat"
	cfg.Model.Defaults.Embedding = "fake.embed"
	cfg.Storage.Vector.Seed = path
	cfg.Retry.InitialInterval = "1ms"
	cfg.Retry.MaxInterval = "1ms"
	return cfg
}

func testRegistry(client llm.Client) *model.Registry {
	r := model.NewRegistry(config.ModelConfig{}, nil, nil)
	r.RegisterLLM("fake.chat", client)
	r.RegisterEmbedding("fake.embed", flatEmbedder{})
	return r
}

func TestNewBootstrap_EndToEnd(t *testing.T) {
	ctx := context.Background()
	fake := newRoutingLLM()
	b, err := NewBootstrap(ctx, testConfig(t), WithLogger(log.Discard()), WithRegistry(testRegistry(fake)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })

	req := orchestrator.Request{SessionID: "s1", Query: "Comment renouveler mon titre de séjour ?"}
	ans, err := b.Orchestrator.Handle(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeAnswered, ans.Outcome)
	assert.Equal(t, orchestrator.LaneFast, ans.Lane)
	assert.Contains(t, ans.Text, "ANEF")
	assert.True(t, strings.HasSuffix(ans.Text, guardrail.Disclaimer("fr")))
	assert.Equal(t, 1, fake.count("generate"))
	assert.Equal(t, 1, fake.count("hallucination"))

	state := b.Sessions.Load(ctx, "s1")
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "Renouveler un titre de séjour", state.CoreGoal)

	again, err := b.Orchestrator.Handle(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeCacheHit, again.Outcome)
	assert.Equal(t, 1, fake.count("generate"))
}

func TestNewBootstrap_RedisBackedStores(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Storage.Session = config.SessionConfig{Type: "redis", Addr: mr.Addr(), KeyPrefix: "agent_state:"}
	cfg.Storage.Cache = config.CacheConfig{Type: "redis", Addr: mr.Addr()}

	ctx := context.Background()
	b, err := NewBootstrap(ctx, cfg, WithLogger(log.Discard()), WithRegistry(testRegistry(newRoutingLLM())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })

	_, err = b.Orchestrator.Handle(ctx, orchestrator.Request{SessionID: "s2", Query: "Comment renouveler mon titre de séjour ?"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("agent_state:s2"))

	require.NoError(t, b.Flush(ctx, "s2"))
	assert.False(t, mr.Exists("agent_state:s2"))
}

func TestNewBootstrap_ConfigErrors(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(newRoutingLLM())

	cfg := testConfig(t)
	cfg.Model.Defaults.LLM = ""
	_, err := NewBootstrap(ctx, cfg, WithLogger(log.Discard()), WithRegistry(reg))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Model.Defaults.Embedding = ""
	_, err = NewBootstrap(ctx, cfg, WithLogger(log.Discard()), WithRegistry(reg))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Storage.Session.Type = "cassandra"
	_, err = NewBootstrap(ctx, cfg, WithLogger(log.Discard()), WithRegistry(reg))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Storage.Vector.Seed = filepath.Join(t.TempDir(), "missing.jsonl")
	_, err = NewBootstrap(ctx, cfg, WithLogger(log.Discard()), WithRegistry(reg))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Assistant.TopicsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewBootstrap(ctx, cfg, WithLogger(log.Discard()), WithRegistry(reg))
	assert.Error(t, err)
}

func TestNewBootstrap_SecretResolvedAPIKey(t *testing.T) {
	t.Setenv("ADMIN_ASSISTANT_TEST_OPENAI_KEY", "sk-from-env")
	cfg := testConfig(t)
	cfg.Model.LLM.Providers = map[string]config.ProviderConfig{
		"openai": {
			APIKey: "secret://admin_assistant_test_openai_key",
			Models: map[string]config.ModelInfo{"gpt_4o_mini": {Name: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 800}},
		},
	}
	cfg.Model.Defaults.LLM = "openai.gpt_4o_mini"

	noStore := model.NewRegistry(cfg.Model, nil, nil)
	noStore.RegisterEmbedding("fake.embed", flatEmbedder{})
	_, err := NewBootstrap(context.Background(), cfg, WithLogger(log.Discard()), WithRegistry(noStore))
	assert.Error(t, err)

	reg := model.NewRegistry(cfg.Model, secrets.NewEnvStore(), nil)
	reg.RegisterEmbedding("fake.embed", flatEmbedder{})
	b, err := NewBootstrap(context.Background(), cfg, WithLogger(log.Discard()), WithRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })

	c, err := reg.LLM(context.Background(), "openai.gpt_4o_mini")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Model())
}
