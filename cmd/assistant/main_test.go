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

package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-assistant/internal/agent/orchestrator"
	"admin-assistant/pkg/config"
	"admin-assistant/pkg/metrics"
)

type fakeService struct {
	mu       sync.Mutex
	requests []orchestrator.Request
	flushed  []string
	events   []orchestrator.Event
	err      error
	closed   bool
}

func (f *fakeService) Handle(_ context.Context, req orchestrator.Request) (*orchestrator.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Answer{
		SessionID: req.SessionID,
		Text:      "Réponse: " + req.Query,
		Language:  "fr",
		Outcome:   orchestrator.OutcomeAnswered,
		Lane:      orchestrator.LaneFast,
	}, nil
}

func (f *fakeService) Stream(_ context.Context, req orchestrator.Request) (<-chan orchestrator.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan orchestrator.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeService) Flush(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, sid)
	return nil
}

func (f *fakeService) Close(context.Context) error {
	f.closed = true
	return nil
}

// setup 替换 openService 并重置全局 flag
func setup(t *testing.T, svc *fakeService) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("ASSISTANT_CONFIG", "")
	orig := openService
	openService = func(context.Context, *config.Config) (service, error) { return svc, nil }

	configPath, sessionID, langFlag, modelName = "", "", "", ""
	noCache, askJSON, chatStream = false, false, true

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetIn(strings.NewReader(""))
	t.Cleanup(func() {
		openService = orig
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})
	return out, errOut
}

func TestVersionCmd(t *testing.T) {
	out, _ := setup(t, &fakeService{})
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "admin-assistant version")
}

func TestConfigCmd_Defaults(t *testing.T) {
	out, _ := setup(t, &fakeService{})
	rootCmd.SetArgs([]string{"config"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "assistant.default_language=fr")
	assert.Contains(t, out.String(), "storage.session.type=memory")
	assert.Contains(t, out.String(), "storage.knowledge.collection=service_public_procedures (procedure)")
}

func TestConfigCmd_MissingFile(t *testing.T) {
	setup(t, &fakeService{})
	rootCmd.SetArgs([]string{"config", "--config", "/nonexistent/assistant.yaml"})
	assert.Error(t, rootCmd.Execute())
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	setup(t, &fakeService{})
	rootCmd.SetArgs([]string{"ask"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestAskCmd_BuildsRequest(t *testing.T) {
	svc := &fakeService{}
	out, _ := setup(t, svc)
	rootCmd.SetArgs([]string{"ask", "--session", "s1", "--lang", "en", "--model", "gpt-4o", "--no-cache", "How", "do", "I", "renew?"})
	require.NoError(t, rootCmd.Execute())

	require.Len(t, svc.requests, 1)
	req := svc.requests[0]
	assert.Equal(t, "s1", req.SessionID)
	assert.Equal(t, "How do I renew?", req.Query)
	assert.Equal(t, "en", req.Language)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.True(t, req.BypassCache)
	assert.Contains(t, out.String(), "Réponse: How do I renew?")
	assert.True(t, svc.closed)
}

func TestAskCmd_JSON(t *testing.T) {
	svc := &fakeService{}
	out, _ := setup(t, svc)
	rootCmd.SetArgs([]string{"ask", "--json", "Quel", "est", "le", "prix", "?"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"outcome": "answered"`)
	assert.Contains(t, out.String(), `"lane": "fast"`)
	assert.NotEmpty(t, svc.requests[0].SessionID)
}

func TestAskCmd_ServiceError(t *testing.T) {
	setup(t, &fakeService{err: errors.New("boom")})
	rootCmd.SetArgs([]string{"ask", "bonjour"})
	assert.Error(t, rootCmd.Execute())
}

func TestStreamCmd_RendersEvents(t *testing.T) {
	svc := &fakeService{events: []orchestrator.Event{
		{Type: orchestrator.EventStatus, Content: orchestrator.StatusRetrieving},
		{Type: orchestrator.EventToken, Content: "Bon"},
		{Type: orchestrator.EventToken, Content: "jour"},
		{Type: orchestrator.EventReplace, Content: "Réponse sûre"},
		{Type: orchestrator.EventDone, Content: "Réponse sûre"},
	}}
	out, errOut := setup(t, svc)
	rootCmd.SetArgs([]string{"stream", "bonjour"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "Bonjour\n\nRéponse sûre\n", out.String())
	assert.Contains(t, errOut.String(), "[retrieving]")
}

func TestChatCmd_LoopAndReset(t *testing.T) {
	svc := &fakeService{}
	out, errOut := setup(t, svc)
	rootCmd.SetIn(strings.NewReader("Bonjour\n\n/reset\nEt ensuite ?\n/exit\nignored\n"))
	rootCmd.SetArgs([]string{"chat", "--stream=false", "--session", "s1"})
	require.NoError(t, rootCmd.Execute())

	require.Len(t, svc.requests, 2)
	assert.Equal(t, "s1", svc.requests[0].SessionID)
	assert.NotEqual(t, "s1", svc.requests[1].SessionID)
	assert.Equal(t, []string{"s1"}, svc.flushed)
	assert.Contains(t, out.String(), "Réponse: Bonjour")
	assert.Contains(t, out.String(), "Réponse: Et ensuite ?")
	assert.Contains(t, errOut.String(), "session: s1")
}

func TestFlushCmd(t *testing.T) {
	svc := &fakeService{}
	out, _ := setup(t, svc)
	rootCmd.SetArgs([]string{"flush", "--session", "s9"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, []string{"s9"}, svc.flushed)
	assert.Contains(t, out.String(), "session s9 deleted")
	assert.Contains(t, out.String(), "response cache cleared")
}

func TestMetricsHandler(t *testing.T) {
	metrics.TurnTotal.WithLabelValues("answered").Inc()
	rec := httptest.NewRecorder()
	metricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "assistant_turn_total")
}

func TestStartMetrics_Disabled(t *testing.T) {
	stop := startMetrics(config.PrometheusConfig{}, new(bytes.Buffer))
	stop()
}
