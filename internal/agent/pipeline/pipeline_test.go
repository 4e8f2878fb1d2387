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

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"admin-assistant/internal/runtime/session"
	"admin-assistant/pkg/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGoals struct {
	out       string
	err       error
	calls     int
	seenGoals []string
}

func (f *fakeGoals) Extract(_ context.Context, _ string, _ []session.Message, current string) (string, error) {
	f.calls++
	f.seenGoals = append(f.seenGoals, current)
	return f.out, f.err
}

type fakeRewriter struct {
	out      string
	err      error
	seenGoal string
}

func (f *fakeRewriter) Rewrite(_ context.Context, q string, _ []session.Message, goal string, _ map[string]any) (string, error) {
	f.seenGoal = goal
	if f.out == "" && f.err == nil {
		return q, nil
	}
	return f.out, f.err
}

type fakeClassifier struct {
	intent session.Intent
	err    error
	calls  int
	seen   string
}

func (f *fakeClassifier) Classify(_ context.Context, q string, _ []session.Message) (session.Intent, error) {
	f.calls++
	f.seen = q
	return f.intent, f.err
}

type fakeProfiler struct {
	out  map[string]any
	err  error
	seen string
}

func (f *fakeProfiler) Extract(ctx context.Context, q string, _ []session.Message) (map[string]any, error) {
	f.seen = q
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.out, f.err
}

func question(text string) []session.Message {
	s := session.NewAgentState("s")
	s.AddHuman("Je veux un permis de conduire")
	s.AddAI(text)
	return s.Messages
}

func TestRun_FullPath(t *testing.T) {
	goals := &fakeGoals{out: "Obtenir un permis de conduire"}
	rw := &fakeRewriter{out: "Permis de conduire pour étudiant étranger"}
	cl := &fakeClassifier{intent: session.IntentSimpleQA}
	pr := &fakeProfiler{out: map[string]any{"language": "fr", "residency_status": "Student"}}
	p := New(goals, rw, cl, pr, log.Discard())

	res := p.Run(context.Background(), Input{Query: "Comment avoir le permis quand on est étudiant étranger en France ?"})
	assert.Equal(t, "Obtenir un permis de conduire", res.NewCoreGoal)
	assert.Equal(t, "Obtenir un permis de conduire", rw.seenGoal)
	assert.Equal(t, "Permis de conduire pour étudiant étranger", res.RewrittenQuery)
	assert.Equal(t, "Permis de conduire pour étudiant étranger", cl.seen)
	assert.Equal(t, session.IntentSimpleQA, res.Intent)
	assert.False(t, res.IsContextualContinuation)
	assert.Equal(t, "Comment avoir le permis quand on est étudiant étranger en France ?", pr.seen)
	assert.Equal(t, "Student", res.ExtractedProfile["residency_status"])
	assert.False(t, res.Goal.FallbackUsed)
	assert.False(t, res.Rewrite.FallbackUsed)
}

func TestRun_GoalSentinelKeepsCurrentGoal(t *testing.T) {
	for _, raw := range []string{"null", "None", "", "  NULL. "} {
		p := New(&fakeGoals{out: raw}, &fakeRewriter{}, &fakeClassifier{intent: session.IntentSimpleQA}, &fakeProfiler{}, log.Discard())
		res := p.Run(context.Background(), Input{Query: "Et pour le prix ?", CurrentGoal: "Renouveler un passeport"})
		assert.Equal(t, "Renouveler un passeport", res.NewCoreGoal, raw)
		assert.False(t, res.Goal.FallbackUsed)
	}
}

func TestRun_GoalLockAcrossTurns(t *testing.T) {
	goals := &fakeGoals{out: "Obtenir un permis de conduire"}
	p := New(goals, &fakeRewriter{}, &fakeClassifier{intent: session.IntentComplexProcedure}, &fakeProfiler{}, log.Discard())

	goal := ""
	first := ""
	for i, q := range []string{"Je veux passer le permis", "Je suis vietnamien", "J'habite à Lyon", "J'ai 25 ans"} {
		res := p.Run(context.Background(), Input{Query: q, CurrentGoal: goal})
		goal = res.NewCoreGoal
		if i == 0 {
			first = goal
		}
		goals.out = "null"
	}
	assert.Equal(t, first, goal)
	assert.Equal(t, []string{"", first, first, first}, goals.seenGoals)
}

func TestRun_CollaboratorFailuresFallBack(t *testing.T) {
	boom := errors.New("timeout")
	p := New(&fakeGoals{err: boom}, &fakeRewriter{err: boom}, &fakeClassifier{err: boom}, &fakeProfiler{err: boom}, log.Discard())

	res := p.Run(context.Background(), Input{Query: "Quels documents pour la CAF ?", CurrentGoal: "Demander les APL"})
	assert.Equal(t, "Demander les APL", res.NewCoreGoal)
	assert.True(t, res.Goal.FallbackUsed)
	assert.Equal(t, "Quels documents pour la CAF ?", res.RewrittenQuery)
	assert.True(t, res.Rewrite.FallbackUsed)
	assert.Equal(t, session.IntentUnknown, res.Intent)
	assert.True(t, res.Class.FallbackUsed)
	assert.NotNil(t, res.ExtractedProfile)
	assert.Empty(t, res.ExtractedProfile)
	assert.True(t, res.Profile.FallbackUsed)
}

func TestRun_NilCollaborators(t *testing.T) {
	res := New(nil, nil, nil, nil, nil).Run(context.Background(), Input{Query: "Bonjour", CurrentGoal: "x"})
	assert.Equal(t, "x", res.NewCoreGoal)
	assert.Equal(t, "Bonjour", res.RewrittenQuery)
	assert.Equal(t, session.IntentUnknown, res.Intent)
	assert.Empty(t, res.ExtractedProfile)
}

func TestRun_ContinuationShortCircuitsClassifier(t *testing.T) {
	cl := &fakeClassifier{intent: session.IntentSimpleQA}
	p := New(&fakeGoals{out: "null"}, &fakeRewriter{}, cl, &fakeProfiler{}, log.Discard())

	res := p.Run(context.Background(), Input{Query: "Yes", History: question("Do you have a visa?")})
	require.True(t, res.IsContextualContinuation)
	assert.Equal(t, session.IntentContinuation, res.Intent)
	assert.True(t, res.Class.ShortCircuit)
	assert.Equal(t, 0, cl.calls)
}

func TestRun_ClarificationFlag(t *testing.T) {
	cl := &fakeClassifier{intent: session.IntentSimpleQA}
	p := New(nil, nil, cl, nil, log.Discard())

	res := p.Run(context.Background(), Input{Query: "Lyon", ClarificationPending: true})
	assert.True(t, res.IsContextualContinuation)
	assert.Equal(t, 0, cl.calls)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pr := &fakeProfiler{out: map[string]any{"name": "x"}}
	res := New(nil, nil, nil, pr, log.Discard()).Run(ctx, Input{Query: "q"})
	assert.Empty(t, res.ExtractedProfile)
	assert.True(t, res.Profile.FallbackUsed)
}

func TestIsContextualContinuation(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		history []session.Message
		pending bool
		want    bool
	}{
		{"short answer to question", "Yes", question("Do you have a visa?"), false, true},
		{"five words", "oui j'ai un titre valide", question("Avez-vous un titre ?"), false, true},
		{"six words", "oui j'ai un titre de séjour", question("Avez-vous un titre ?"), false, false},
		{"no question mark", "Yes", question("Voici la procédure."), false, false},
		{"no history", "Yes", nil, false, false},
		{"pending clarification", "Lyon", nil, true, true},
		{"pending but long", "je voudrais savoir comment faire une demande", nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsContextualContinuation(tt.query, tt.history, tt.pending))
		})
	}
}

func TestLastTurnWasQuestion_HumanLast(t *testing.T) {
	s := session.NewAgentState("s")
	s.AddAI("Avez-vous un visa ?")
	s.AddHuman("Pourquoi ?")
	assert.False(t, LastTurnWasQuestion(s.Messages))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("   "))
	assert.Equal(t, 3, WordCount(" oui\tc'est  fait\n"))
}
