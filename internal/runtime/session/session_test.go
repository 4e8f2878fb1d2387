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

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-assistant/pkg/errors"
	"admin-assistant/pkg/log"
)

func TestNewAgentState(t *testing.T) {
	s := NewAgentState("s1")
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, "French", s.UserProfile.Language)
	assert.False(t, s.HasHistory())
	assert.NotNil(t, s.Metadata)
}

func TestAgentState_Recent(t *testing.T) {
	s := NewAgentState("s1")
	for _, c := range []string{"a", "b", "c", "d"} {
		s.AddHuman(c)
	}
	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Content)
	recent[0].Content = "x"
	assert.Equal(t, "c", s.Messages[2].Content, "Recent returns a copy")
	assert.Len(t, s.Recent(0), 4)
}

func TestParseIntent(t *testing.T) {
	cases := map[string]Intent{
		"SIMPLE_QA":                 IntentSimpleQA,
		" legal_inquiry\n":          IntentLegalInquiry,
		"\"FORM_FILLING\"":          IntentFormFilling,
		"Intent: COMPLEX_PROCEDURE": IntentComplexProcedure,
		"something else":            IntentUnknown,
		"":                          IntentUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseIntent(in), in)
	}
	assert.True(t, IntentLegalInquiry.IsComplex())
	assert.False(t, IntentSimpleQA.IsComplex())
	assert.False(t, IntentUnknown.IsComplex())
	assert.True(t, IntentContinuation.IsComplex())
}

func TestParseStep(t *testing.T) {
	assert.Equal(t, StepClarification, ParseStep("clarification"))
	assert.Equal(t, StepCompleted, ParseStep("Step: COMPLETED."))
	assert.Equal(t, StepRetrieval, ParseStep("???"))
	assert.True(t, StepClarification.AwaitingAnswer())
	assert.False(t, StepExplanation.AwaitingAnswer())
}

func TestUserProfile_Set(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   any
		changed bool
		check   func(t *testing.T, p UserProfile)
	}{
		{"string", "nationality", "Américaine", true, func(t *testing.T, p UserProfile) { assert.Equal(t, "Américaine", p.Nationality) }},
		{"same value", "location", "Paris", false, nil},
		{"nil ignored", "name", nil, false, nil},
		{"null string ignored", "name", "null", false, nil},
		{"empty ignored", "visa_type", "  ", false, nil},
		{"age from json number", "age", float64(29), true, func(t *testing.T, p UserProfile) { assert.Equal(t, 29, p.Age) }},
		{"age from string", "age", "31", true, func(t *testing.T, p UserProfile) { assert.Equal(t, 31, p.Age) }},
		{"age invalid", "age", "vingt", false, nil},
		{"bool", "has_legal_residency", true, true, func(t *testing.T, p UserProfile) { assert.True(t, *p.HasLegalResidency) }},
		{"bool from oui", "has_legal_residency", "oui", true, nil},
		{"wrong type", "location", 12, false, nil},
		{"unknown field", "favourite_color", "blue", false, nil},
		{"reasoning never stored", "_reasoning", "because", false, nil},
		{"language not settable", "language", "en", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewUserProfile()
			p.Location = "Paris"
			assert.Equal(t, tt.changed, p.Set(tt.field, tt.value))
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestUserProfile_Snapshot(t *testing.T) {
	p := NewUserProfile()
	p.Name = "Lan"
	snap := p.Snapshot()
	assert.Equal(t, "French", snap["language"])
	assert.Equal(t, "Lan", snap["name"])
	_, ok := snap["visa_type"]
	assert.False(t, ok)
	assert.True(t, p.Has("name"))
	assert.False(t, p.Has("age"))
}

func TestCodec(t *testing.T) {
	s := NewAgentState("s1")
	s.CoreGoal = "obtenir un titre de séjour"
	s.Intent = IntentComplexProcedure
	s.CurrentStep = StepClarification
	s.AddHuman("Bonjour")
	data, err := Encode(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":2`)

	got, err := Decode(data, "s1")
	require.NoError(t, err)
	assert.Equal(t, s.CoreGoal, got.CoreGoal)
	assert.Equal(t, StepClarification, got.CurrentStep)
	require.Len(t, got.Messages, 1)

	bare, err := Decode([]byte(`{"version":2,"state":{}}`), "s1")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileLanguage, bare.UserProfile.Language)

	_, err = Decode([]byte(`{"version":1,"state":{}}`), "s1")
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	_, err = Decode([]byte(`not json`), "s1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	s, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, s.HasHistory())

	s.AddHuman("q")
	s.AddAI("a")
	require.NoError(t, m.Save(ctx, s))

	got, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)

	got.AddHuman("unsaved")
	again, _ := m.Load(ctx, "s1")
	assert.Len(t, again.Messages, 2, "loaded state is a copy")

	require.NoError(t, m.Delete(ctx, "s1"))
	fresh, _ := m.Load(ctx, "s1")
	assert.False(t, fresh.HasHistory())
}

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) (*AgentState, error) { return nil, errors.ErrUnavailable }
func (brokenStore) Save(context.Context, *AgentState) error           { return errors.ErrUnavailable }
func (brokenStore) Delete(context.Context, string) error              { return errors.ErrUnavailable }

func TestManager_DegradesOnStoreFailure(t *testing.T) {
	m := NewManager(brokenStore{}, log.Discard())
	s := m.Load(context.Background(), "s1")
	require.NotNil(t, s)
	assert.Equal(t, "s1", s.SessionID)
	assert.False(t, m.Save(context.Background(), s))
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "No history.", FormatHistory(nil))
	s := NewAgentState("s")
	s.AddHuman("Bonjour")
	s.AddAI("Avez-vous un visa ?")
	assert.Equal(t, "human: Bonjour\nai: Avez-vous un visa ?", FormatHistory(s.Messages))
	msgs := MessagesToLLM(s.Messages)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
}
