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
	"errors"
	"sync"
	"testing"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-assistant/internal/pipeline/common"
	"admin-assistant/pkg/log"
)

type fakeRetriever struct {
	mu      sync.Mutex
	docs    map[string][]*schema.Document
	err     error
	indexes []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	o := einoretriever.GetCommonOptions(nil, opts...)
	f.mu.Lock()
	f.indexes = append(f.indexes, *o.Index)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[*o.Index], nil
}

func schemaDoc(id, content string, score float64) *schema.Document {
	d := &schema.Document{ID: id, Content: content, MetaData: map[string]any{"title": id}}
	return d.WithScore(score)
}

func newKnowledge(f *fakeRetriever) *KnowledgeRetriever {
	return NewKnowledgeRetriever(KnowledgeRetrieverConfig{
		Collections: []Collection{
			{Name: "service_public_procedures", Domain: DomainProcedure, Label: "service-public", TopK: 6, Retriever: f},
			{Name: "legi_legislation", Domain: DomainLegislation, Label: "legi", TopK: 4, Retriever: f},
		},
		Reranker: NewReranker(10, 0.2),
		Hybrid:   NewHybridRetriever(NewBM25()),
		TopN:     5,
		Logger:   log.Discard(),
	})
}

func TestKnowledgeRetriever_DomainSelection(t *testing.T) {
	f := &fakeRetriever{docs: map[string][]*schema.Document{
		"service_public_procedures": {schemaDoc("p1", "demande de passeport en mairie", 0.9)},
		"legi_legislation":          {schemaDoc("l1", "article L311 du code", 0.8)},
	}}
	k := newKnowledge(f)

	got, err := k.Search(context.Background(), "passeport", DomainProcedure, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "service-public", got[0].Source)
	assert.Equal(t, []string{"service_public_procedures"}, f.indexes)

	f.indexes = nil
	got, err = k.Search(context.Background(), "passeport", DomainGeneral, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.ElementsMatch(t, []string{"service_public_procedures", "legi_legislation"}, f.indexes)
}

func TestKnowledgeRetriever_DedupAndThreshold(t *testing.T) {
	f := &fakeRetriever{docs: map[string][]*schema.Document{
		"service_public_procedures": {
			schemaDoc("p1", "Carte de résident", 0.9),
			schemaDoc("p2", "carte  de résident", 0.7),
			schemaDoc("p3", "faible score", 0.1),
		},
	}}
	k := newKnowledge(f)
	got, err := k.Search(context.Background(), "carte", DomainProcedure, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func TestKnowledgeRetriever_AllCollectionsFail(t *testing.T) {
	k := newKnowledge(&fakeRetriever{err: errors.New("down")})
	_, err := k.Search(context.Background(), "x", DomainGeneral, nil)
	require.Error(t, err)
	assert.True(t, common.IsPipelineError(err))
	assert.ErrorIs(t, err, common.ErrRetrievalFailed)

	_, err = k.Search(context.Background(), "  ", DomainGeneral, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAugmentQuery(t *testing.T) {
	assert.Equal(t, "q", AugmentQuery("q", nil))
	assert.Equal(t, "q Lyon étudiant", AugmentQuery("q", map[string]any{
		"location": "Lyon", "residency_status": "étudiant", "name": "x",
	}))
}

func TestReranker(t *testing.T) {
	in := []*common.Document{
		{ID: "a", Content: "A", Score: 0.3},
		{ID: "b", Content: "B", Score: 0.9},
		{ID: "c", Content: "C", Score: 0.3},
		{ID: "d", Content: "", Score: 1},
	}
	got := NewReranker(2, 0).Rerank(in)
	assert.Equal(t, []string{"b", "a"}, ids(got))
	assert.Nil(t, NewReranker(2, 0).Rerank(nil))
}
