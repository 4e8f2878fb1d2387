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
	"fmt"
	"strings"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"admin-assistant/internal/storage/vector"
)

// MemoryRetriever 基于 vector.Store 的知识库检索器（memory 后端），
// 结果带 collection 元数据，正文为空的记录不返回
type MemoryRetriever struct {
	vectorStore      vector.Store
	embedder         einoembed.Embedder
	defaultIndex     string
	defaultTopK      int
	defaultThreshold float64
}

// MemoryRetrieverConfig MemoryRetriever 构造参数
type MemoryRetrieverConfig struct {
	VectorStore      vector.Store
	Embedder         einoembed.Embedder // 可被 WithEmbedding 选项覆盖
	DefaultIndex     string
	DefaultTopK      int
	DefaultThreshold float64
}

var _ einoretriever.Retriever = (*MemoryRetriever)(nil)

// NewMemoryRetriever 创建基于 vector.Store 的 Eino Retriever
func NewMemoryRetriever(cfg *MemoryRetrieverConfig) (*MemoryRetriever, error) {
	if cfg == nil || cfg.VectorStore == nil {
		return nil, fmt.Errorf("MemoryRetriever requires VectorStore")
	}
	idx := cfg.DefaultIndex
	if idx == "" {
		idx = "default"
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = 10
	}
	return &MemoryRetriever{
		vectorStore:      cfg.VectorStore,
		embedder:         cfg.Embedder,
		defaultIndex:     idx,
		defaultTopK:      topK,
		defaultThreshold: cfg.DefaultThreshold,
	}, nil
}

// Retrieve 实现 github.com/cloudwego/eino/components/retriever.Retriever
func (m *MemoryRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	options := einoretriever.GetCommonOptions(&einoretriever.Options{Embedding: m.embedder}, opts...)
	indexName := m.defaultIndex
	if options.Index != nil && *options.Index != "" {
		indexName = *options.Index
	}
	topK := m.defaultTopK
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}
	threshold := m.defaultThreshold
	if options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}

	if options.Embedding == nil {
		return nil, fmt.Errorf("collection %s: no embedder for query", indexName)
	}
	vecs, err := options.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("collection %s: embed query: %w", indexName, err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("collection %s: empty query vector", indexName)
	}

	searchResults, err := m.vectorStore.Search(ctx, indexName, vecs[0], &vector.SearchOptions{
		TopK:      topK,
		Threshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("collection %s: search: %w", indexName, err)
	}

	docs := make([]*schema.Document, 0, len(searchResults))
	for _, sr := range searchResults {
		content := sr.Metadata["content"]
		if strings.TrimSpace(content) == "" {
			continue
		}
		meta := map[string]any{"collection": indexName}
		for k, v := range sr.Metadata {
			if k != "content" && v != "" {
				meta[k] = v
			}
		}
		d := &schema.Document{ID: sr.ID, Content: content, MetaData: meta}
		docs = append(docs, d.WithScore(sr.Score))
	}
	return docs, nil
}
