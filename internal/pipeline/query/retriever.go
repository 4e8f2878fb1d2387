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
	"time"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"admin-assistant/internal/pipeline/common"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/metrics"
)

// 检索领域
const (
	DomainProcedure   = "procedure"
	DomainLegislation = "legislation"
	DomainGeneral     = "general"
)

// Collection 知识库中的一个集合，通过 Eino Retriever 访问
type Collection struct {
	Name      string
	Domain    string
	Label     string // 写入 Document.Source
	TopK      int
	Retriever einoretriever.Retriever
}

// KnowledgeRetriever 按领域并发查询集合，合并后依次做阈值重排与 RRF 融合
type KnowledgeRetriever struct {
	name        string
	collections []Collection
	reranker    *Reranker
	hybrid      *HybridRetriever
	topN        int
	logger      *log.Logger
}

// KnowledgeRetrieverConfig 构造参数
type KnowledgeRetrieverConfig struct {
	Collections []Collection
	Reranker    *Reranker        // nil 时不做阈值过滤，仅去重
	Hybrid      *HybridRetriever // nil 时保留语义排序
	TopN        int
	Logger      *log.Logger
}

// NewKnowledgeRetriever 创建知识库检索器
func NewKnowledgeRetriever(cfg KnowledgeRetrieverConfig) *KnowledgeRetriever {
	topN := cfg.TopN
	if topN <= 0 {
		topN = 5
	}
	reranker := cfg.Reranker
	if reranker == nil {
		reranker = NewReranker(0, 0)
	}
	return &KnowledgeRetriever{
		name:        "retriever",
		collections: cfg.Collections,
		reranker:    reranker,
		hybrid:      cfg.Hybrid,
		topN:        topN,
		logger:      log.OrDefault(cfg.Logger),
	}
}

// Name 返回组件名称
func (r *KnowledgeRetriever) Name() string { return r.name }

// CollectionsFor 返回某领域对应的集合；general 或未知领域返回全部
func (r *KnowledgeRetriever) CollectionsFor(domain string) []Collection {
	if domain == "" || domain == DomainGeneral {
		return r.collections
	}
	var out []Collection
	for _, c := range r.collections {
		if c.Domain == domain {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return r.collections
	}
	return out
}

// Search 检索并返回融合后的前 topN 篇文档。单个集合失败只记录日志；全部失败才返回错误。
func (r *KnowledgeRetriever) Search(ctx context.Context, query, domain string, profile map[string]any) ([]*common.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, common.NewPipelineError(common.StageRetrieval, "empty query", common.ErrInvalidInput)
	}
	if domain == "" {
		domain = DomainGeneral
	}
	collections := r.CollectionsFor(domain)
	if len(collections) == 0 {
		return nil, nil
	}

	start := time.Now()
	batches := make([][]*common.Document, len(collections))
	errs := make([]error, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collections {
		g.Go(func() error {
			docs, err := c.Retriever.Retrieve(gctx, query,
				einoretriever.WithIndex(c.Name),
				einoretriever.WithTopK(c.TopK))
			if err != nil {
				errs[i] = err
				r.logger.Warn("collection search failed", "collection", c.Name, "error", err)
				return nil
			}
			batches[i] = toDocuments(docs, c.Label)
			return nil
		})
	}
	_ = g.Wait()
	metrics.RetrievalLatency.WithLabelValues(domain).Observe(time.Since(start).Seconds())

	var merged []*common.Document
	failed := 0
	for i, b := range batches {
		if errs[i] != nil {
			failed++
		}
		merged = append(merged, b...)
	}
	if failed == len(collections) {
		return nil, common.NewPipelineError(common.StageRetrieval, "all collections failed", fmt.Errorf("%w: %w", common.ErrRetrievalFailed, errs[0]))
	}
	r.logger.Debug("retriever results", "domain", domain, "count", len(merged))

	candidates := r.reranker.Rerank(merged)
	return r.hybrid.Rerank(AugmentQuery(query, profile), candidates, r.topN), nil
}

// AugmentQuery 将画像中的地点、国籍、居留身份追加到查询，供词法打分使用
func AugmentQuery(query string, profile map[string]any) string {
	var parts []string
	for _, k := range []string{"location", "nationality", "residency_status"} {
		if s, ok := profile[k].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return query
	}
	return query + " " + strings.Join(parts, " ")
}

func toDocuments(docs []*schema.Document, label string) []*common.Document {
	out := make([]*common.Document, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		meta := make(map[string]interface{}, len(d.MetaData))
		for k, v := range d.MetaData {
			meta[k] = v
		}
		source := label
		if source == "" {
			if s, ok := meta["source"].(string); ok {
				source = s
			}
		}
		out = append(out, &common.Document{
			ID:       d.ID,
			Content:  d.Content,
			Source:   source,
			Metadata: meta,
			Score:    d.Score(),
		})
	}
	return out
}
