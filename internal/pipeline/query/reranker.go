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
	"sort"
	"strings"
	"time"

	"admin-assistant/internal/pipeline/common"
	"admin-assistant/pkg/metrics"
)

// Reranker 按分数阈值过滤、按正文去重并截断
type Reranker struct {
	topK           int
	scoreThreshold float64
}

// NewReranker 创建新的重排器；scoreThreshold <= 0 表示不过滤
func NewReranker(topK int, scoreThreshold float64) *Reranker {
	if topK <= 0 {
		topK = 10
	}
	return &Reranker{
		topK:           topK,
		scoreThreshold: scoreThreshold,
	}
}

// Rerank 返回过滤、去重后按分数降序的文档（同分保持输入顺序）
func (r *Reranker) Rerank(docs []*common.Document) []*common.Document {
	if len(docs) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RerankerLatency.Observe(time.Since(start).Seconds()) }()

	seen := make(map[string]struct{}, len(docs))
	out := make([]*common.Document, 0, len(docs))
	for _, d := range docs {
		if d == nil || d.Score < r.scoreThreshold {
			continue
		}
		key := dedupeKey(d.Content)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > r.topK {
		out = out[:r.topK]
	}
	return out
}

// TopK 返回截断数量
func (r *Reranker) TopK() int { return r.topK }

func dedupeKey(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}
