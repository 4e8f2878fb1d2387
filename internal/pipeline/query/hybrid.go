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

	"admin-assistant/internal/pipeline/common"
)

// RRFK Reciprocal Rank Fusion 的阻尼常数
const RRFK = 60

// HybridRetriever 将语义排序与候选集内的 BM25 排序做 RRF 融合
type HybridRetriever struct {
	lexical LexicalScorer
}

// NewHybridRetriever lexical 为 nil 时退化为只返回语义排序
func NewHybridRetriever(lexical LexicalScorer) *HybridRetriever {
	return &HybridRetriever{lexical: lexical}
}

// Rerank docs 须已按语义相似度降序；返回融合后的前 topN 篇，Score 为 RRF 分数
func (h *HybridRetriever) Rerank(query string, docs []*common.Document, topN int) []*common.Document {
	if len(docs) == 0 {
		return nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}
	if h == nil || h.lexical == nil {
		return docs[:topN]
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return docs[:topN]
	}
	corpus := make([][]string, len(docs))
	empty := true
	for i, d := range docs {
		corpus[i] = Tokenize(d.Content)
		if len(corpus[i]) > 0 {
			empty = false
		}
	}
	if empty {
		return docs[:topN]
	}

	semantic := make([]int, len(docs))
	for i := range semantic {
		semantic[i] = i
	}
	lexicalScores := h.lexical.Scores(corpus, queryTokens)
	lexical := make([]int, len(docs))
	copy(lexical, semantic)
	sort.SliceStable(lexical, func(a, b int) bool {
		return lexicalScores[lexical[a]] > lexicalScores[lexical[b]]
	})

	order, scores := FuseRankings(len(docs), semantic, lexical)
	out := make([]*common.Document, 0, topN)
	for _, idx := range order[:topN] {
		out = append(out, docs[idx].WithScore(scores[idx]))
	}
	return out
}

// FuseRankings 对若干排名（文档下标，最佳在前）做 RRF：score = Σ 1/(RRFK + rank + 1)。
// 未出现在某个排名中的文档不获得该项；同分按下标（即语义顺序）稳定排序。
func FuseRankings(n int, rankings ...[]int) (order []int, scores []float64) {
	scores = make([]float64, n)
	for _, ranking := range rankings {
		for rank, idx := range ranking {
			if idx < 0 || idx >= n {
				continue
			}
			scores[idx] += 1.0 / float64(RRFK+rank+1)
		}
	}
	order = make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order, scores
}
