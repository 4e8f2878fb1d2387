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

import "math"

// LexicalScorer 词法打分后端：以候选集自身为语料，对每篇文档给出与 query 的相关度
type LexicalScorer interface {
	Scores(corpus [][]string, query []string) []float64
}

// BM25 Okapi BM25，参数与常见实现一致（k1=1.5, b=0.75, epsilon=0.25）
type BM25 struct {
	K1      float64
	B       float64
	Epsilon float64
}

// NewBM25 使用默认参数
func NewBM25() *BM25 {
	return &BM25{K1: 1.5, B: 0.75, Epsilon: 0.25}
}

// Scores 实现 LexicalScorer
func (m *BM25) Scores(corpus [][]string, query []string) []float64 {
	n := len(corpus)
	scores := make([]float64, n)
	if n == 0 || len(query) == 0 {
		return scores
	}

	totalLen := 0
	freqs := make([]map[string]int, n)
	docFreq := make(map[string]int)
	for i, doc := range corpus {
		totalLen += len(doc)
		f := make(map[string]int, len(doc))
		for _, t := range doc {
			f[t]++
		}
		freqs[i] = f
		for t := range f {
			docFreq[t]++
		}
	}
	avgLen := float64(totalLen) / float64(n)
	if avgLen == 0 {
		return scores
	}

	// 负 idf（出现在超过一半文档中的词）替换为 epsilon * 平均 idf
	idf := make(map[string]float64, len(docFreq))
	idfSum := 0.0
	var negatives []string
	for t, df := range docFreq {
		v := math.Log((float64(n-df) + 0.5) / (float64(df) + 0.5))
		idf[t] = v
		idfSum += v
		if v < 0 {
			negatives = append(negatives, t)
		}
	}
	floor := m.Epsilon * idfSum / float64(len(docFreq))
	for _, t := range negatives {
		idf[t] = floor
	}

	for i := range corpus {
		docLen := float64(len(corpus[i]))
		for _, q := range query {
			tf := float64(freqs[i][q])
			if tf == 0 {
				continue
			}
			denom := tf + m.K1*(1-m.B+m.B*docLen/avgLen)
			scores[i] += idf[q] * tf * (m.K1 + 1) / denom
		}
	}
	return scores
}
