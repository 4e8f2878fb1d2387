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

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore 内存向量存储实现
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimension int
	vectors   map[string]*Vector
}

// NewMemoryStore 创建新的内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collection)}
}

// EnsureCollection 创建集合；已存在且维度不同则报错
func (s *MemoryStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.dimension != dimension {
			return fmt.Errorf("collection %s exists with dimension %d", name, c.dimension)
		}
		return nil
	}
	s.collections[name] = &collection{dimension: dimension, vectors: make(map[string]*Vector)}
	return nil
}

// Upsert 写入向量
func (s *MemoryStore) Upsert(ctx context.Context, name string, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s not found", name)
	}
	for _, v := range vectors {
		if len(v.Values) != c.dimension {
			return fmt.Errorf("vector dimension %d does not match collection dimension %d", len(v.Values), c.dimension)
		}
	}
	for _, v := range vectors {
		c.vectors[v.ID] = v
	}
	return nil
}

// Search 搜索向量
func (s *MemoryStore) Search(ctx context.Context, name string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", name)
	}
	if len(query) != c.dimension {
		return nil, fmt.Errorf("query dimension %d does not match collection dimension %d", len(query), c.dimension)
	}
	if options == nil {
		options = &SearchOptions{TopK: 10}
	}

	results := make([]*SearchResult, 0, len(c.vectors))
	for id, v := range c.vectors {
		if !matches(v.Metadata, options.Filter) {
			continue
		}
		score := cosineSimilarity(query, v.Values)
		if score < options.Threshold {
			continue
		}
		results = append(results, &SearchResult{ID: id, Score: score, Metadata: v.Metadata})
	}

	// 同分按 ID 排序，保证结果顺序确定
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if options.TopK > 0 && len(results) > options.TopK {
		results = results[:options.TopK]
	}
	return results, nil
}

// Count 集合内向量数
func (s *MemoryStore) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("collection %s not found", name)
	}
	return len(c.vectors), nil
}

// Close 关闭存储连接
func (s *MemoryStore) Close() error {
	return nil
}

func matches(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta == nil || meta[k] != v {
			return false
		}
	}
	return true
}

// cosineSimilarity 计算余弦相似度
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	dot, normA, normB := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
