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

import "context"

// Store 知识库向量存储（memory 后端使用；redis 后端由 eino-ext 检索组件直接访问）
type Store interface {
	// EnsureCollection 集合不存在时创建
	EnsureCollection(ctx context.Context, name string, dimension int) error
	// Upsert 写入或覆盖向量
	Upsert(ctx context.Context, collection string, vectors []*Vector) error
	// Search 余弦相似度检索，结果按分数降序
	Search(ctx context.Context, collection string, query []float64, options *SearchOptions) ([]*SearchResult, error)
	// Count 集合内向量数
	Count(ctx context.Context, collection string) (int, error)
	// Close 关闭存储连接
	Close() error
}

// Vector 向量数据；Metadata 至少含 content，可含 title/url/source
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// SearchOptions 搜索选项
type SearchOptions struct {
	TopK      int               `json:"top_k"`
	Filter    map[string]string `json:"filter"`
	Threshold float64           `json:"threshold"`
}

// SearchResult 搜索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}
