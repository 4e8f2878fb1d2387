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

package common

// Document 检索单元：正文 + 来源标签 + 元数据（title/url），Score 由检索/重排/融合阶段覆盖
type Document struct {
	ID       string                 `json:"id,omitempty"`
	Content  string                 `json:"content"`
	Source   string                 `json:"source"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float64                `json:"score"`
}

// Title 返回 metadata.title
func (d *Document) Title() string {
	return d.metaString("title")
}

// URL 返回 metadata.url
func (d *Document) URL() string {
	return d.metaString("url")
}

// WithScore 返回带新分数的副本，原文档不变
func (d *Document) WithScore(score float64) *Document {
	cp := *d
	cp.Score = score
	return &cp
}

func (d *Document) metaString(key string) string {
	if d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata[key].(string); ok {
		return s
	}
	return ""
}
