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

package embedding

import (
	einoembed "github.com/cloudwego/eino/components/embedding"
)

// Embedder 文本向量化接口，同时满足 eino embedding.Embedder，可直接作为检索组件的 Embedding
type Embedder interface {
	einoembed.Embedder
	// Model 返回模型名称
	Model() string
	// Dimension 返回向量维度
	Dimension() int
}

var _ Embedder = (*OpenAIEmbedder)(nil)
