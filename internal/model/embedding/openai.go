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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	einoembed "github.com/cloudwego/eino/components/embedding"
	"github.com/go-resty/resty/v2"
)

// OpenAIEmbedder OpenAI 兼容 embeddings 接口
type OpenAIEmbedder struct {
	model     string
	dimension int
	apiKey    string
	baseURL   string
	client    *resty.Client
}

// NewOpenAIEmbedder 创建 Embedder；baseURL 为空时用 OPENAI_BASE_URL 或官方地址
func NewOpenAIEmbedder(apiKey, model, baseURL string, dimension int) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = 1536
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(3 * time.Second)

	return &OpenAIEmbedder{
		model:     model,
		dimension: dimension,
		apiKey:    apiKey,
		baseURL:   baseURL,
		client:    client,
	}
}

// Model 返回模型名称
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension 返回向量维度
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// EmbedStrings 实现 eino embedding.Embedder
func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembed.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := e.model
	if o := einoembed.GetCommonOptions(nil, opts...); o != nil && o.Model != nil && *o.Model != "" {
		model = *o.Model
	}

	request := map[string]interface{}{
		"model": model,
		"input": texts,
	}
	if e.dimension > 0 && model == e.model {
		request["dimensions"] = e.dimension
	}

	response, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+e.apiKey).
		SetBody(request).
		Post(e.baseURL + "/embeddings")
	if err != nil {
		return nil, fmt.Errorf("调用 embeddings API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("embeddings API 返回错误: %s", response.String())
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 embeddings 响应失败: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings 数量不匹配: got %d want %d", len(result.Data), len(texts))
	}
	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })

	out := make([][]float64, len(result.Data))
	for i, d := range result.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
