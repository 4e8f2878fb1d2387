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

package model

import (
	"context"
	"fmt"
	"sync"

	"admin-assistant/internal/model/embedding"
	"admin-assistant/internal/model/llm"
	"admin-assistant/pkg/config"
	"admin-assistant/pkg/secrets"
)

// Registry 按 provider.model_key 解析并缓存 LLM 与 Embedding 客户端；API Key 支持 secret:// 引用
type Registry struct {
	cfg     config.ModelConfig
	secrets secrets.Store
	limiter *llm.LLMRateLimiter
	stream  bool

	mu         sync.Mutex
	llms       map[string]llm.Client
	embeddings map[string]embedding.Embedder
}

// NewRegistry 创建注册表；limits 为空时不限流
func NewRegistry(cfg config.ModelConfig, store secrets.Store, limits map[string]config.LLMRateLimitConfig) *Registry {
	r := &Registry{
		cfg:        cfg,
		secrets:    store,
		stream:     cfg.LLM.Stream,
		llms:       make(map[string]llm.Client),
		embeddings: make(map[string]embedding.Embedder),
	}
	if len(limits) > 0 {
		configs := make(map[string]llm.LLMLimitConfig, len(limits))
		for provider, l := range limits {
			configs[provider] = llm.LLMLimitConfig{
				TokensPerMinute:   l.TokensPerMinute,
				RequestsPerMinute: l.RequestsPerMinute,
				MaxConcurrent:     l.MaxConcurrent,
			}
		}
		r.limiter = llm.NewLLMRateLimiter(configs, nil)
	}
	return r
}

// RegisterLLM 注册（或替换）LLM 实现
func (r *Registry) RegisterLLM(key string, c llm.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llms[key] = c
}

// RegisterEmbedding 注册（或替换）Embedding 实现
func (r *Registry) RegisterEmbedding(key string, e embedding.Embedder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[key] = e
}

// ModelInfo 返回 key 对应的模型参数
func (r *Registry) ModelInfo(key string) (config.ModelInfo, error) {
	provider, modelKey, err := config.ParseDefaultKey(key)
	if err != nil {
		return config.ModelInfo{}, err
	}
	pc, ok := r.cfg.LLM.Providers[provider]
	if !ok {
		return config.ModelInfo{}, fmt.Errorf("LLM provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return config.ModelInfo{}, fmt.Errorf("LLM model %q 未在 provider %q 中配置", modelKey, provider)
	}
	return mi, nil
}

// LLM 按 key 获取 LLM；首次访问时按配置创建
func (r *Registry) LLM(ctx context.Context, key string) (llm.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.llms[key]; ok {
		return c, nil
	}
	provider, _, err := config.ParseDefaultKey(key)
	if err != nil {
		return nil, err
	}
	mi, err := r.ModelInfo(key)
	if err != nil {
		return nil, err
	}
	pc := r.cfg.LLM.Providers[provider]
	apiKey, err := r.resolve(ctx, pc.APIKey)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, fmt.Errorf("LLM provider %q 的 api_key 未配置", provider)
	}

	var c llm.Client
	if r.stream {
		c, err = llm.NewEinoOpenAIClient(ctx, provider, mi.Name, apiKey, pc.BaseURL)
	} else {
		c, err = llm.NewClient(provider, mi.Name, apiKey, pc.BaseURL)
	}
	if err != nil {
		return nil, err
	}
	if r.limiter != nil {
		c = llm.NewRateLimitedClient(c, r.limiter)
	}
	r.llms[key] = c
	return c, nil
}

// Embedding 按 key 获取 Embedder
func (r *Registry) Embedding(ctx context.Context, key string) (embedding.Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.embeddings[key]; ok {
		return e, nil
	}
	provider, modelKey, err := config.ParseDefaultKey(key)
	if err != nil {
		return nil, err
	}
	pc, ok := r.cfg.Embedding.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("Embedding provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, fmt.Errorf("Embedding model %q 未在 provider %q 中配置", modelKey, provider)
	}
	apiKey, err := r.resolve(ctx, pc.APIKey)
	if err != nil {
		return nil, err
	}
	dimension := mi.Dimension
	if dimension <= 0 {
		dimension = 1536
	}
	e := embedding.NewOpenAIEmbedder(apiKey, mi.Name, pc.BaseURL, dimension)
	r.embeddings[key] = e
	return e, nil
}

func (r *Registry) resolve(ctx context.Context, value string) (string, error) {
	return secrets.Resolve(ctx, r.secrets, value)
}
