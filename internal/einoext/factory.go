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


package einoext

import (
	"context"
	"fmt"
	"sync"

	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"

	"admin-assistant/internal/pipeline/query"
	"admin-assistant/internal/storage/vector"
	"admin-assistant/pkg/config"
)

const defaultTopK = 10

// Factory 为每个知识库集合创建 Eino Retriever；redis 后端的集合共用一个连接
type Factory struct {
	cfg      config.VectorConfig
	store    vector.Store
	embedder einoembed.Embedder

	mu     sync.Mutex
	client *redis.Client
}

// NewFactory memory 后端需要 vector.Store，redis 后端在首次创建检索器时连接
func NewFactory(cfg config.VectorConfig, store vector.Store, embedder einoembed.Embedder) (*Factory, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	switch cfg.Type {
	case "memory":
		if store == nil {
			return nil, fmt.Errorf("vector type is memory but VectorStore is nil")
		}
	case "redis":
	default:
		return nil, fmt.Errorf("unsupported vector type: %s", cfg.Type)
	}
	if embedder == nil {
		return nil, fmt.Errorf("knowledge retriever requires an embedder")
	}
	return &Factory{cfg: cfg, store: store, embedder: embedder}, nil
}

// Retriever 创建集合检索器；索引名即集合名
func (f *Factory) Retriever(ctx context.Context, cc config.CollectionConfig) (einoretriever.Retriever, error) {
	if cc.Name == "" {
		return nil, fmt.Errorf("collection name is empty")
	}
	topK := cc.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if f.cfg.Type == "memory" {
		return query.NewMemoryRetriever(&query.MemoryRetrieverConfig{
			VectorStore:  f.store,
			Embedder:     f.embedder,
			DefaultIndex: cc.Name,
			DefaultTopK:  topK,
		})
	}

	client, err := f.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
		Client:    client,
		Index:     cc.Name,
		TopK:      topK,
		Embedding: f.embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("redis retriever %s: %w", cc.Name, err)
	}
	return ret, nil
}

func (f *Factory) redisClient(ctx context.Context) (*redis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	client := redis.NewClient(RedisOptions(f.cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	f.client = client
	return client, nil
}

// Close 关闭共享的 redis 连接
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}
