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

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"admin-assistant/internal/agent/expert"
	"admin-assistant/internal/agent/guardrail"
	"admin-assistant/internal/agent/orchestrator"
	"admin-assistant/internal/agent/pipeline"
	"admin-assistant/internal/agent/preprocess"
	"admin-assistant/internal/agent/retry"
	"admin-assistant/internal/agent/topics"
	"admin-assistant/internal/agent/translate"
	"admin-assistant/internal/einoext"
	"admin-assistant/internal/model"
	"admin-assistant/internal/pipeline/query"
	"admin-assistant/internal/runtime/session"
	"admin-assistant/internal/storage/cache"
	"admin-assistant/internal/storage/vector"
	"admin-assistant/pkg/config"
	"admin-assistant/pkg/log"
	"admin-assistant/pkg/secrets"
	"admin-assistant/pkg/tracing"
)

// Version 写入 trace resource 并由 CLI version 命令输出
var Version = "0.1.0"

// Bootstrap 统一初始化：cmd 只负责解析参数，组件装配都在这里
type Bootstrap struct {
	Config       *config.Config
	Logger       *log.Logger
	Registry     *model.Registry
	Sessions     *session.Manager
	Cache        *cache.ResponseCache
	Topics       *topics.Registry
	Orchestrator *orchestrator.Orchestrator

	closers []func(context.Context) error
}

// Option 调整 Bootstrap 的构造
type Option func(*options)

type options struct {
	logger   *log.Logger
	registry *model.Registry
}

// WithLogger 使用外部 Logger，不再按 cfg.Log 创建
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithRegistry 使用预先注册好模型的 Registry
func WithRegistry(r *model.Registry) Option { return func(o *options) { o.registry = r } }

// NewBootstrap 根据配置创建全部组件；失败时已创建的资源会被释放
func NewBootstrap(ctx context.Context, cfg *config.Config, opts ...Option) (b *Bootstrap, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger, err = log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
		if err != nil {
			return nil, fmt.Errorf("初始化日志failed: %w", err)
		}
	}

	b = &Bootstrap{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = b.Close(context.Background())
		}
	}()

	if cfg.Monitoring.Tracing.Enable {
		tp, terr := tracing.InitTracer(ctx, tracing.OTelConfig{
			ServiceName:    cfg.Monitoring.Tracing.ServiceName,
			ServiceVersion: Version,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
			SampleRatio:    cfg.Monitoring.Tracing.SampleRatio,
		})
		if terr != nil {
			return nil, fmt.Errorf("初始化 tracing failed: %w", terr)
		}
		b.closers = append(b.closers, tp.Shutdown)
	}

	registry := o.registry
	if registry == nil {
		store, serr := secrets.NewStore(secrets.Config{Provider: cfg.Secrets.Provider, Config: cfg.Secrets.Config})
		if serr != nil {
			return nil, fmt.Errorf("初始化 secret store failed: %w", serr)
		}
		registry = model.NewRegistry(cfg.Model, store, cfg.RateLimits.LLM)
	}
	b.Registry = registry

	if cfg.Model.Defaults.LLM == "" {
		return nil, fmt.Errorf("model.defaults.llm 未配置")
	}
	generatorLLM, err := registry.LLM(ctx, cfg.Model.Defaults.LLM)
	if err != nil {
		return nil, fmt.Errorf("初始化生成模型failed: %w", err)
	}
	guardKey := cfg.Model.Defaults.Guardrail
	if guardKey == "" {
		guardKey = cfg.Model.Defaults.LLM
	}
	guardLLM, err := registry.LLM(ctx, guardKey)
	if err != nil {
		return nil, fmt.Errorf("初始化护栏模型failed: %w", err)
	}

	retriever, err := b.buildRetriever(ctx, cfg, registry)
	if err != nil {
		return nil, err
	}

	sessionStore, err := session.NewStore(ctx, cfg.Storage.Session, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化会话存储failed: %w", err)
	}
	b.addCloser(sessionStore)
	b.Sessions = session.NewManager(sessionStore, logger)

	cacheStore, err := cache.NewCache(ctx, cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存failed: %w", err)
	}
	b.addCloser(cacheStore)
	b.Cache = cache.NewResponseCache(cacheStore,
		cache.WithTTL(config.Duration(cfg.Assistant.CacheTTL, time.Hour)),
		cache.WithBypass(cfg.Assistant.BypassCache),
		cache.WithLogger(logger),
	)

	b.Topics, err = topics.LoadFile(cfg.Assistant.TopicsFile)
	if err != nil {
		return nil, fmt.Errorf("加载话题配置failed: %w", err)
	}

	retryCfg := retry.FromConfig(cfg.Retry)
	pre := pipeline.New(
		preprocess.NewGoalExtractor(guardLLM),
		preprocess.NewQueryRewriter(guardLLM),
		preprocess.NewIntentClassifier(guardLLM),
		preprocess.NewProfileExtractor(guardLLM),
		logger,
	)
	router := expert.NewRouter(
		expert.NewLegalAgent(generatorLLM, retriever, retryCfg, logger),
		expert.NewProcedureAgent(generatorLLM, retriever, b.Topics, retryCfg, logger),
	)

	// 预先注册的模型可以没有配置项
	info, _ := registry.ModelInfo(cfg.Model.Defaults.LLM)
	temperature := info.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}

	deps := orchestrator.Dependencies{
		States:     b.Sessions,
		Cache:      b.Cache,
		Pipeline:   pre,
		Topic:      guardrail.NewTopicGuardrail(guardLLM),
		Grounding:  guardrail.NewHallucinationGuardrail(guardLLM),
		Retriever:  retriever,
		Generator:  query.NewGenerator(generatorLLM, temperature, info.MaxTokens),
		Expert:     router,
		Translator: translate.New(guardLLM),
		Logger:     logger,
	}
	injection := cfg.Assistant.InjectionGuard == nil || *cfg.Assistant.InjectionGuard
	if injection {
		deps.Injection = guardrail.NewInjectionGuard()
	}
	b.Orchestrator, err = orchestrator.New(orchestrator.Config{
		WorkingLanguage:            cfg.Assistant.WorkingLanguage,
		TurnTimeout:                config.Duration(cfg.Assistant.TurnTimeout, orchestrator.DefaultTurnTimeout),
		HistoryWindow:              cfg.Assistant.HistoryWindow,
		RetrievalDomain:            query.DomainGeneral,
		SlowLaneHallucinationCheck: cfg.Assistant.SlowLaneHallucination,
		InjectionGuard:             injection,
		Retry:                      retryCfg,
	}, deps)
	if err != nil {
		return nil, err
	}

	logger.Info("assistant bootstrap complete",
		"llm", cfg.Model.Defaults.LLM,
		"guardrail", guardKey,
		"session_store", cfg.Storage.Session.Type,
		"cache", cfg.Storage.Cache.Type,
		"vector", cfg.Storage.Vector.Type,
		"topics", len(b.Topics.Keys()),
	)
	return b, nil
}

// buildRetriever 为每个知识库集合创建 Eino Retriever，并组装 RRF 混合检索
func (b *Bootstrap) buildRetriever(ctx context.Context, cfg *config.Config, registry *model.Registry) (*query.KnowledgeRetriever, error) {
	if cfg.Model.Defaults.Embedding == "" {
		return nil, fmt.Errorf("model.defaults.embedding 未配置")
	}
	embedder, err := registry.Embedding(ctx, cfg.Model.Defaults.Embedding)
	if err != nil {
		return nil, fmt.Errorf("初始化 embedding failed: %w", err)
	}

	// type=memory 时创建进程内向量库；redis 由 eino-ext 检索组件直连
	var vecStore vector.Store
	if cfg.Storage.Vector.Type == "" || cfg.Storage.Vector.Type == "memory" {
		mem := vector.NewMemoryStore()
		b.closers = append(b.closers, func(context.Context) error { return mem.Close() })
		vecStore = mem
		if cfg.Storage.Vector.Seed != "" {
			n, err := einoext.LoadSeedFile(ctx, cfg.Storage.Vector.Seed, vecStore, embedder, b.Logger)
			if err != nil {
				return nil, fmt.Errorf("加载知识库种子failed: %w", err)
			}
			b.Logger.Info("knowledge seed loaded", "documents", n, "path", cfg.Storage.Vector.Seed)
		}
	}

	factory, err := einoext.NewFactory(cfg.Storage.Vector, vecStore, embedder)
	if err != nil {
		return nil, fmt.Errorf("初始化检索器工厂failed: %w", err)
	}
	b.closers = append(b.closers, func(context.Context) error { return factory.Close() })

	collections := make([]query.Collection, 0, len(cfg.Storage.Knowledge.Collections))
	for _, cc := range cfg.Storage.Knowledge.Collections {
		ret, err := factory.Retriever(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("初始化集合 %s 检索器failed: %w", cc.Name, err)
		}
		collections = append(collections, query.Collection{
			Name:      cc.Name,
			Domain:    cc.Domain,
			Label:     cc.Label,
			TopK:      cc.TopK,
			Retriever: ret,
		})
	}

	return query.NewKnowledgeRetriever(query.KnowledgeRetrieverConfig{
		Collections: collections,
		Reranker:    query.NewReranker(0, cfg.Assistant.RerankThreshold),
		Hybrid:      query.NewHybridRetriever(query.NewBM25()),
		TopN:        cfg.Assistant.RetrievalTopN,
		Logger:      b.Logger,
	}), nil
}

// Flush 删除会话状态并清空回答缓存
func (b *Bootstrap) Flush(ctx context.Context, sessionID string) error {
	if sessionID != "" {
		if err := b.Sessions.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("删除会话 %s failed: %w", sessionID, err)
		}
	}
	return b.Cache.Clear(ctx)
}

func (b *Bootstrap) addCloser(v any) {
	switch c := v.(type) {
	case io.Closer:
		b.closers = append(b.closers, func(context.Context) error { return c.Close() })
	case interface{ Close() }:
		b.closers = append(b.closers, func(context.Context) error { c.Close(); return nil })
	}
}

// Close 逆序释放资源
func (b *Bootstrap) Close(ctx context.Context) error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closers = nil
	return firstErr
}
