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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Model      ModelConfig      `mapstructure:"model"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Retry      RetryConfig      `mapstructure:"retry"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AssistantConfig 对话编排相关配置
type AssistantConfig struct {
	DefaultLanguage       string  `mapstructure:"default_language"` // 语言代码，默认 fr
	WorkingLanguage       string  `mapstructure:"working_language"` // 知识库工作语言，默认 French
	TurnTimeout           string  `mapstructure:"turn_timeout"`     // 如 "60s"
	CacheTTL              string  `mapstructure:"cache_ttl"`        // 如 "1h"
	HistoryWindow         int     `mapstructure:"history_window"`   // 拼进 prompt 的最近消息条数
	BypassCache           bool    `mapstructure:"bypass_cache"`
	SlowLaneHallucination bool    `mapstructure:"slow_lane_hallucination_check"`
	InjectionGuard        *bool   `mapstructure:"injection_guard"` // 未配置时默认开启
	TopicsFile            string  `mapstructure:"topics_file"`
	RetrievalTopN         int     `mapstructure:"retrieval_top_n"`
	RerankThreshold       float64 `mapstructure:"rerank_threshold"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	// Stream 为 true 时使用 eino ChatModel 作为生成器以支持流式输出
	Stream bool `mapstructure:"stream"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	Dimension   int     `mapstructure:"dimension"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置，格式 provider.model_key
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Guardrail string `mapstructure:"guardrail"` // 护栏/预处理用的小模型，空则同 LLM
	Embedding string `mapstructure:"embedding"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Session   SessionConfig   `mapstructure:"session"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
}

// SessionConfig 会话状态存储配置
type SessionConfig struct {
	Type      string `mapstructure:"type"` // memory | redis | postgres
	Addr      string `mapstructure:"addr"`
	DB        int    `mapstructure:"db"`
	Password  string `mapstructure:"password"`
	DSN       string `mapstructure:"dsn"` // type=postgres 时必填
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       string `mapstructure:"ttl"` // 空表示不过期
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type      string `mapstructure:"type"` // memory | redis
	Addr      string `mapstructure:"addr"`
	DB        int    `mapstructure:"db"`
	Password  string `mapstructure:"password"`
	KeyPrefix string `mapstructure:"key_prefix"` // redis
	// memory：过期清理周期与条目上限（0 不限）
	CleanupInterval string `mapstructure:"cleanup_interval"`
	MaxEntries      int    `mapstructure:"max_entries"`
}

// VectorConfig 向量存储配置（memory 为内置内存；redis 使用 eino-ext 检索组件）
type VectorConfig struct {
	Type     string `mapstructure:"type"`
	Addr     string `mapstructure:"addr"`
	DB       string `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Seed     string `mapstructure:"seed"` // memory 模式下启动时加载的 JSONL 文档
}

// KnowledgeConfig 知识库集合
type KnowledgeConfig struct {
	Collections []CollectionConfig `mapstructure:"collections"`
}

// CollectionConfig 单个集合；Domain 为 procedure | legislation，general 查询全部
type CollectionConfig struct {
	Name   string `mapstructure:"name"`
	Domain string `mapstructure:"domain"`
	Label  string `mapstructure:"label"`
	TopK   int    `mapstructure:"top_k"`
}

// RetryConfig 生成与专家调用的重试策略
type RetryConfig struct {
	MaxAttempts     int    `mapstructure:"max_attempts"`
	InitialInterval string `mapstructure:"initial_interval"`
	MaxInterval     string `mapstructure:"max_interval"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// SecretsConfig API Key 等密钥来源
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Config   map[string]string `mapstructure:"config"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
	// SampleRatio 0 或 1 表示全部采样
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	config.ApplyDefaults()
	return &config, nil
}

// Default 返回只含默认值的配置（无配置文件时使用）
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults 填充缺省值
func (c *Config) ApplyDefaults() {
	a := &c.Assistant
	if a.DefaultLanguage == "" {
		a.DefaultLanguage = "fr"
	}
	if a.WorkingLanguage == "" {
		a.WorkingLanguage = "French"
	}
	if a.TurnTimeout == "" {
		a.TurnTimeout = "60s"
	}
	if a.CacheTTL == "" {
		a.CacheTTL = "1h"
	}
	if a.HistoryWindow <= 0 {
		a.HistoryWindow = 6
	}
	if a.InjectionGuard == nil {
		on := true
		a.InjectionGuard = &on
	}
	if a.RetrievalTopN <= 0 {
		a.RetrievalTopN = 5
	}
	if c.Storage.Session.Type == "" {
		c.Storage.Session.Type = "memory"
	}
	if c.Storage.Session.KeyPrefix == "" {
		c.Storage.Session.KeyPrefix = "agent_state:"
	}
	if c.Storage.Cache.Type == "" {
		c.Storage.Cache.Type = "memory"
	}
	if c.Storage.Vector.Type == "" {
		c.Storage.Vector.Type = "memory"
	}
	if len(c.Storage.Knowledge.Collections) == 0 {
		c.Storage.Knowledge.Collections = []CollectionConfig{
			{Name: "service_public_procedures", Domain: "procedure", Label: "service-public", TopK: 6},
			{Name: "legi_legislation", Domain: "legislation", Label: "legi", TopK: 4},
		}
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialInterval == "" {
		c.Retry.InitialInterval = "2s"
	}
	if c.Retry.MaxInterval == "" {
		c.Retry.MaxInterval = "10s"
	}
	if c.Secrets.Provider == "" {
		c.Secrets.Provider = "env"
	}
	if c.Monitoring.Tracing.ServiceName == "" {
		c.Monitoring.Tracing.ServiceName = "admin-assistant"
	}
}

// Duration 解析时长字段，非法或为空时返回 def
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// ParseDefaultKey 解析 provider.model_key
func ParseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o，当前: %q", key)
	}
	return parts[0], parts[1], nil
}

// replaceEnvVars 替换配置中 ${VAR} 形式的环境变量
func replaceEnvVars(config *Config) {
	for provider, pc := range config.Model.LLM.Providers {
		pc.APIKey = expandEnv(pc.APIKey)
		pc.BaseURL = expandEnv(pc.BaseURL)
		config.Model.LLM.Providers[provider] = pc
	}
	for provider, pc := range config.Model.Embedding.Providers {
		pc.APIKey = expandEnv(pc.APIKey)
		pc.BaseURL = expandEnv(pc.BaseURL)
		config.Model.Embedding.Providers[provider] = pc
	}
	s := &config.Storage
	s.Session.Password = expandEnv(s.Session.Password)
	s.Session.DSN = expandEnv(s.Session.DSN)
	s.Cache.Password = expandEnv(s.Cache.Password)
	s.Vector.Password = expandEnv(s.Vector.Password)
	for k, v := range config.Secrets.Config {
		config.Secrets.Config[k] = expandEnv(v)
	}
}

// expandEnv 仅处理整值为 ${VAR} 的情况；变量未设置时保留原值
func expandEnv(v string) string {
	if !strings.HasPrefix(v, "${") || !strings.HasSuffix(v, "}") {
		return v
	}
	name := strings.TrimSuffix(strings.TrimPrefix(v, "${"), "}")
	if val := os.Getenv(name); val != "" {
		return val
	}
	return v
}
