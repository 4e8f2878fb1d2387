package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 CLI 的 /metrics 暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnDuration, TurnTotal,
		LLMRequestDuration, RetrievalLatency, GenerationLatency, RerankerLatency,
		GuardrailRejections, TopicDetection,
		CacheRequests, CollaboratorFallbacks,
		RateLimitWaitSeconds,
	)
}

// TurnDuration 单轮对话耗时（秒）
var TurnDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_turn_duration_seconds",
		Help:    "单轮对话耗时（秒）",
		Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"lane"}, // cache | fast | slow | rejected
)

// TurnTotal 对话轮次总数（按结果）
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_turn_total",
		Help: "对话轮次总数（按结果）",
	},
	[]string{"outcome"}, // cache_hit | answered | rejected | fallback | timeout | error
)

// LLMRequestDuration LLM 请求耗时
var LLMRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_llm_request_duration_seconds",
		Help:    "等待 LLM 响应的耗时（秒）",
		Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	},
	[]string{"model"},
)

// RetrievalLatency 知识库检索耗时
var RetrievalLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_rag_retrieval_latency_seconds",
		Help:    "从向量库检索文档的耗时（秒）",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
	},
	[]string{"domain"},
)

// GenerationLatency 最终答案生成耗时
var GenerationLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "assistant_rag_generation_latency_seconds",
		Help:    "生成最终答案的耗时（秒）",
		Buckets: []float64{1.0, 2.0, 5.0, 10.0, 20.0},
	},
)

// RerankerLatency 重排与融合耗时
var RerankerLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "assistant_reranker_latency_seconds",
		Help:    "重排与混合融合的耗时（秒）",
		Buckets: []float64{0.001, 0.01, 0.1, 0.2, 0.5, 1.0},
	},
)

// GuardrailRejections 护栏拒绝次数
var GuardrailRejections = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_guardrail_rejections_total",
		Help: "被护栏拒绝的请求数",
	},
	[]string{"reason"}, // off_topic | prompt_injection | hallucination
)

// TopicDetection 主题识别计数
var TopicDetection = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_topic_detection_total",
		Help: "按主题统计的请求数",
	},
	[]string{"topic"},
)

// CacheRequests 答案缓存命中统计
var CacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_cache_requests_total",
		Help: "答案缓存查询次数",
	},
	[]string{"result"}, // hit | miss | error | bypass
)

// CollaboratorFallbacks 预处理步骤降级次数
var CollaboratorFallbacks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_collaborator_fallback_total",
		Help: "LLM 协作者失败后使用兜底值的次数",
	},
	[]string{"step"}, // goal | rewrite | intent | profile | translate | session | cache
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w
func WritePrometheus(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
