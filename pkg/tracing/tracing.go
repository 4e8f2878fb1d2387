// Package tracing 封装对话链路的 span 创建；未调用 InitTracer 时使用 otel 的 no-op provider
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "admin-assistant"

// StartTurnSpan 开始一轮对话的 span
func StartTurnSpan(ctx context.Context, sessionID string, stream bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "assistant.turn",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Bool("turn.stream", stream),
		),
	)
}

// StartStageSpan 开始编排阶段 span（cache / pipeline / guardrail / retrieval / generation ...）
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "assistant.stage."+stage,
		trace.WithAttributes(attribute.String("stage", stage)),
	)
}

// StartLLMSpan 开始 LLM 调用 span
func StartLLMSpan(ctx context.Context, model string, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "llm."+operation,
		trace.WithAttributes(attribute.String("llm.model", model)),
	)
}

// EndSpan 结束 span，err 非空时记录错误状态
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
