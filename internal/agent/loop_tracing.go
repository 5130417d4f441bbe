package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/radar/internal/providers"
	"github.com/nextlevelbuilder/radar/internal/tools"
)

const tracerName = "github.com/nextlevelbuilder/radar/internal/agent"

// The global provider is a no-op until telemetry.Setup installs an exporter.
func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (l *Loop) startRunSpan(ctx context.Context, req RunRequest) (context.Context, trace.Span) {
	return tracer().Start(ctx, "agent.run",
		trace.WithAttributes(
			attribute.String("radar.user", req.UserID),
			attribute.String("radar.run_id", req.RunID),
			attribute.String("radar.segment", req.Segment),
			attribute.String("llm.model", l.model),
			attribute.Int("radar.history_messages", len(req.Messages)),
		),
	)
}

func (l *Loop) endRunSpan(span trace.Span, result *RunResult, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("radar.state", string(result.State)),
		attribute.String("radar.outcome", result.Outcome),
		attribute.Int("radar.rounds", result.Rounds),
		attribute.Int("radar.tool_calls", result.ToolCalls),
		attribute.String("radar.output_preview", truncateStr(result.Content, 500)),
	)
	if result.Usage != nil {
		span.SetAttributes(
			attribute.Int("llm.usage.prompt_tokens", result.Usage.PromptTokens),
			attribute.Int("llm.usage.completion_tokens", result.Usage.CompletionTokens),
		)
	}
	if result.State == StateAborted {
		span.SetStatus(codes.Error, result.Outcome)
	}
}

// emitLLMSpan records one model call as a completed child span.
func (l *Loop) emitLLMSpan(ctx context.Context, start time.Time, round int, resp *providers.ChatResponse, callErr error) {
	_, span := tracer().Start(ctx, "llm.chat",
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", l.provider.Name()),
			attribute.String("llm.model", l.model),
			attribute.Int("radar.round", round),
		),
	)
	defer span.End()

	if callErr != nil {
		span.RecordError(callErr)
		span.SetStatus(codes.Error, callErr.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(
		attribute.String("llm.finish_reason", resp.FinishReason),
		attribute.Int("llm.tool_calls", len(resp.ToolCalls)),
		attribute.String("llm.output_preview", truncateStr(resp.Content, 500)),
	)
	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int("llm.usage.prompt_tokens", resp.Usage.PromptTokens),
			attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
		)
	}
}

// emitToolSpan records one tool execution as a completed child span.
func (l *Loop) emitToolSpan(ctx context.Context, start time.Time, tc providers.ToolCall, result *tools.Result) {
	_, span := tracer().Start(ctx, "tool."+tc.Name,
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("tool.name", tc.Name),
			attribute.String("tool.call_id", tc.ID),
			attribute.String("tool.input_preview", truncateStr(tc.Arguments, 500)),
		),
	)
	defer span.End()

	if result == nil {
		return
	}
	span.SetAttributes(attribute.String("tool.output_preview", truncateStr(result.ForLLM, 500)))
	if result.IsError {
		msg := truncateStr(result.ForLLM, 200)
		if result.Err != nil {
			span.RecordError(result.Err)
		}
		span.SetStatus(codes.Error, msg)
	}
}
