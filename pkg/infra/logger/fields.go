// Package logger carries run-scoped structured logging fields through context.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

type contextKey int

const (
	fieldsKey contextKey = iota
	loggerKey
)

// fields 按写入顺序保存的键值对，同名键覆盖旧值。
type fields struct {
	keys   []string
	values map[string]interface{}
}

func (f *fields) clone() *fields {
	cp := &fields{
		keys:   append([]string(nil), f.keys...),
		values: make(map[string]interface{}, len(f.values)),
	}
	for k, v := range f.values {
		cp.values[k] = v
	}
	return cp
}

func (f *fields) set(key string, value interface{}) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *fields) toSlice() []interface{} {
	if len(f.keys) == 0 {
		return nil
	}
	out := make([]interface{}, 0, len(f.keys)*2)
	for _, k := range f.keys {
		out = append(out, k, f.values[k])
	}
	return out
}

func fromContext(ctx context.Context) *fields {
	if f, ok := ctx.Value(fieldsKey).(*fields); ok {
		return f
	}
	return &fields{values: map[string]interface{}{}}
}

// WithFields 向上下文追加键值对。非字符串键与落单的末尾值被忽略。
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	f := fromContext(ctx).clone()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			f.set(key, keysAndValues[i+1])
		}
	}
	return context.WithValue(ctx, fieldsKey, f)
}

// WithRunID adds run_id to the context logger fields.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return WithFields(ctx, "run_id", runID)
}

// WithProjectID adds project_id to the context logger fields.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	if projectID == "" {
		return ctx
	}
	return WithFields(ctx, "project_id", projectID)
}

// WithTraceFields 从当前 span 提取 trace_id 与 span_id。
// span 未采样时原样返回。
func WithTraceFields(ctx context.Context) context.Context {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return ctx
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return ctx
	}
	return WithFields(ctx, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

// GetContextFields returns all logger fields stored in ctx as a key-value slice.
func GetContextFields(ctx context.Context) []interface{} {
	return fromContext(ctx).toSlice()
}

// GetLogger 返回带上下文字段的 logger。
// 上下文中已存放 logger 时直接返回它。
func GetLogger(ctx context.Context) core.Logger {
	if l, ok := ctx.Value(loggerKey).(core.Logger); ok {
		return l
	}
	base := logger.Global()
	if f := GetContextFields(ctx); len(f) > 0 {
		return base.With(f...)
	}
	return base
}

// WithLogger stores a pre-configured logger in the context.
func WithLogger(ctx context.Context, log core.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}
