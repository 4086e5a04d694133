package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Setup installs a JSON slog handler at the given level as the process
// default logger.
func Setup(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// WithTraceID stores a trace identifier on the context so every Ctx* call
// carries it.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace identifier stored on ctx, if any.
func TraceID(ctx context.Context) string {
	return getTraceID(ctx)
}

func getTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

func withTrace(ctx context.Context, args []any) []any {
	if id := getTraceID(ctx); id != "" {
		return append(args, slog.String("trace_id", id))
	}
	return args
}

// CtxDebug logs at debug level with the context's trace ID attached.
func CtxDebug(ctx context.Context, msg string, args ...any) {
	slog.Debug(msg, withTrace(ctx, args)...)
}

// CtxInfo logs at info level with the context's trace ID attached.
func CtxInfo(ctx context.Context, msg string, args ...any) {
	slog.Info(msg, withTrace(ctx, args)...)
}

// CtxWarn logs at warn level with the context's trace ID attached.
func CtxWarn(ctx context.Context, msg string, args ...any) {
	slog.Warn(msg, withTrace(ctx, args)...)
}

// CtxError logs at error level with the error and trace ID attached.
func CtxError(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	slog.Error(msg, withTrace(ctx, args)...)
}

// Error logs at error level without context.
func Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	slog.Error(msg, args...)
}
