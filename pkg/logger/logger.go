package logger

import (
	"context"

	"go.uber.org/zap"

	"gigmarket/pkg/trace"
)

// NewLogger builds the process logger. "local" and "dev" environments get a
// human-readable development logger; everything else logs JSON.
func NewLogger(env string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	switch env {
	case "local", "dev":
		l, err = zap.NewDevelopment()
	default:
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
