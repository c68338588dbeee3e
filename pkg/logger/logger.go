package logger

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base = zap.NewNop()

// New builds the process logger. Development mode switches to a console encoder.
func New(level string, development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// SetDefault replaces the logger returned by L and FromContext.
func SetDefault(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base = l
}

func L() *zap.Logger {
	return base
}

// FromContext returns the default logger enriched with the request id and
// the trace/span ids of the active span, when present.
func FromContext(ctx context.Context) *zap.Logger {
	l := base
	if ctx == nil {
		return l
	}

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}

	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(zap.String("trace_id", sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		l = l.With(zap.String("span_id", sc.SpanID().String()))
	}
	return l
}
