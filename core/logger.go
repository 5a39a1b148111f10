package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ProductionLogger implements Logger and ComponentAwareLogger on top of log/slog.
// JSON output is used for log aggregation, text output for local development.
// When the context carries an active span, trace_id and span_id are added so
// log lines correlate with traces.
type ProductionLogger struct {
	logger *slog.Logger
}

// NewProductionLogger builds a logger from the logging and development settings.
// Output "stderr" writes to stderr, any other value to stdout.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) *ProductionLogger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(logging.Output, "stderr") {
		out = os.Stderr
	}
	return newProductionLogger(out, logging, dev, serviceName)
}

func newProductionLogger(out io.Writer, logging LoggingConfig, dev DevelopmentConfig, serviceName string) *ProductionLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(logging.Level)}
	if dev.Enabled && logging.Level == "" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if logging.Format == "text" || (dev.PrettyLogs && logging.Format != "json") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &ProductionLogger{
		logger: slog.New(handler).With("service", serviceName),
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger whose records carry the component name.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{logger: p.logger.With("component", component)}
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.log(context.Background(), slog.LevelInfo, msg, fields)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.log(context.Background(), slog.LevelError, msg, fields)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.log(context.Background(), slog.LevelWarn, msg, fields)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	p.log(context.Background(), slog.LevelDebug, msg, fields)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log(ctx, slog.LevelInfo, msg, fields)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log(ctx, slog.LevelError, msg, fields)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log(ctx, slog.LevelWarn, msg, fields)
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log(ctx, slog.LevelDebug, msg, fields)
}

func (p *ProductionLogger) log(ctx context.Context, level slog.Level, msg string, fields map[string]interface{}) {
	if !p.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields)+3)

	// Sorted keys keep output stable across runs
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fields[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		attrs = append(attrs, slog.Any(k, v))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String("request_id", id))
	}

	p.logger.LogAttrs(ctx, level, msg, attrs...)
}
