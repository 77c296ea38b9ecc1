// Package logger is the structured logger of stockflow, a thin layer over
// zap's sugared logger. The package-level helpers take a context and attach
// the request, trace and actor fields found in it.
package logger

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "stockflow/internal/core/context"
)

// LedgerMessage is the message of the line written for every ledger entry.
const LedgerMessage = "stock ledger"

// Logger wraps zap.SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

type loggerKey struct{}

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error; unknown values mean info
	Development bool   // console encoder with colors
	OutputPaths []string
	// Service is added to every line as "service" when set.
	Service string
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	if cfg.Service != "" {
		zc.InitialFields = map[string]any{"service": cfg.Service}
	}

	zl, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return Wrap(zl), nil
}

// Wrap adapts an existing zap logger.
func Wrap(zl *zap.Logger) *Logger {
	return &Logger{zl.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

var fallback = sync.OnceValue(func() *Logger {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stdout"}
	zl, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return Nop()
	}
	return Wrap(zl)
})

// Default returns the process-wide logger used when a context carries none.
func Default() *Logger { return fallback() }

// Sync flushes buffered entries. Sync errors on terminals are meaningless
// and dropped.
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

// With adds key-value pairs.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{l.SugaredLogger.With(keysAndValues...)}
}

// WithComponent tags lines with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithContext adds request, trace and actor fields from ctx. Empty values
// are skipped; the otel span is used when no request trace was set.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func contextFields(ctx context.Context) []any {
	var fields []any
	add := func(key, value string) {
		if value != "" {
			fields = append(fields, key, value)
		}
	}

	if tc := appctx.GetTrace(ctx); tc != nil {
		add("trace_id", tc.TraceID)
		add("request_id", tc.RequestID)
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		add("trace_id", sc.TraceID().String())
		add("span_id", sc.SpanID().String())
	}

	if user := appctx.GetUser(ctx); user != nil {
		add("actor_id", user.UserID)
		add("role", user.Role)
	}
	return fields
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx (or Default) with the
// context fields attached.
func FromContext(ctx context.Context) *Logger {
	l, ok := ctx.Value(loggerKey{}).(*Logger)
	if !ok {
		l = Default()
	}
	return l.WithContext(ctx)
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}

// Fatal logs and exits the process.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Fatalw(msg, keysAndValues...)
}

// Ledger writes the audit line of one applied stock change. It always logs
// at info level, tagged with the ledger component, so the lines can be
// shipped and filtered separately.
func Ledger(ctx context.Context, keysAndValues ...any) {
	FromContext(ctx).WithComponent("ledger").Infow(LedgerMessage, keysAndValues...)
}
