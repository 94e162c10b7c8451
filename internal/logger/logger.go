package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"msgmon/pkg/logging"
)

// Logger is the structured logger shared by the monitor, the CLI and the
// watermill adapter. The Ctx variants prepend the message fields carried by
// ctx (see pkg/logging).
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{})

	// With returns a child logger that adds keysAndValues to every entry.
	With(keysAndValues ...interface{}) Logger
	Sync() error
}

type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a zap logger writing to stderr. format is "json" (default) or
// "console"; the CLI uses console output so tables and log lines read well
// together. An empty level means info.
func New(level, format string) (Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch format {
	case "", "json":
	case "console":
		cfg.Encoding = "console"
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &SugaredLogger{sugar: zapLogger.Sugar()}, nil
}

func NopLogger() Logger {
	return &SugaredLogger{sugar: zap.NewNop().Sugar()}
}

// NewObserved wraps an existing zap core, used by tests that assert on log output.
func NewObserved(core zapcore.Core) Logger {
	return &SugaredLogger{sugar: zap.New(core).Sugar()}
}

func (l *SugaredLogger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *SugaredLogger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *SugaredLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *SugaredLogger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *SugaredLogger) DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, withContext(ctx, keysAndValues)...)
}

func (l *SugaredLogger) InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, withContext(ctx, keysAndValues)...)
}

func (l *SugaredLogger) WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, withContext(ctx, keysAndValues)...)
}

func (l *SugaredLogger) ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, withContext(ctx, keysAndValues)...)
}

func (l *SugaredLogger) With(keysAndValues ...interface{}) Logger {
	return &SugaredLogger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *SugaredLogger) Sync() error {
	return l.sugar.Sync()
}

func withContext(ctx context.Context, keysAndValues []interface{}) []interface{} {
	fields := logging.GetLogFields(ctx)
	if len(fields) == 0 {
		return keysAndValues
	}
	return append(fields, keysAndValues...)
}
