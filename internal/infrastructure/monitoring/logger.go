package monitoring

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

type zapLogger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger builds the service logger. The level is shared by every derived logger so
// SetLevel on any of them takes effect everywhere.
func NewZapLogger(cfg config.LogConfig) (logger.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	atom := zap.NewAtomicLevelAt(level)

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	sink := zapcore.AddSync(os.Stdout)
	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		ws, _, err := zap.Open(cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		sink = ws
	}

	core := zapcore.NewCore(encoder, sink, atom)
	return &zapLogger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)),
		level:  atom,
	}, nil
}

// NewZapLoggerFrom wraps an existing zap logger, e.g. zaptest or an observer core.
func NewZapLoggerFrom(l *zap.Logger, level zap.AtomicLevel) logger.Logger {
	return &zapLogger{Logger: l, level: level}
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Debug(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Info(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Warn(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.Logger.Error(msg, append(l.convertFields(ctx, fields), zap.Error(err))...)
}

func (l *zapLogger) Fatal(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.Logger.Fatal(msg, append(l.convertFields(ctx, fields), zap.Error(err))...)
}

func (l *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return &zapLogger{Logger: l.Logger.With(l.convertFields(context.Background(), fields)...), level: l.level}
}

func (l *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{Logger: l.Logger.Named(component), level: l.level}
}

func (l *zapLogger) SetLevel(level constants.LogLevel) {
	parsed, err := zapcore.ParseLevel(string(level))
	if err != nil {
		return
	}
	l.level.SetLevel(parsed)
}

func (l *zapLogger) GetLevel() constants.LogLevel {
	return constants.LogLevel(l.level.Level().String())
}

func (l *zapLogger) convertFields(ctx context.Context, fields []logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+2)
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			zapFields = append(zapFields, zap.String("trace_id", sc.TraceID().String()))
		}
		if requestID, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok && requestID != "" {
			zapFields = append(zapFields, zap.String("request_id", requestID))
		}
	}
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, logger.SanitizeValue(f.Key, f.Value)))
	}
	return zapFields
}
