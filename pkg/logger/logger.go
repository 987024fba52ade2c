package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	subjectKey   ctxKey = "subject"
)

// Config mirrors config.LoggerConfig without importing the config package.
type Config struct {
	Level    string
	Encoding string
	// Output defaults to stdout.
	Output zapcore.WriteSyncer
}

// New builds a zap.Logger using the provided configuration.
func New(cfg Config) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "console":
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	out := cfg.Output
	if out == nil {
		out = zapcore.AddSync(os.Stdout)
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(out), level)

	return zap.New(core, zap.AddCaller()), nil
}

// ContextWithRequestID attaches a request ID to the provided context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithSubject attaches the authenticated subject id.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectKey, subject)
}

// Subject returns the subject id stored in ctx, or "" for anonymous requests.
func Subject(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// WithRequestID enriches the logger with the request ID and subject stored in the context.
func WithRequestID(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}
	var fields []zap.Field
	if reqID, ok := ctx.Value(requestIDKey).(string); ok && reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if sub := Subject(ctx); sub != "" {
		fields = append(fields, zap.String("subject", sub))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
