package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

// Logger wraps zap and knows how to pull request-scoped fields out of a
// context so every line in a request carries request_id and user_id.
type Logger struct {
	Logger *zap.Logger
}

// New builds a logger for the given mode: JSON in production, colored console
// output everywhere else.
func New(mode string) *Logger {
	var config zap.Config
	if mode == ProductionMode {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: zapLogger}
}

type ctxKey string

// Context keys populated by the request-id middleware and the auth layer.
const (
	RequestIDKey ctxKey = "request_id"
	UserIDKey    ctxKey = "user_id"
)

func contextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		fields = append(fields, zap.String(string(RequestIDKey), requestID))
	}
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		fields = append(fields, zap.String(string(UserIDKey), userID))
	}
	return fields
}

var global *Logger

func SetGlobalLogger(l *Logger) {
	global = l
}

func GetGlobalLogger() *Logger {
	return global
}

func (l *Logger) Infof(template string, args ...any) {
	l.Logger.Sugar().Infof(template, args...)
}

func (l *Logger) Errorf(template string, args ...any) {
	l.Logger.Sugar().Errorf(template, args...)
}

func (l *Logger) InfofCtx(ctx context.Context, template string, args ...any) {
	l.Logger.With(contextFields(ctx)...).Sugar().Infof(template, args...)
}

func (l *Logger) ErrorfCtx(ctx context.Context, template string, args ...any) {
	l.Logger.With(contextFields(ctx)...).Sugar().Errorf(template, args...)
}
