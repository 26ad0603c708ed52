package log

import (
	"context"
	"time"

	"github.com/on-the-ground/flux_ive_go/scope"
	"github.com/on-the-ground/flux_ive_go/scope/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the zap level a log effect is written at.
type LogLevel zapcore.Level

const (
	LogDebug = LogLevel(zapcore.DebugLevel)
	LogInfo  = LogLevel(zapcore.InfoLevel)
	LogWarn  = LogLevel(zapcore.WarnLevel)
	LogError = LogLevel(zapcore.ErrorLevel)
)

func (l LogLevel) String() string {
	return zapcore.Level(l).String()
}

// LogPayload is one log record travelling to the log worker.
//
// At is taken when the effect is performed, so entries keep their call time
// even when the worker writes them later. Fields holds the fields bound to the
// context with WithFields followed by the ones given to LogEff; later keys win.
type LogPayload struct {
	Level   LogLevel
	Message string
	At      time.Time
	Fields  map[string]interface{}
}

type fieldsKey struct{}

// WithFields binds fields to ctx. Every LogEff performed with the returned
// context, or a context derived from it, carries them.
func WithFields(ctx context.Context, fields map[string]interface{}) context.Context {
	bound := make(map[string]interface{}, len(fields))
	for k, v := range boundFields(ctx) {
		bound[k] = v
	}
	for k, v := range fields {
		bound[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, bound)
}

func boundFields(ctx context.Context) map[string]interface{} {
	fields, _ := ctx.Value(fieldsKey{}).(map[string]interface{})
	return fields
}

// WithZapEffectHandler registers a fire-and-forget log effect handler using zap.Logger.
// The returned context includes the handler under the EffectLog enum.
// A nil logger discards everything. The teardown syncs the logger once every
// queued entry has been written or discarded.
func WithZapEffectHandler(
	ctx context.Context,
	bufferSize int,
	logger *zap.Logger,
) (context.Context, func() context.Context) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return scope.WithFireAndForgetEffectHandler(
		ctx,
		bufferSize,
		model.EffectLog,
		func(_ context.Context, payload LogPayload) {
			write(logger, payload)
		},
		func() {
			if err := logger.Sync(); err != nil {
				zap.L().Debug("failed to sync logger", zap.Error(err))
			}
		},
	)
}

func write(logger *zap.Logger, payload LogPayload) {
	ce := logger.Check(zapcore.Level(payload.Level), payload.Message)
	if ce == nil {
		return
	}
	if !payload.At.IsZero() {
		ce.Time = payload.At
	}
	fields := make([]zap.Field, 0, len(payload.Fields))
	for k, v := range payload.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	ce.Write(fields...)
}

// LogEff performs a fire-and-forget log effect using the EffectLog handler in the context.
// This should be used to emit structured logs within an effect-managed execution scope.
// A cancelled ctx still logs; entries performed after the log scope is torn
// down are dropped.
func LogEff(ctx context.Context, level LogLevel, msg string, fields map[string]interface{}) {
	bound := boundFields(ctx)
	merged := fields
	if len(bound) > 0 {
		merged = make(map[string]interface{}, len(bound)+len(fields))
		for k, v := range bound {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	scope.FireAndForgetEffect(context.WithoutCancel(ctx), model.EffectLog, LogPayload{
		Level:   level,
		Message: msg,
		At:      time.Now(),
		Fields:  merged,
	})
}
