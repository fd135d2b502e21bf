package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// ActionIDKey is the field name carrying the id of a user-initiated action.
const ActionIDKey = "action_id"

// Log is the process-wide logger. It discards everything until Init is called.
var Log = zap.NewNop()

// Init builds a JSON logger on stderr. stdout stays reserved for command output.
func Init(service, level string) {
	InitWithFile(service, level, "")
}

// InitWithFile is Init plus an optional append-only log file.
func InitWithFile(service, level, logFile string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zap.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.MessageKey = "msg"

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if logFile != "" {
		// a broken file path must not stop the CLI, stderr still works
		if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			sinks = append(sinks, zapcore.AddSync(f))
		}
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.NewMultiWriteSyncer(sinks...), lvl)
	Log = zap.New(core, zap.AddCaller()).With(zap.String("service", service))
}

// Named returns l, or the package logger when l is nil, scoped under name.
func Named(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = Log
	}
	return l.Named(name)
}

// WithAction stores an action id in ctx so that every log line of one
// approve/confirm flow can be correlated.
func WithAction(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ActionID returns the id stored by WithAction, or "".
func ActionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// For returns l with the action id of ctx attached, if there is one.
func For(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := ActionID(ctx); id != "" {
		return l.With(zap.String(ActionIDKey, id))
	}
	return l
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func Sync() {
	_ = Log.Sync()
}
