package observ

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu  sync.Mutex
	logger = newLogger()
)

func newLogger() *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "event"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(enc),
		zapcore.Lock(os.Stdout),
		zap.InfoLevel,
	)
	return zap.New(core)
}

// Log emits one structured JSON line per call.
func Log(event string, kv map[string]any) {
	logMu.Lock()
	l := logger
	logMu.Unlock()

	fields := make([]zap.Field, 0, len(kv))
	for k, v := range kv {
		fields = append(fields, zap.Any(k, v))
	}
	l.Info(event, fields...)
}

// Warn is Log at warning level, used for dropped records and
// reconnect failures that should stand out in captured output.
func Warn(event string, kv map[string]any) {
	logMu.Lock()
	l := logger
	logMu.Unlock()

	fields := make([]zap.Field, 0, len(kv))
	for k, v := range kv {
		fields = append(fields, zap.Any(k, v))
	}
	l.Warn(event, fields...)
}

// SetLogger swaps the backing logger; tests use this to capture output.
func SetLogger(l *zap.Logger) {
	logMu.Lock()
	logger = l
	logMu.Unlock()
}
