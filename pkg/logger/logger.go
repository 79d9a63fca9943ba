package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Leveled logger shared by the service binaries.
// - zap underneath, console encoding, ISO8601 timestamps
// - provides Debugf/Infof/Warnf/Errorf/Fatalf and Init(level)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = newLogger(zapcore.Lock(os.Stdout))
	sugar = base.Sugar()
)

func newLogger(w zapcore.WriteSyncer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), w, level), zap.AddCaller(), zap.AddCallerSkip(1))
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	s := strings.ToLower(strings.TrimSpace(l))
	switch s {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	case "fatal":
		level.SetLevel(zapcore.FatalLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// L returns the underlying zap logger (for gin and gorm adapters).
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithOptions(zap.AddCallerSkip(-1))
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// setOutput swaps the sink; tests use it to capture output.
func setOutput(w zapcore.WriteSyncer) func() {
	mu.Lock()
	defer mu.Unlock()
	origBase, origSugar := base, sugar
	base = newLogger(w)
	sugar = base.Sugar()
	return func() {
		mu.Lock()
		defer mu.Unlock()
		base, sugar = origBase, origSugar
	}
}

func Debugf(format string, v ...interface{}) { s().Debugf(format, v...) }
func Infof(format string, v ...interface{})  { s().Infof(format, v...) }
func Warnf(format string, v ...interface{})  { s().Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { s().Errorf(format, v...) }

// Fatalf logs and exits the process.
func Fatalf(format string, v ...interface{}) { s().Fatalf(format, v...) }

// Sync flushes buffered entries; call before exit.
func Sync() { _ = L().Sync() }

// LevelString returns the current level as text.
func LevelString() string {
	switch level.Level() {
	case zapcore.DebugLevel:
		return "debug"
	case zapcore.WarnLevel:
		return "warn"
	case zapcore.ErrorLevel:
		return "error"
	case zapcore.FatalLevel:
		return "fatal"
	}
	return "info"
}
