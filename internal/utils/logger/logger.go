package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *zap.SugaredLogger
)

// Init builds the process logger at the given level and installs it.
// An empty level means "info".
func Init(level string) (*zap.SugaredLogger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.OutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := z.Sugar()
	SetLogger(s)
	return s, nil
}

// ParseLevel maps debug|info|warn|error to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", level)
	}
}

// SetLogger installs z as the process logger. Tests use it to capture output.
func SetLogger(z *zap.SugaredLogger) {
	mu.Lock()
	global = z
	mu.Unlock()
}

// Logger returns the process logger, or a no-op logger before Init.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return zap.NewNop().Sugar()
	}
	return global
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger().Sync()
}
