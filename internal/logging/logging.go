// Package logging configures the process-wide zap logger from
// conf.LogOptions and exposes it to every other package.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.Mutex
	log *zap.SugaredLogger = zap.NewNop().Sugar()
)

// Level mirrors the five-level scheme used by opensrf.xml
// (1=Error .. 5=Trace), matching the original Rust log-level mapping.
type Level int

const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelDebug, LevelTrace:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Configure installs the process-wide logger. Safe to call once at
// startup; callers elsewhere should use Logger().
func Configure(level Level, facility string) error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	cfg.Encoding = "console"

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	log = l.Sugar().With("facility", facility)
	mu.Unlock()

	return nil
}

// Logger returns the process-wide logger.
func Logger() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return log
}

// WithTrace returns a child logger tagged with an osrf_xid-style trace id.
func WithTrace(traceID string) *zap.SugaredLogger {
	return Logger().With("osrf_xid", traceID)
}
