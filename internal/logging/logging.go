// Package logging provides the structured logger shared by the Nova binaries.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the key/value logging surface used across the project.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Sync() error
}

type noopLogger struct{}

func (noopLogger) Infow(string, ...interface{})  {}
func (noopLogger) Debugw(string, ...interface{}) {}
func (noopLogger) Warnw(string, ...interface{})  {}
func (noopLogger) Errorw(string, ...interface{}) {}
func (noopLogger) Sync() error                   { return nil }

var (
	mu      sync.RWMutex
	current Logger = noopLogger{}
	sugar   *zap.SugaredLogger
	once    sync.Once
)

// Init builds the process logger from LOG_LEVEL (debug, info, warn, error)
// and redirects the standard library logger into it. Safe to call more than once.
func Init(name string) *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.Config{
			Encoding:         "json",
			EncoderConfig:    zap.NewProductionEncoderConfig(),
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
			Level:            zap.NewAtomicLevelAt(levelFromEnv()),
		}
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		logger, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.ErrorLevel))
		if err != nil {
			logger = zap.NewNop()
		}
		logger = logger.Named(name)
		_ = zap.RedirectStdLog(logger)

		sugar = logger.Sugar()
		SetLogger(sugar)
	})
	return sugar
}

func levelFromEnv() zapcore.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	}
	return zap.InfoLevel
}

// SetLogger replaces the package logger. Passing nil restores the logger
// built by Init, or a no-op logger if Init was never called.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	switch {
	case l != nil:
		current = l
	case sugar != nil:
		current = sugar
	default:
		current = noopLogger{}
	}
}

// L returns the current logger.
func L() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Infow(msg string, keysAndValues ...interface{})  { L().Infow(msg, keysAndValues...) }
func Debugw(msg string, keysAndValues ...interface{}) { L().Debugw(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...interface{})  { L().Warnw(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...interface{}) { L().Errorw(msg, keysAndValues...) }

// Sync flushes buffered log entries.
func Sync() error { return L().Sync() }
