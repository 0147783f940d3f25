package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.SugaredLogger

// Init initializes the global logger. Verbose enables debug-level output;
// otherwise only warnings and errors are emitted so the embedding host's
// stderr stays quiet during normal streaming.
func Init(verbose bool) {
	level := zap.WarnLevel
	if verbose {
		level = zap.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		base = zap.NewNop()
	}

	zap.ReplaceGlobals(base)
	logger = base.Sugar()
}

// Close flushes any buffered log entries
func Close() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// Debug logs a debug message with alternating key-value pairs
func Debug(msg string, keysAndValues ...any) {
	if logger != nil {
		logger.Debugw(msg, keysAndValues...)
	}
}

// Info logs an info message with alternating key-value pairs
func Info(msg string, keysAndValues ...any) {
	if logger != nil {
		logger.Infow(msg, keysAndValues...)
	}
}

// Warn logs a warning message with alternating key-value pairs
func Warn(msg string, keysAndValues ...any) {
	if logger != nil {
		logger.Warnw(msg, keysAndValues...)
	}
}

// Error logs an error message with alternating key-value pairs
func Error(msg string, keysAndValues ...any) {
	if logger != nil {
		logger.Errorw(msg, keysAndValues...)
	}
}
