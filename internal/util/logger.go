package util

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// InitLogger builds the process logger. Production logs JSON with ISO8601
// timestamps at info; anything else logs colored console output at debug.
// LOG_LEVEL overrides the level in either mode.
func InitLogger(env string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", lvl, err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}

	built, err := config.Build(zap.Fields(
		zap.String("service", ServiceName),
		zap.String("env", env),
	))
	if err != nil {
		return err
	}
	logger = built

	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SetLogger replaces the global logger, e.g. with zaptest or zap.NewNop in tests
func SetLogger(l *zap.Logger) {
	logger = l
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
