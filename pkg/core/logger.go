package core

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from cfg. An empty level returns a no-op
// logger, which is what library callers get unless they opt in.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	if cfg.Level == "" {
		return zap.NewNop(), nil
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, NewMemoryError("NewLogger", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Encoding == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return nil, NewMemoryError("NewLogger", err)
	}
	return logger.Named("recallmem"), nil
}
