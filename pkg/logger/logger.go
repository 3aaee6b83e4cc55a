package logger

import (
	"github.com/suteetoe/tradeflow/pkg/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// InitLogger builds the process logger from config and installs it as the zap global.
// Production emits JSON with ISO8601 timestamps, anything else gets the colored console encoder.
func InitLogger(cfg *config.Config) error {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Server.Env == "production" {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	built, err := zcfg.Build(zap.Fields(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Server.Env),
	))
	if err != nil {
		return err
	}

	log = built
	zap.ReplaceGlobals(log)
	return nil
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	return log
}
