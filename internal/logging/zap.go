package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log output formats accepted by server.log_format.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// NewZapLogger builds the process-wide structured logger the storage engine
// and wire listeners log through, matching the teacher's
// zap.NewProduction()-at-startup convention but honoring the configured
// level and format instead of always defaulting to production JSON.
func NewZapLogger(level, format string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if format == FormatText {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)

	return zapCfg.Build()
}
