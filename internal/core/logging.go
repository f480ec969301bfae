package core

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-wide application logger from the logging
// config section. Logs go to stdout as human-readable console lines; when a
// log file is configured, output switches to that file in JSON so the lines
// stay machine-parseable.
func NewLogger(cfg *Config) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("unrecognized log level %q: %w", cfg.Logging.LogLevel, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	logConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    !cfg.Logging.IncludeCaller,
	}
	if cfg.Logging.LogFilePath != "" {
		logConfig.Encoding = "json"
		logConfig.OutputPaths = []string{cfg.Logging.LogFilePath}
		logConfig.ErrorOutputPaths = []string{cfg.Logging.LogFilePath}
	}

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Sugar(), nil
}
