// Package logger builds the zap loggers used by the sphfluid commands.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level       string
	Development bool
	// Encoding is "console" or "json". Defaults to console.
	Encoding string
	// Output is a path or "stderr"/"stdout". Interactive views log to a
	// file so the terminal stays clean.
	Output string
}

func New(cfg Config) (*zap.Logger, error) {
	if cfg.Encoding == "" {
		cfg.Encoding = "console"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.Config{
		Level:            level,
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{cfg.Output},
		ErrorOutputPaths: []string{"stderr"},
	}
	return zc.Build()
}

// ParseLevel converts a level name to an atomic level. Empty means info.
func ParseLevel(level string) (zap.AtomicLevel, error) {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	case "", "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel), nil
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel), nil
	default:
		return zap.AtomicLevel{}, fmt.Errorf("unknown log level %q", level)
	}
}
