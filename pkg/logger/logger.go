package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger
type Logger struct {
	*zap.Logger
}

// Config represents the logger configuration
type Config struct {
	// Level is the minimum enabled logging level
	Level string `json:"level"`
	// Development puts the logger in development mode
	Development bool `json:"development"`
	// Encoding sets the logger's encoding (json or console)
	Encoding string `json:"encoding"`
}

// NewLogger creates a new logger
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}

	level := zap.NewAtomicLevel()
	err := level.UnmarshalText([]byte(cfg.Level))
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	zapConfig := zap.Config{
		Level:            level,
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger}, nil
}

// NewDefaultLogger creates a new logger with default configuration
func NewDefaultLogger() *Logger {
	cfg := Config{
		Level:       "info",
		Development: false,
		Encoding:    "json",
	}

	if os.Getenv("ENVIRONMENT") == "development" {
		cfg.Development = true
		cfg.Encoding = "console"
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		zapLogger, _ := zap.NewProduction()
		return &Logger{zapLogger}
	}

	return logger
}

// With adds a variadic number of fields to the logging context
func (l *Logger) With(fields ...zapcore.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// Named adds a sub-logger with the specified name
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
