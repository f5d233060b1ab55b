package internal

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// Field keys shared by every fold event so runs can be filtered per cell.
const (
	FieldRun            = "run_id"
	FieldConfiguration  = "configuration"
	FieldDimensionality = "dimensionality"
	FieldEffective      = "effective_dimensionality"
	FieldFold           = "fold"
	FieldPatient        = "patient"
	FieldStage          = "stage"
	FieldPolicy         = "policy"
	FieldDuration       = "duration"
	FieldSink           = "sink"
)

// ParseLogLevel maps LOG_LEVEL values. Unknown values fall back to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

// zapLevel collapses TRACE onto zap's debug level.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelDebug, LogLevelTrace:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLogger builds a zap logger. format is "json" or "console".
func NewLogger(level LogLevel, format string) (*zap.Logger, error) {
	var config zap.Config
	switch strings.ToLower(format) {
	case "", "json":
		config = zap.NewProductionConfig()
	case "console":
		config = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	config.Level = zap.NewAtomicLevelAt(level.zapLevel())
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = level < LogLevelTrace

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// NewDefaultLogger creates a logger from LOG_LEVEL and LOG_FORMAT, falling back
// to a no-op logger if the configuration cannot be built.
func NewDefaultLogger() *zap.Logger {
	logger, err := NewLogger(ParseLogLevel(os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FORMAT"))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
