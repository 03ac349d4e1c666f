// Package logger builds the zap logger used by the wetest command.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment variables read when no flag is given.
const (
	EnvLevel  = "WETEST_LOG_LEVEL"
	EnvFormat = "WETEST_LOG_FORMAT"
)

// Format selects the encoder.
type Format string

const (
	// FormatConsole is human readable, one line per entry.
	FormatConsole Format = "CONSOLE"
	// FormatJSON is one JSON object per entry.
	FormatJSON Format = "JSON"
)

// Defaults used when neither flag nor environment set a value.
const (
	DefaultLevel  = "WARN"
	DefaultFormat = FormatConsole
)

// Level converts a level name to a zap level. Unknown names are INFO.
func Level(name string) zapcore.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseFormat returns the format named by s, or def when s is unknown.
func ParseFormat(s string, def Format) Format {
	switch f := Format(strings.ToUpper(s)); f {
	case FormatConsole, FormatJSON:
		return f
	}
	return def
}

// Resolve picks the level and format from the flags, then the environment,
// then the defaults.
func Resolve(level, format string) (string, Format) {
	if level == "" {
		level = getEnv(EnvLevel, DefaultLevel)
	}
	if format == "" {
		format = getEnv(EnvFormat, string(DefaultFormat))
	}
	return level, ParseFormat(format, DefaultFormat)
}

// New creates a logger writing to stderr.
func New(level string, format Format) *zap.Logger {
	return NewTo(os.Stderr, level, format)
}

// NewTo creates a logger writing to w.
func NewTo(w io.Writer, level string, format Format) *zap.Logger {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	var enc zapcore.Encoder
	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.TimeKey = zapcore.OmitKey
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.ConsoleSeparator = " | "
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(Level(level)))
	return zap.New(core)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
