package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level, encoding, and the extractor identity stamped on
// every entry.
type Options struct {
	Level     string
	Encoding  string
	Extractor string
}

// New constructs a zap.Logger for structured logging. Encoding defaults to
// JSON; "console" is used by one-shot CLI commands.
func New(opts Options) (*zap.Logger, error) {
	zapLevel := zapcore.InfoLevel
	if opts.Level != "" {
		if err := zapLevel.Set(strings.ToLower(opts.Level)); err != nil {
			return nil, err
		}
	}

	encoding := strings.ToLower(strings.TrimSpace(opts.Encoding))
	if encoding != "console" {
		encoding = "json"
	}

	encodeLevel := zapcore.LowercaseLevelEncoder
	if encoding == "console" {
		encodeLevel = zapcore.CapitalLevelEncoder
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logr, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if opts.Extractor != "" {
		logr = logr.With(zap.String("extractor", opts.Extractor))
	}
	return logr, nil
}
