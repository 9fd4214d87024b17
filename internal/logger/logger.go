package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger. Development mode uses a colored console encoder,
// production mode emits JSON with ISO8601 timestamps.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config

	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	return cfg.Build()
}

// Must creates a logger or panics.
func Must(development bool) *zap.Logger {
	log, err := New(development)
	if err != nil {
		panic(err)
	}
	return log
}

// ForTicker returns a child logger scoped to one instrument.
func ForTicker(log *zap.Logger, ticker string) *zap.Logger {
	return log.With(zap.String("ticker", ticker))
}
