package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger: JSON output in production, colored
// console output otherwise.
//
// Parameters:
//   - environment: "production" selects the JSON encoder
//   - level: debug, info, warn or error; empty keeps the environment default
//
// Returns:
//   - *zap.Logger: Configured logger
//   - error: Unknown level or build failure
func NewLogger(environment, level string) (*zap.Logger, error) {
	var cfg zap.Config

	if strings.EqualFold(environment, "production") {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)

		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}

		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	return cfg.Build()
}
