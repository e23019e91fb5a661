package cli

import (
	"fmt"

	"go.uber.org/zap"
)

// newLogger builds the process logger: a development config writing to
// stdout, or the production config.
func newLogger(s LogSettings) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if s.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stdout"}
	} else {
		cfg = zap.NewProductionConfig()
	}
	if s.Level != "" {
		level, err := zap.ParseAtomicLevel(s.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", s.Level, err)
		}
		cfg.Level = level
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}
