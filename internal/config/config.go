// Package config provides application configuration structures and helpers.
package config

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrInvalidValue  = errors.New("invalid config value")
	ErrMissingTarget = errors.New("target command is not set")
)

// NewLogger builds the production zap logger shared by the harness and the fixture.
// An empty logFile keeps output on stdout only.
func NewLogger(level, logFile string) (*zap.SugaredLogger, error) {
	logCfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	logCfg.Level = lvl
	logCfg.OutputPaths = []string{"stdout"}
	if logFile != "" {
		logCfg.OutputPaths = append(logCfg.OutputPaths, logFile)
	}

	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func positive(name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidValue, name, v)
	}
	return nil
}
