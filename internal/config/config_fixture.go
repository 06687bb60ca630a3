package config

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// FixtureConfig holds the configuration settings for the reference target server.
type FixtureConfig struct {
	Addr     string // Listen address, port 0 picks a free one
	LogLevel string
	LogFile  string
	Logger   *zap.SugaredLogger
}

// NewFixtureConfig creates and returns a new FixtureConfig by parsing flags, config file and environment variables.
func NewFixtureConfig() (*FixtureConfig, error) {
	return parseFixtureConfig(flag.CommandLine, os.Args[1:])
}

func parseFixtureConfig(fs *flag.FlagSet, args []string) (*FixtureConfig, error) {
	cfg := &FixtureConfig{
		Addr:     "127.0.0.1:0",
		LogLevel: "warn",
	}

	var fAddr, fLevel, fLogFile, fConf strFlag
	fs.Var(&fAddr, "a", "HTTP listen address")
	fs.Var(&fLevel, "l", "log level")
	fs.Var(&fLogFile, "log-file", "additional log output file")
	fs.Var(&fConf, "c", "path to JSON/YAML config file")
	fs.Var(&fConf, "config", "path to JSON/YAML config file (alias)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// JSON/YAML (lowest priority)
	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		js, err := loadFixtureFile(fConf.v)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		if js.Address != nil {
			cfg.Addr = *js.Address
		}
		if js.LogLevel != nil {
			cfg.LogLevel = *js.LogLevel
		}
		if js.LogFile != nil {
			cfg.LogFile = *js.LogFile
		}
	}

	if fAddr.set {
		cfg.Addr = fAddr.v
	}
	if fLevel.set {
		cfg.LogLevel = fLevel.v
	}
	if fLogFile.set {
		cfg.LogFile = fLogFile.v
	}

	readFixtureEnvironment(cfg)

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	return cfg, nil
}

func readFixtureEnvironment(cfg *FixtureConfig) {
	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.Addr = addr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}
