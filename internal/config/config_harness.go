package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// HarnessConfig holds the configuration settings for the leak harness.
type HarnessConfig struct {
	TargetCmd       string   // Path to the target server binary
	TargetArgs      []string // Extra arguments passed to the target
	WorkDir         string   // Working directory of the target process
	BatchSize       int      // Requests in flight per batch
	TotalCount      int      // Requests per phase (warmup and measurement)
	SampleEvery     int      // Sample memory every N requests
	PayloadSize     int      // Request body size (in bytes)
	PeakFactor      float64  // Allowed peak/start memory ratio
	MaxEndMemoryMB  int      // Absolute ceiling for end memory (in MiB)
	MaxGrowthMB     int      // Leak tolerance per scenario (in MiB)
	StartTimeout    int      // Wait for the URL announcement (in seconds)
	ClientTimeout   int      // HTTP client timeout (in seconds)
	ReportField     string   // gjson path of the value in /report, empty for a bare number
	RunFilter       string   // Regexp selecting scenarios by name
	Flaky           bool     // Environment is known to be flaky
	FileStoragePath string   // Path to the JSON results file
	DatabaseDsn     string   // Data Source Name for PostgreSQL
	LogLevel        string
	LogFile         string
	Logger          *zap.SugaredLogger
}

// DefaultHarnessConfig returns the configuration the leak thresholds were calibrated with.
func DefaultHarnessConfig() *HarnessConfig {
	return &HarnessConfig{
		TargetCmd:      "./bin/fixture",
		BatchSize:      40,
		TotalCount:     10_000,
		SampleEvery:    1_000,
		PayloadSize:    512 * 1024,
		PeakFactor:     2.5,
		MaxEndMemoryMB: 512,
		MaxGrowthMB:    64,
		StartTimeout:   10,
		ClientTimeout:  30,
		LogLevel:       "info",
	}
}

// NewHarnessConfig creates and returns a new HarnessConfig by parsing flags, config file and environment variables.
func NewHarnessConfig() (*HarnessConfig, error) {
	return parseHarnessConfig(flag.CommandLine, os.Args[1:])
}

func parseHarnessConfig(fs *flag.FlagSet, args []string) (*HarnessConfig, error) {
	cfg := DefaultHarnessConfig()

	var fTarget, fDir, fField, fRun, fFile, fDSN, fLevel, fLogFile, fConf strFlag
	var fBatch, fTotal, fSample, fPayload, fMaxEnd, fGrowth, fStart, fTO intFlag
	var fPeak floatFlag
	var fFlaky boolFlag
	fs.Var(&fTarget, "target", "path to the target server binary")
	fs.Var(&fDir, "dir", "working directory of the target")
	fs.Var(&fBatch, "b", "batch size")
	fs.Var(&fTotal, "n", "requests per phase")
	fs.Var(&fSample, "s", "sample memory every N requests")
	fs.Var(&fPayload, "p", "payload size (bytes)")
	fs.Var(&fPeak, "peak", "allowed peak/start memory ratio")
	fs.Var(&fMaxEnd, "max-end", "end memory ceiling (MiB)")
	fs.Var(&fGrowth, "g", "leak tolerance per scenario (MiB)")
	fs.Var(&fStart, "start-timeout", "URL announcement timeout (seconds)")
	fs.Var(&fTO, "t", "client timeout (seconds)")
	fs.Var(&fField, "report-field", "gjson path of the memory value in /report")
	fs.Var(&fRun, "run", "regexp selecting scenarios by name")
	fs.Var(&fFlaky, "flaky", "environment is known to be flaky")
	fs.Var(&fFile, "f", "path to JSON results file")
	fs.Var(&fDSN, "d", "DB connection string")
	fs.Var(&fLevel, "l", "log level")
	fs.Var(&fLogFile, "log-file", "additional log output file")
	fs.Var(&fConf, "c", "path to JSON/YAML config file")
	fs.Var(&fConf, "config", "path to JSON/YAML config file (alias)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		js, err := loadHarnessFile(fConf.v)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		applyHarnessFile(cfg, js)
	}

	if fTarget.set {
		cfg.TargetCmd = fTarget.v
	}
	if fDir.set {
		cfg.WorkDir = fDir.v
	}
	if fBatch.set {
		cfg.BatchSize = fBatch.v
	}
	if fTotal.set {
		cfg.TotalCount = fTotal.v
	}
	if fSample.set {
		cfg.SampleEvery = fSample.v
	}
	if fPayload.set {
		cfg.PayloadSize = fPayload.v
	}
	if fPeak.set {
		cfg.PeakFactor = fPeak.v
	}
	if fMaxEnd.set {
		cfg.MaxEndMemoryMB = fMaxEnd.v
	}
	if fGrowth.set {
		cfg.MaxGrowthMB = fGrowth.v
	}
	if fStart.set {
		cfg.StartTimeout = fStart.v
	}
	if fTO.set {
		cfg.ClientTimeout = fTO.v
	}
	if fField.set {
		cfg.ReportField = fField.v
	}
	if fRun.set {
		cfg.RunFilter = fRun.v
	}
	if fFlaky.set {
		cfg.Flaky = fFlaky.v
	}
	if fFile.set {
		cfg.FileStoragePath = fFile.v
	}
	if fDSN.set {
		cfg.DatabaseDsn = fDSN.v
	}
	if fLevel.set {
		cfg.LogLevel = fLevel.v
	}
	if fLogFile.set {
		cfg.LogFile = fLogFile.v
	}
	if rest := fs.Args(); len(rest) > 0 {
		cfg.TargetArgs = rest
	}

	readHarnessEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	return cfg, nil
}

func applyHarnessFile(cfg *HarnessConfig, js *harnessFile) {
	if js.Target != nil {
		cfg.TargetCmd = *js.Target
	}
	if len(js.TargetArgs) > 0 {
		cfg.TargetArgs = js.TargetArgs
	}
	if js.WorkDir != nil {
		cfg.WorkDir = *js.WorkDir
	}
	if js.BatchSize != nil {
		cfg.BatchSize = *js.BatchSize
	}
	if js.TotalCount != nil {
		cfg.TotalCount = *js.TotalCount
	}
	if js.SampleEvery != nil {
		cfg.SampleEvery = *js.SampleEvery
	}
	if js.PayloadSize != nil {
		cfg.PayloadSize = *js.PayloadSize
	}
	if js.PeakFactor != nil {
		cfg.PeakFactor = *js.PeakFactor
	}
	if js.MaxEndMemoryMB != nil {
		cfg.MaxEndMemoryMB = *js.MaxEndMemoryMB
	}
	if js.MaxGrowthMB != nil {
		cfg.MaxGrowthMB = *js.MaxGrowthMB
	}
	if js.StartTimeout != nil {
		if sec, err := parseDurationSeconds(*js.StartTimeout); err == nil {
			cfg.StartTimeout = sec
		}
	}
	if js.ClientTimeout != nil {
		if sec, err := parseDurationSeconds(*js.ClientTimeout); err == nil {
			cfg.ClientTimeout = sec
		}
	}
	if js.ReportField != nil {
		cfg.ReportField = *js.ReportField
	}
	if js.Run != nil {
		cfg.RunFilter = *js.Run
	}
	if js.Flaky != nil {
		cfg.Flaky = *js.Flaky
	}
	if js.ResultsFile != nil {
		cfg.FileStoragePath = *js.ResultsFile
	}
	if js.DatabaseDSN != nil {
		cfg.DatabaseDsn = *js.DatabaseDSN
	}
	if js.LogLevel != nil {
		cfg.LogLevel = *js.LogLevel
	}
	if js.LogFile != nil {
		cfg.LogFile = *js.LogFile
	}
}

func readHarnessEnvironment(cfg *HarnessConfig) {
	if target := os.Getenv("TARGET"); target != "" {
		cfg.TargetCmd = target
	}
	if dir := os.Getenv("TARGET_DIR"); dir != "" {
		cfg.WorkDir = dir
	}

	envInt("BATCH_SIZE", &cfg.BatchSize)
	envInt("TOTAL_COUNT", &cfg.TotalCount)
	envInt("SAMPLE_EVERY", &cfg.SampleEvery)
	envInt("PAYLOAD_SIZE", &cfg.PayloadSize)
	envInt("MAX_END_MEMORY_MB", &cfg.MaxEndMemoryMB)
	envInt("MAX_GROWTH_MB", &cfg.MaxGrowthMB)
	envInt("START_TIMEOUT", &cfg.StartTimeout)
	envInt("CLIENT_TIMEOUT", &cfg.ClientTimeout)

	if peak := os.Getenv("PEAK_FACTOR"); peak != "" {
		v, err := strconv.ParseFloat(peak, 64)
		if err == nil {
			cfg.PeakFactor = v
		} else {
			log.Printf("invalid PEAK_FACTOR env var: %v", err)
		}
	}

	if field := os.Getenv("REPORT_FIELD"); field != "" {
		cfg.ReportField = field
	}
	if run := os.Getenv("RUN"); run != "" {
		cfg.RunFilter = run
	}

	if flaky := os.Getenv("FLAKY"); flaky != "" {
		v, err := strconv.ParseBool(flaky)
		if err == nil {
			cfg.Flaky = v
		} else {
			log.Printf("invalid FLAKY env var: %v", err)
		}
	}

	if fsp := os.Getenv("FILE_STORAGE_PATH"); fsp != "" {
		cfg.FileStoragePath = fsp
	}
	if dbDsn := os.Getenv("DATABASE_DSN"); dbDsn != "" {
		cfg.DatabaseDsn = dbDsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}

func envInt(name string, dst *int) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s env var: %v", name, err)
		return
	}
	*dst = v
}

// Validate reports the first setting the harness cannot run with.
func (cfg *HarnessConfig) Validate() error {
	if cfg.TargetCmd == "" {
		return ErrMissingTarget
	}
	for _, c := range []struct {
		name string
		v    int
	}{
		{"batch size", cfg.BatchSize},
		{"total count", cfg.TotalCount},
		{"sample interval", cfg.SampleEvery},
		{"payload size", cfg.PayloadSize},
		{"max end memory", cfg.MaxEndMemoryMB},
		{"start timeout", cfg.StartTimeout},
		{"client timeout", cfg.ClientTimeout},
	} {
		if err := positive(c.name, c.v); err != nil {
			return err
		}
	}
	if cfg.MaxGrowthMB < 0 {
		return fmt.Errorf("%w: max growth must not be negative, got %d", ErrInvalidValue, cfg.MaxGrowthMB)
	}
	if cfg.PeakFactor < 1 {
		return fmt.Errorf("%w: peak factor must be at least 1, got %v", ErrInvalidValue, cfg.PeakFactor)
	}
	if cfg.RunFilter != "" {
		if _, err := regexp.Compile(cfg.RunFilter); err != nil {
			return fmt.Errorf("%w: run filter: %v", ErrInvalidValue, err)
		}
	}
	return nil
}

// StartTimeoutDuration returns StartTimeout as a time.Duration.
func (cfg *HarnessConfig) StartTimeoutDuration() time.Duration {
	return time.Duration(cfg.StartTimeout) * time.Second
}

// ClientTimeoutDuration returns ClientTimeout as a time.Duration.
func (cfg *HarnessConfig) ClientTimeoutDuration() time.Duration {
	return time.Duration(cfg.ClientTimeout) * time.Second
}

// MaxEndMemory returns the end-memory ceiling in bytes.
func (cfg *HarnessConfig) MaxEndMemory() int64 {
	return int64(cfg.MaxEndMemoryMB) * 1024 * 1024
}
