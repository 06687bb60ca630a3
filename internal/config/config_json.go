// internal/config/config_json.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type harnessFile struct {
	Target         *string  `json:"target" yaml:"target"`
	TargetArgs     []string `json:"target_args" yaml:"target_args"`
	WorkDir        *string  `json:"work_dir" yaml:"work_dir"`
	BatchSize      *int     `json:"batch_size" yaml:"batch_size"`
	TotalCount     *int     `json:"total_count" yaml:"total_count"`
	SampleEvery    *int     `json:"sample_every" yaml:"sample_every"`
	PayloadSize    *int     `json:"payload_size" yaml:"payload_size"`
	PeakFactor     *float64 `json:"peak_factor" yaml:"peak_factor"`
	MaxEndMemoryMB *int     `json:"max_end_memory_mb" yaml:"max_end_memory_mb"`
	MaxGrowthMB    *int     `json:"max_growth_mb" yaml:"max_growth_mb"`
	StartTimeout   *string  `json:"start_timeout" yaml:"start_timeout"`   // "10s"
	ClientTimeout  *string  `json:"client_timeout" yaml:"client_timeout"` // "30s"
	ReportField    *string  `json:"report_field" yaml:"report_field"`
	Run            *string  `json:"run" yaml:"run"`
	Flaky          *bool    `json:"flaky" yaml:"flaky"`
	ResultsFile    *string  `json:"results_file" yaml:"results_file"`
	DatabaseDSN    *string  `json:"database_dsn" yaml:"database_dsn"`
	LogLevel       *string  `json:"log_level" yaml:"log_level"`
	LogFile        *string  `json:"log_file" yaml:"log_file"`
}

type fixtureFile struct {
	Address  *string `json:"address" yaml:"address"`
	LogLevel *string `json:"log_level" yaml:"log_level"`
	LogFile  *string `json:"log_file" yaml:"log_file"`
}

// loadFile decodes a JSON or YAML config file, chosen by extension.
func loadFile(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, dst)
	default:
		err = json.Unmarshal(b, dst)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func loadHarnessFile(path string) (*harnessFile, error) {
	var f harnessFile
	if err := loadFile(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func loadFixtureFile(path string) (*fixtureFile, error) {
	var f fixtureFile
	return &f, loadFile(path, &f)
}

func parseDurationSeconds(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}
