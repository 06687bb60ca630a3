// Command harness runs every request-body scenario against fresh target
// processes and fails when any of them leaks memory.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"runtime"
	"syscall"

	"github.com/and161185/bodyleak/internal/buildinfo"
	"github.com/and161185/bodyleak/internal/config"
	"github.com/and161185/bodyleak/internal/scenario"
	"github.com/and161185/bodyleak/internal/target"
	"github.com/and161185/bodyleak/model"
	"github.com/and161185/bodyleak/storage"
	"github.com/and161185/bodyleak/storage/inmemory"
	"github.com/and161185/bodyleak/storage/postgres"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildinfo.PrintBuildInfo(buildVersion, buildDate, buildCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := config.NewHarnessConfig()
	if err != nil {
		log.Fatal(err)
	}
	defer config.Logger.Sync()

	config.Logger.Infof("Harness config: Target=%q, BatchSize=%d, TotalCount=%d, SampleEvery=%d, PayloadSize=%d, MaxGrowthMB=%d, Flaky=%t, DatabaseDSN set=%t",
		config.TargetCmd,
		config.BatchSize,
		config.TotalCount,
		config.SampleEvery,
		config.PayloadSize,
		config.MaxGrowthMB,
		config.Flaky,
		config.DatabaseDsn != "",
	)
	logHostMemory(config.Logger)

	if err := run(ctx, config); err != nil {
		config.Logger.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.HarnessConfig) error {
	var (
		store storage.Storage
		mem   *inmemory.MemStorage
	)
	if cfg.DatabaseDsn != "" {
		pg, err := postgres.NewPostgresStorage(ctx, cfg.DatabaseDsn)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
	} else {
		mem = inmemory.NewMemStorage()
		if cfg.FileStoragePath != "" {
			if err := mem.LoadFromFile(ctx, cfg.FileStoragePath); err != nil {
				return err
			}
		}
		store = mem
	}

	list := scenario.WithTolerance(
		scenario.Table(scenario.Conditions{Flaky: cfg.Flaky, GOOS: runtime.GOOS}),
		int64(cfg.MaxGrowthMB),
	)
	if cfg.RunFilter != "" {
		list = scenario.Filter(list, regexp.MustCompile(cfg.RunFilter))
	}

	spawner := &target.Spawner{
		Command: cfg.TargetCmd,
		Args:    cfg.TargetArgs,
		Dir:     cfg.WorkDir,
		Timeout: cfg.StartTimeoutDuration(),
		Logger:  cfg.Logger,
	}
	results, runErr := scenario.NewRunner(cfg, scenario.SpawnLauncher{Spawner: spawner}, store).Run(ctx, list)

	if mem != nil && cfg.FileStoragePath != "" {
		if err := mem.SaveToFile(context.WithoutCancel(ctx), cfg.FileStoragePath); err != nil {
			cfg.Logger.Errorw("failed to save results", "path", cfg.FileStoragePath, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	s := summarize(results)
	cfg.Logger.Infow("run finished", "passed", s.passed, "failed", s.failed, "pending", s.pending)
	if s.failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", s.failed, len(results))
	}
	return nil
}

type summary struct {
	passed, failed, pending int
}

func summarize(results []*model.ScenarioResult) summary {
	var s summary
	for _, r := range results {
		switch r.Status {
		case model.Passed:
			s.passed++
		case model.Failed:
			s.failed++
		case model.Pending:
			s.pending++
		}
	}
	return s
}
