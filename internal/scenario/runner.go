package scenario

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/and161185/bodyleak/internal/config"
	"github.com/and161185/bodyleak/internal/driver"
	"github.com/and161185/bodyleak/internal/leak"
	"github.com/and161185/bodyleak/internal/reporter"
	"github.com/and161185/bodyleak/internal/target"
	"github.com/and161185/bodyleak/model"
	"github.com/and161185/bodyleak/storage"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

// Target is a running server under test.
type Target interface {
	URL() *url.URL
	Kill() error
}

// Launcher starts a fresh target.
type Launcher interface {
	Launch(ctx context.Context) (Target, error)
}

// SpawnLauncher launches targets as child processes.
type SpawnLauncher struct {
	Spawner *target.Spawner
}

func (l SpawnLauncher) Launch(ctx context.Context) (Target, error) {
	p, err := l.Spawner.Launch(ctx)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Runner executes scenarios one after another, each against its own target.
type Runner struct {
	cfg        *config.HarnessConfig
	launcher   Launcher
	store      storage.Storage
	thresholds leak.Thresholds
	payload    []byte
	logger     *zap.SugaredLogger
}

func NewRunner(cfg *config.HarnessConfig, launcher Launcher, store storage.Storage) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{
		cfg:      cfg,
		launcher: launcher,
		store:    store,
		thresholds: leak.Thresholds{
			PeakFactor:   cfg.PeakFactor,
			MaxEndMemory: cfg.MaxEndMemory(),
		},
		payload: NewPayload(cfg.PayloadSize),
		logger:  logger,
	}
}

// env is everything one scenario owns. It is built in setup and torn down
// before the next scenario starts.
type env struct {
	target   Target
	client   *http.Client
	caller   *Caller
	reporter *reporter.Client
}

func (r *Runner) setup(ctx context.Context) (*env, error) {
	t, err := r.launcher.Launch(ctx)
	if err != nil {
		return nil, err
	}

	// one idle connection per concurrent request so batches reuse them
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = r.cfg.BatchSize
	client := &http.Client{Transport: transport, Timeout: r.cfg.ClientTimeoutDuration()}

	caller, err := NewCaller(client, t.URL(), r.payload)
	if err != nil {
		_ = t.Kill()
		return nil, err
	}

	return &env{
		target:   t,
		client:   client,
		caller:   caller,
		reporter: reporter.NewClient(client, t.URL(), r.cfg.ReportField),
	}, nil
}

func (e *env) teardown(logger *zap.SugaredLogger) {
	e.client.CloseIdleConnections()
	if err := e.target.Kill(); err != nil {
		logger.Warnw("failed to stop target", "error", err)
	}
}

// Run executes scenarios in order under a single run id and stores every result.
// It stops early only when ctx is canceled or a result cannot be stored.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) ([]*model.ScenarioResult, error) {
	runID := xid.New().String()
	r.logger.Infow("run started", "run_id", runID, "scenarios", len(scenarios))

	results := make([]*model.ScenarioResult, 0, len(scenarios))
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := r.RunScenario(ctx, runID, sc)
		results = append(results, res)

		if err := r.store.Save(ctx, res); err != nil {
			return results, fmt.Errorf("failed to save result of %q: %w", sc.Name, err)
		}
	}
	return results, nil
}

// RunScenario measures one scenario against a fresh target. It never
// returns nil; every failure is recorded on the result.
func (r *Runner) RunScenario(ctx context.Context, runID string, sc Scenario) *model.ScenarioResult {
	logger := r.logger.With("scenario", sc.Name)
	res := &model.ScenarioResult{
		RunID:     runID,
		Scenario:  sc.Name,
		StartedAt: time.Now(),
	}
	finish := func(status model.Status, err error) *model.ScenarioResult {
		res.Status = status
		res.FinishedAt = time.Now()
		if err != nil {
			res.Error = err.Error()
			logger.Errorw("scenario failed", "error", err)
		} else {
			logger.Infow("scenario finished", "status", status)
		}
		return res
	}

	if sc.Skip {
		return finish(model.Pending, nil)
	}

	logger.Infow("scenario started", "endpoint", sc.Endpoint)
	e, err := r.setup(ctx)
	if err != nil {
		return finish(model.Failed, fmt.Errorf("setup: %w", err))
	}
	defer e.teardown(logger)

	d := driver.New(r.cfg.BatchSize, r.cfg.TotalCount)
	if err := Warmup(ctx, d, e.caller, e.reporter); err != nil {
		return finish(model.Failed, fmt.Errorf("warmup: %w", err))
	}

	calc := leak.NewCalculator(e.reporter, d, r.cfg.SampleEvery, logger)
	report, err := calc.Calculate(ctx, func(ctx context.Context) error {
		return sc.Request(e.caller, ctx)
	})
	if err != nil {
		return finish(model.Failed, fmt.Errorf("measure: %w", err))
	}
	res.Report = report

	logger.Infow("memory measured",
		"leak_mb", report.Leak,
		"start_memory", report.StartMemory,
		"peak_memory", report.PeakMemory,
		"end_memory", report.EndMemory,
	)

	if err := leak.Evaluate(report, sc.MaxMemoryGrowthMB, r.thresholds); err != nil {
		return finish(model.Failed, err)
	}
	return finish(model.Passed, nil)
}
