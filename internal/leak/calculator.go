// Package leak turns memory samples taken under load into leak reports and verdicts.
package leak

import (
	"context"
	"fmt"

	"github.com/and161185/bodyleak/internal/driver"
	"github.com/and161185/bodyleak/model"
	"go.uber.org/zap"
)

// MemoryReporter returns the target's current memory usage in bytes.
type MemoryReporter interface {
	MemoryUsage(ctx context.Context) (int64, error)
}

// Calculator samples the target's memory while a Driver puts it under load.
type Calculator struct {
	reporter    MemoryReporter
	driver      *driver.Driver
	sampleEvery int
	logger      *zap.SugaredLogger
}

// NewCalculator returns a Calculator sampling every sampleEvery requests.
func NewCalculator(reporter MemoryReporter, d *driver.Driver, sampleEvery int, logger *zap.SugaredLogger) *Calculator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Calculator{reporter: reporter, driver: d, sampleEvery: sampleEvery, logger: logger}
}

// Calculate drives fn through one full run and reports how memory evolved.
// Any request or sampling error aborts the run; nothing is retried.
func (c *Calculator) Calculate(ctx context.Context, fn driver.RequestFunc) (*model.LeakReport, error) {
	start, err := c.reporter.MemoryUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("start sample: %w", err)
	}

	report := &model.LeakReport{
		StartMemory:    start,
		PeakMemory:     start,
		MemoryExamples: []int64{},
	}

	err = c.driver.Run(ctx, fn, func(ctx context.Context, remaining int) error {
		if remaining <= 0 || remaining%c.sampleEvery != 0 {
			return nil
		}
		sample, err := c.reporter.MemoryUsage(ctx)
		if err != nil {
			return fmt.Errorf("sample at %d remaining: %w", remaining, err)
		}
		report.PeakMemory = max(report.PeakMemory, sample)
		report.MemoryExamples = append(report.MemoryExamples, sample)
		c.logger.Debugw("memory sample", "remaining", remaining, "bytes", sample)
		return nil
	})
	if err != nil {
		return nil, err
	}

	end, err := c.reporter.MemoryUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("end sample: %w", err)
	}
	report.EndMemory = end
	report.PeakMemory = max(report.PeakMemory, end)

	if len(report.MemoryExamples) == 0 {
		c.logger.Warnw("no mid-run samples, leak cannot be measured",
			"total", c.driver.Total, "sample_every", c.sampleEvery)
		return report, nil
	}
	report.Leak = Growth(report.MemoryExamples[0], end)
	return report, nil
}

// Growth returns the whole MiB gained between baseline and end, never negative.
// The baseline is the first mid-run sample: by then one-time setup cost is
// already paid, so only sustained growth remains.
func Growth(baseline, end int64) int64 {
	consumption := end - baseline
	if consumption <= 0 {
		return 0
	}
	return consumption / model.MiB
}
