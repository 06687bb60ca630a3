package leak

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/and161185/bodyleak/internal/driver"
	"github.com/and161185/bodyleak/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// scriptedReporter returns the given samples in order, then repeats the last one.
type scriptedReporter struct {
	mu      sync.Mutex
	samples []int64
	calls   int
	failAt  int // 1-based call that fails, 0 = never
}

func (r *scriptedReporter) MemoryUsage(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAt != 0 && r.calls == r.failAt {
		return 0, errors.New("report unavailable")
	}
	i := min(r.calls-1, len(r.samples)-1)
	return r.samples[i], nil
}

// growingTarget reports memory proportional to the requests it has served,
// like a server that never releases a request body.
type growingTarget struct {
	base     int64
	perReq   int64
	requests atomic.Int64
}

func (g *growingTarget) MemoryUsage(context.Context) (int64, error) {
	return g.base + g.requests.Load()*g.perReq, nil
}

func (g *growingTarget) request(context.Context) error {
	g.requests.Add(1)
	return nil
}

func noop(context.Context) error { return nil }

func TestCalculate_SampleCountAndOrder(t *testing.T) {
	samples := []int64{100 * model.MiB}
	for i := range 9 {
		samples = append(samples, int64(110+i)*model.MiB)
	}
	samples = append(samples, 120*model.MiB)
	rep := &scriptedReporter{samples: samples}

	c := NewCalculator(rep, driver.New(40, 10_000), 1_000, nil)
	report, err := c.Calculate(context.Background(), noop)
	require.NoError(t, err)

	require.Len(t, report.MemoryExamples, 9)
	require.Equal(t, samples[1:10], report.MemoryExamples)
	require.Equal(t, 11, rep.calls, "start + 9 mid-run + end")
	require.EqualValues(t, 100*model.MiB, report.StartMemory)
	require.EqualValues(t, 120*model.MiB, report.EndMemory)
	require.EqualValues(t, 120*model.MiB, report.PeakMemory)
	require.EqualValues(t, 10, report.Leak, "growth is measured from the first mid-run sample")
}

func TestCalculate_PeakIsRunningMaximum(t *testing.T) {
	tests := []struct {
		name    string
		samples []int64
		peak    int64
		leak    int64
	}{
		{"peak_mid_run", []int64{100, 300 * model.MiB, 200, 50 * model.MiB}, 300 * model.MiB, 0},
		{"peak_at_start", []int64{900 * model.MiB, 10 * model.MiB, 20 * model.MiB, 30 * model.MiB}, 900 * model.MiB, 20},
		{"peak_at_end", []int64{10, 20, 30, 70*model.MiB + 5}, 70*model.MiB + 5, 69},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rep := &scriptedReporter{samples: tc.samples}
			// 30 requests in batches of 10, sampled at remaining 20 and 10
			c := NewCalculator(rep, driver.New(10, 30), 10, nil)
			report, err := c.Calculate(context.Background(), noop)
			require.NoError(t, err)

			require.Len(t, report.MemoryExamples, 2)
			require.Equal(t, tc.peak, report.PeakMemory)
			require.GreaterOrEqual(t, report.PeakMemory, report.StartMemory)
			require.GreaterOrEqual(t, report.PeakMemory, report.EndMemory)
			require.Equal(t, tc.leak, report.Leak)
			require.Equal(t, Growth(report.MemoryExamples[0], report.EndMemory), report.Leak)
		})
	}
}

func TestCalculate_LeakingTargetFailsVerdict(t *testing.T) {
	target := &growingTarget{base: 100 * model.MiB, perReq: 512 * 1024}

	c := NewCalculator(target, driver.New(40, 10_000), 1_000, nil)
	report, err := c.Calculate(context.Background(), target.request)
	require.NoError(t, err)

	// 9,000 retained bodies of 512 KiB between the first sample and the end
	require.EqualValues(t, 4500, report.Leak)
	require.Greater(t, report.Leak, int64(1024), "leak is in the gigabyte range")

	err = Evaluate(report, 64, DefaultThresholds())
	var thErr *ThresholdError
	require.ErrorAs(t, err, &thErr)
}

func TestCalculate_StableTargetPasses(t *testing.T) {
	target := &growingTarget{base: 200 * model.MiB}

	c := NewCalculator(target, driver.New(40, 10_000), 1_000, nil)
	report, err := c.Calculate(context.Background(), target.request)
	require.NoError(t, err)
	require.Zero(t, report.Leak)
	require.NoError(t, Evaluate(report, 64, DefaultThresholds()))
}

func TestCalculate_RequestFailureAbortsRun(t *testing.T) {
	rep := &scriptedReporter{samples: []int64{1}}
	mismatch := driver.NewValidationError("/streaming-echo", []byte("full payload"), []byte("full"))

	c := NewCalculator(rep, driver.New(4, 40), 8, nil)
	report, err := c.Calculate(context.Background(), func(context.Context) error { return mismatch })

	require.Nil(t, report)
	var vErr *driver.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, 1, rep.calls, "only the start sample was taken")
}

func TestCalculate_ReporterFailure(t *testing.T) {
	for _, failAt := range []int{1, 2, 4} {
		rep := &scriptedReporter{samples: []int64{1, 2, 3, 4}, failAt: failAt}
		c := NewCalculator(rep, driver.New(10, 30), 10, nil)
		_, err := c.Calculate(context.Background(), noop)
		require.Error(t, err, "fail at call %d", failAt)
	}
}

func TestCalculate_NoMidRunSamples(t *testing.T) {
	core, obs := observer.New(zap.WarnLevel)
	rep := &scriptedReporter{samples: []int64{10 * model.MiB, 900 * model.MiB}}

	c := NewCalculator(rep, driver.New(10, 50), 1_000, zap.New(core).Sugar())
	report, err := c.Calculate(context.Background(), noop)
	require.NoError(t, err)

	require.Empty(t, report.MemoryExamples)
	require.Zero(t, report.Leak)
	require.EqualValues(t, 900*model.MiB, report.PeakMemory)
	require.Equal(t, 1, obs.Len())
}

func TestGrowth(t *testing.T) {
	require.EqualValues(t, 0, Growth(10*model.MiB, 5*model.MiB))
	require.EqualValues(t, 0, Growth(10, 10))
	require.EqualValues(t, 0, Growth(0, model.MiB-1))
	require.EqualValues(t, 1, Growth(0, 2*model.MiB-1))
	require.EqualValues(t, 64, Growth(100*model.MiB, 164*model.MiB))
}
