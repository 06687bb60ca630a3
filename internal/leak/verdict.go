package leak

import (
	"fmt"
	"strings"

	"github.com/and161185/bodyleak/model"
)

// Thresholds are the empirically chosen bounds every scenario is held to.
type Thresholds struct {
	PeakFactor   float64 // peak may not exceed start * PeakFactor
	MaxEndMemory int64   // absolute end-memory ceiling in bytes
}

// DefaultThresholds returns the 2.5x peak and 512 MiB end bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{PeakFactor: 2.5, MaxEndMemory: 512 * model.MiB}
}

// Violation is one exceeded bound.
type Violation struct {
	Bound    string
	Measured float64
	Limit    float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: measured %.0f, limit %.0f", v.Bound, v.Measured, v.Limit)
}

// ThresholdError lists every bound a report exceeded.
type ThresholdError struct {
	Violations []Violation
}

func (e *ThresholdError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "memory bounds exceeded: " + strings.Join(parts, "; ")
}

// Evaluate checks a report against the thresholds and the scenario's leak
// tolerance. It returns a *ThresholdError naming every violated bound.
func Evaluate(r *model.LeakReport, maxGrowthMB int64, th Thresholds) error {
	var violations []Violation

	peakLimit := float64(r.StartMemory) * th.PeakFactor
	if float64(r.PeakMemory) > peakLimit {
		violations = append(violations, Violation{Bound: "peak memory", Measured: float64(r.PeakMemory), Limit: peakLimit})
	}
	if r.Leak > maxGrowthMB {
		violations = append(violations, Violation{Bound: "leak (MiB)", Measured: float64(r.Leak), Limit: float64(maxGrowthMB)})
	}
	if r.EndMemory > th.MaxEndMemory {
		violations = append(violations, Violation{Bound: "end memory", Measured: float64(r.EndMemory), Limit: float64(th.MaxEndMemory)})
	}

	if len(violations) > 0 {
		return &ThresholdError{Violations: violations}
	}
	return nil
}
