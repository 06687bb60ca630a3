// Package model contains core data types for the project.
package model

import "time"

// MiB is the unit leak figures are expressed in.
const MiB = 1024 * 1024

// LeakReport is the outcome of one measured scenario run.
type LeakReport struct {
	Leak           int64   `json:"leak"`            // Sustained growth in whole MiB, never negative.
	StartMemory    int64   `json:"start_memory"`    // Sample taken before the first batch.
	PeakMemory     int64   `json:"peak_memory"`     // Running maximum over every sample, endpoints included.
	EndMemory      int64   `json:"end_memory"`      // Sample taken after the last batch.
	MemoryExamples []int64 `json:"memory_examples"` // Mid-run samples in collection order.
}

// Status is the verdict of one scenario.
type Status string

const (
	Passed  Status = "passed"  // All bounds held.
	Failed  Status = "failed"  // Setup, request or threshold failure.
	Pending Status = "pending" // Skipped, never executed.
)

// ScenarioResult is what the harness records for every scenario it visits.
type ScenarioResult struct {
	RunID      string      `json:"run_id"`
	Scenario   string      `json:"scenario"`
	Status     Status      `json:"status"`
	Report     *LeakReport `json:"report,omitempty"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}
