// Package scenario runs every body-handling scenario against a fresh target
// and records a verdict for each.
package scenario

import (
	"context"
	"regexp"
)

// DefaultMaxGrowthMB is the leak tolerance of every scenario.
const DefaultMaxGrowthMB = 64

// RequestFunc performs one request through c. Method expressions such as
// (*Caller).Buffering satisfy it.
type RequestFunc func(c *Caller, ctx context.Context) error

// Scenario is one row of the table. Scenarios are never modified while running.
type Scenario struct {
	Name              string
	Endpoint          string
	Request           RequestFunc
	Skip              bool
	MaxMemoryGrowthMB int64
}

// Conditions decide which scenarios are skipped.
type Conditions struct {
	Flaky bool   // CI marks this environment as flaky
	GOOS  string // usually runtime.GOOS
}

// Table returns the scenarios in execution order.
func Table(cond Conditions) []Scenario {
	list := []Scenario{
		{Name: "#10265 should not leak memory when ignoring the body", Endpoint: "/", Request: (*Caller).Ignore},
		{Name: "should not leak memory when buffering the body", Endpoint: "/buffering", Request: (*Caller).Buffering},
		{Name: "should not leak memory when buffering a JSON body", Endpoint: "/json-buffering", Request: (*Caller).JSONBuffering},
		{Name: "should not leak memory when buffering the body and accessing req.body", Endpoint: "/buffering+body-getter", Request: (*Caller).BufferingBodyGetter},
		{Name: "should not leak memory when streaming the body", Endpoint: "/streaming", Request: (*Caller).Streaming, Skip: cond.Flaky && cond.GOOS == "linux"},
		{Name: "should not leak memory when streaming the body incompletely", Endpoint: "/incomplete-streaming", Request: (*Caller).IncompleteStreaming},
		{Name: "should not leak memory when streaming the body and echoing it back", Endpoint: "/streaming-echo", Request: (*Caller).StreamingEcho},
	}
	return WithTolerance(list, DefaultMaxGrowthMB)
}

// WithTolerance returns a copy of list with every tolerance set to mb.
func WithTolerance(list []Scenario, mb int64) []Scenario {
	out := append([]Scenario(nil), list...)
	for i := range out {
		out[i].MaxMemoryGrowthMB = mb
	}
	return out
}

// Filter keeps the scenarios whose name matches re. A nil re keeps all.
func Filter(list []Scenario, re *regexp.Regexp) []Scenario {
	if re == nil {
		return list
	}
	var out []Scenario
	for _, s := range list {
		if re.MatchString(s.Name) {
			out = append(out, s)
		}
	}
	return out
}
