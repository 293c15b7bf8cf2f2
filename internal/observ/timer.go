// Package observ tracks per-stage wall-clock timings of a compilation.
package observ

import (
	"fmt"
	"sort"
	"time"
)

// StageTiming records how long one pipeline stage ran.
type StageTiming struct {
	Stage string
	Start time.Time
	Dur   time.Duration
}

// Timer collects stage timings for one compilation request.
type Timer struct {
	stages []StageTiming
}

// NewTimer creates an empty Timer.
func NewTimer() *Timer { return &Timer{stages: make([]StageTiming, 0, 5)} }

// Begin starts timing a stage and returns its index.
func (t *Timer) Begin(stage string) int {
	t.stages = append(t.stages, StageTiming{Stage: stage, Start: time.Now()})
	return len(t.stages) - 1
}

// End finishes the stage at idx.
func (t *Timer) End(idx int) {
	if idx < 0 || idx >= len(t.stages) {
		return
	}
	s := &t.stages[idx]
	s.Dur = time.Since(s.Start)
}

// Set records an externally measured duration, overwriting any earlier
// timing for the same stage.
func (t *Timer) Set(stage string, dur time.Duration) {
	for i := range t.stages {
		if t.stages[i].Stage == stage {
			t.stages[i].Dur = dur
			return
		}
	}
	t.stages = append(t.stages, StageTiming{Stage: stage, Dur: dur})
}

// Duration returns the recorded duration for a stage, or zero.
func (t *Timer) Duration(stage string) time.Duration {
	for _, s := range t.stages {
		if s.Stage == stage {
			return s.Dur
		}
	}
	return 0
}

// StageReport is one line of the timing report.
type StageReport struct {
	Stage      string  `json:"stage"`
	DurationMS float64 `json:"duration_ms"`
}

// Report aggregates all stage timings in milliseconds.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Stages  []StageReport `json:"stages"`
}

// Report builds the aggregate in recording order.
func (t *Timer) Report() Report {
	if len(t.stages) == 0 {
		return Report{}
	}
	report := Report{Stages: make([]StageReport, len(t.stages))}
	var total time.Duration
	for i, s := range t.stages {
		total += s.Dur
		report.Stages[i] = StageReport{Stage: s.Stage, DurationMS: millis(s.Dur)}
	}
	report.TotalMS = millis(total)
	return report
}

// Summary renders a human-readable timing block.
func (t *Timer) Summary() string {
	report := t.Report()
	out := "timings:\n"
	for _, s := range report.Stages {
		out += fmt.Sprintf("  %-12s %7.2f ms\n", s.Stage, s.DurationMS)
	}
	out += fmt.Sprintf("  %-12s %7.2f ms\n", "total", report.TotalMS)
	return out
}

// Stages returns the recorded stage names sorted alphabetically,
// mainly for tests.
func (t *Timer) Stages() []string {
	names := make([]string, 0, len(t.stages))
	for _, s := range t.stages {
		names = append(names, s.Stage)
	}
	sort.Strings(names)
	return names
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
