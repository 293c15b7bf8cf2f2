// Package pipeline drives the external toolchain that turns source text
// into a vector artifact.
package pipeline

import (
	"fmt"
	"time"

	"texsvg/internal/geometry"
	"texsvg/internal/observ"
)

// Stage describes one phase of the toolchain.
type Stage string

const (
	// StageWrap substitutes the preamble and source into the document template.
	StageWrap Stage = "wrap"
	// StageCompile invokes the engine to produce the intermediate PDF.
	StageCompile Stage = "compile"
	// StageVectorize converts the PDF into an SVG with a drawing-area bounding box.
	StageVectorize Stage = "vectorize"
	// StageSimplify converts stroked elements to colorable path fills.
	StageSimplify Stage = "simplify"
	// StagePreview exports a raster preview of the artifact.
	StagePreview Stage = "preview"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the stage is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the stage is running.
	StatusWorking Status = "working"
	// StatusDone indicates the stage finished.
	StatusDone Status = "done"
	// StatusError indicates the stage failed.
	StatusError Status = "error"
)

// Event reports progress for one node (Node is empty for single compiles).
type Event struct {
	Node    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Artifact is the product of a successful run. The scratch directory is
// gone by the time an Artifact is returned, so the file contents are
// carried in memory.
type Artifact struct {
	SVG     []byte
	PNG     []byte
	BBox    geometry.BBox
	Timings observ.Report
}

// StageFailure carries the raw output of the first failing stage. The
// diagnostics extractor turns it into a user-presentable summary.
type StageFailure struct {
	Stage    Stage
	ExitCode int
	Stdout   string
	Stderr   string
	// LogText holds the engine's .log file when one was produced.
	LogText string
	Err     error
}

func (f *StageFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("stage %s failed: %v", f.Stage, f.Err)
	}
	return fmt.Sprintf("stage %s failed (exit code %d)", f.Stage, f.ExitCode)
}

func (f *StageFailure) Unwrap() error { return f.Err }
