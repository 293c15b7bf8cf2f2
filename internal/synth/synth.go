// Package synth drives a full edit round: compile the source, import
// the artifact, reconcile geometry and style against the node being
// replaced, and hand the result to the host document exactly once.
package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"texsvg/internal/diag"
	"texsvg/internal/document"
	"texsvg/internal/errs"
	"texsvg/internal/geometry"
	"texsvg/internal/pipeline"
	"texsvg/internal/svgnode"
)

// State is the synthesizer's lifecycle position for the current
// request.
type State int

const (
	StateIdle State = iota
	StateCompiling
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrSuperseded marks a completion that lost to a newer request for the
// same logical node. The caller discards the result; the newer
// request's outcome is authoritative.
var ErrSuperseded = errors.New("request superseded by a newer one for the same node")

// Request describes one synthesis round.
type Request struct {
	Doc document.SourceDocument
	// Old is the node being re-edited; nil compiles a fresh node.
	Old *svgnode.Node
	// At positions fresh nodes; ignored when Old is set.
	At      geometry.Point
	Preview bool
}

// Result carries the outcome of a round. Node and Artifact are set on
// success; Summary is set whenever diagnostics were extracted from a
// failed stage, alongside the returned error.
type Result struct {
	Node     *svgnode.Node
	Artifact pipeline.Artifact
	Summary  *diag.Summary
}

// Synthesizer owns the compile-and-reconcile state machine. Host
// mutations are serialized internally; pipeline runs may overlap.
type Synthesizer struct {
	runner *pipeline.Runner
	log    *zap.Logger

	mu    sync.Mutex
	state State
	gen   map[string]uint64
}

// New builds a synthesizer around a configured pipeline runner.
func New(runner *pipeline.Runner, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{runner: runner, log: log, gen: make(map[string]uint64)}
}

// State reports the lifecycle position of the most recent request.
func (s *Synthesizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Compile runs one synthesis round against host. It blocks until the
// round finishes or ctx is cancelled. On failure the host document is
// untouched and the returned Result carries the extracted diagnostics.
// Overlapping calls for the same logical node resolve last-writer-wins:
// the earlier completion returns ErrSuperseded without touching host.
func (s *Synthesizer) Compile(ctx context.Context, host *svgnode.HostDocument, req Request) (Result, error) {
	key := s.requestKey(req)
	gen := s.begin(key)

	artifact, err := s.runner.Run(ctx, pipeline.Request{
		Doc:     req.Doc,
		Node:    key,
		Preview: req.Preview,
	})
	if err != nil {
		res := Result{}
		mapped := s.classify(req.Doc.Engine, err, &res)
		s.finish(StateFailed)
		return res, mapped
	}

	s.mu.Lock()
	if s.gen[key] != gen {
		s.mu.Unlock()
		return Result{}, ErrSuperseded
	}
	node, err := s.apply(host, req, artifact)
	s.mu.Unlock()
	if err != nil {
		s.finish(StateFailed)
		return Result{}, err
	}

	s.finish(StateReady)
	return Result{Node: node, Artifact: artifact}, nil
}

// apply imports the artifact and attaches it to the host. Called with
// the mutex held; nothing here may fail after the host is modified.
func (s *Synthesizer) apply(host *svgnode.HostDocument, req Request, artifact pipeline.Artifact) (*svgnode.Node, error) {
	meta := svgnode.MetadataFromDocument(req.Doc)
	meta.BBox = artifact.BBox

	fresh, err := svgnode.ImportArtifact(artifact.SVG, meta)
	if err != nil {
		return nil, &errs.InternalError{Msg: "converter artifact could not be imported", Err: err}
	}
	fresh.SetNoneStrokesToZeroWidth()

	if req.Old == nil {
		fresh.SetTransform(geometry.Place(artifact.BBox, req.Doc.Scale, req.At))
		host.Insert(fresh)
		return fresh, nil
	}

	oldMeta, err := req.Old.Metadata()
	if err != nil {
		return nil, fmt.Errorf("old node metadata unreadable: %w", err)
	}
	oldTransform, err := req.Old.Transform()
	if err != nil {
		return nil, fmt.Errorf("old node transform unreadable: %w", err)
	}
	oldRendered := oldTransform.ApplyBBox(oldMeta.BBox)

	// Explicit coloring in the fresh markup wins; otherwise the node
	// keeps the coloring it was given in the host editor.
	if !fresh.IsColorized() {
		fresh.ImportGroupColorStyle(req.Old)
	}
	fresh.SetTransform(geometry.Reconcile(artifact.BBox, req.Doc.Scale, oldRendered, req.Doc.Anchor))

	if err := host.Replace(req.Old, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// classify converts a pipeline failure into the error taxonomy and, for
// recognized compiler output, extracts a diagnostic summary.
func (s *Synthesizer) classify(engine document.Engine, err error, res *Result) error {
	var fail *pipeline.StageFailure
	if !errors.As(err, &fail) {
		return err
	}

	switch fail.Stage {
	case pipeline.StageWrap:
		return &errs.SetupError{Tool: "preamble", Err: fail}
	case pipeline.StageCompile:
		summary := diag.Extract(engine, string(fail.Stage), fail.LogText, fail.Stdout, fail.Stderr)
		res.Summary = &summary
		s.log.Debug("compile stage failed",
			zap.String("headline", summary.Headline),
			zap.Uint32("line", summary.SourceLine))
		return &errs.CompilationError{Stage: string(fail.Stage), Headline: summary.Headline, Err: fail}
	default:
		summary := diag.Extract(engine, string(fail.Stage), fail.LogText, fail.Stdout, fail.Stderr)
		res.Summary = &summary
		return &errs.ConversionError{Stage: string(fail.Stage), Headline: summary.Headline, Err: fail}
	}
}

// requestKey identifies the logical node a request targets, for
// supersession tracking and progress attribution. Fresh compiles each
// target a distinct new node, so they never supersede one another.
func (s *Synthesizer) requestKey(req Request) string {
	if req.Old != nil {
		return req.Old.ID()
	}
	return "new-" + uuid.NewString()
}

func (s *Synthesizer) begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCompiling
	s.gen[key]++
	return s.gen[key]
}

func (s *Synthesizer) finish(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
