package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"texsvg/internal/document"
	"texsvg/internal/errs"
	"texsvg/internal/geometry"
	"texsvg/internal/observ"
)

// scratchBase is the base name shared by every intermediate file inside
// the scratch directory.
const scratchBase = "texsvg"

// Runner executes the staged toolchain for one compilation request at a
// time. Stages run as sequential blocking process invocations; callers
// dispatch Run off their interaction thread and cancel via the context.
type Runner struct {
	Toolchain Toolchain
	Logger    *zap.Logger
	Progress  ProgressSink
	// ScratchRoot optionally parents the scratch directories; empty
	// means the system temp directory.
	ScratchRoot string
	// KeepScratch leaves the scratch directory behind for debugging.
	KeepScratch bool
}

// Request is an immutable snapshot of everything one compilation needs.
type Request struct {
	Doc document.SourceDocument
	// Node attributes progress events to a logical node in batch runs.
	Node           string
	Preview        bool
	PreviewWhiteBG bool
}

// Run drives the stages in order inside an exclusively owned scratch
// directory. The first failing stage aborts the rest; the scratch
// directory is removed on every exit path, including cancellation.
func (r *Runner) Run(ctx context.Context, req Request) (Artifact, error) {
	log := r.logger()
	if err := req.Doc.Validate(); err != nil {
		return Artifact{}, &errs.SetupError{Tool: "request", Err: err}
	}
	enginePath, err := r.Toolchain.EnginePath(req.Doc.Engine)
	if err != nil {
		return Artifact{}, err
	}

	scratch, err := os.MkdirTemp(r.ScratchRoot, "texsvg-*")
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if r.KeepScratch {
			log.Debug("keeping scratch directory", zap.String("dir", scratch))
			return
		}
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.Warn("failed to remove scratch directory", zap.String("dir", scratch), zap.Error(rmErr))
		}
	}()
	log.Debug("scratch directory created", zap.String("dir", scratch), zap.String("engine", string(req.Doc.Engine)))

	timer := observ.NewTimer()

	// wrap
	if err := r.runWrap(req, scratch, timer); err != nil {
		return Artifact{}, err
	}

	// compile
	if err := r.runCompileStage(ctx, req, enginePath, scratch, timer); err != nil {
		return Artifact{}, err
	}

	// vectorize
	svg, bbox, err := r.runVectorize(ctx, req, scratch, timer)
	if err != nil {
		return Artifact{}, err
	}

	// simplify
	if req.Doc.StrokeToPath {
		svg, bbox, err = r.runSimplify(ctx, req, scratch, timer)
		if err != nil {
			return Artifact{}, err
		}
	}

	artifact := Artifact{SVG: svg, BBox: bbox}

	// preview
	if req.Preview {
		png, err := r.runPreview(ctx, req, scratch, timer)
		if err != nil {
			return Artifact{}, err
		}
		artifact.PNG = png
	}

	artifact.Timings = timer.Report()
	log.Debug("toolchain finished",
		zap.Float64("bbox_w", bbox.W), zap.Float64("bbox_h", bbox.H),
		zap.Float64("total_ms", artifact.Timings.TotalMS))
	return artifact, nil
}

func (r *Runner) runWrap(req Request, scratch string, timer *observ.Timer) error {
	idx := timer.Begin(string(StageWrap))
	r.emit(req.Node, StageWrap, StatusWorking, nil, 0)

	wrapped, err := WrapSource(req.Doc.Engine, req.Doc.Preamble, req.Doc.Text)
	if err == nil {
		err = os.WriteFile(filepath.Join(scratch, scratchBase+sourceExt(req.Doc.Engine)), []byte(wrapped), 0o600)
	}
	timer.End(idx)
	if err != nil {
		fail := &StageFailure{Stage: StageWrap, Err: err}
		r.emit(req.Node, StageWrap, StatusError, fail, timer.Duration(string(StageWrap)))
		return fail
	}
	r.emit(req.Node, StageWrap, StatusDone, nil, timer.Duration(string(StageWrap)))
	return nil
}

func (r *Runner) runCompileStage(ctx context.Context, req Request, enginePath, scratch string, timer *observ.Timer) error {
	idx := timer.Begin(string(StageCompile))
	r.emit(req.Node, StageCompile, StatusWorking, nil, 0)

	var args []string
	if req.Doc.Engine.IsTeX() {
		args = []string{scratchBase + ".tex", "-interaction=nonstopmode", "-halt-on-error"}
	} else {
		args = []string{"compile", scratchBase + ".typ", scratchBase + ".pdf"}
	}
	out, runErr := runCommand(ctx, scratch, enginePath, args...)
	timer.End(idx)

	if runErr == nil {
		if _, statErr := os.Stat(filepath.Join(scratch, scratchBase+".pdf")); statErr != nil {
			runErr = fmt.Errorf("%s produced no %s.pdf", req.Doc.Engine, scratchBase)
		}
	}
	if runErr != nil {
		fail := &StageFailure{
			Stage:    StageCompile,
			ExitCode: out.ExitCode,
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			LogText:  readLogFile(scratch),
			Err:      runErr,
		}
		r.emit(req.Node, StageCompile, StatusError, fail, timer.Duration(string(StageCompile)))
		return fail
	}
	r.emit(req.Node, StageCompile, StatusDone, nil, timer.Duration(string(StageCompile)))
	return nil
}

func (r *Runner) runVectorize(ctx context.Context, req Request, scratch string, timer *observ.Timer) ([]byte, geometry.BBox, error) {
	idx := timer.Begin(string(StageVectorize))
	r.emit(req.Node, StageVectorize, StatusWorking, nil, 0)

	out, runErr := runCommand(ctx, scratch, r.Toolchain.ConverterPath,
		"--pdf-poppler",
		"--pages=1",
		"--export-type=svg",
		"--export-text-to-path",
		"--export-area-drawing",
		"--export-filename", scratchBase+".svg",
		scratchBase+".pdf",
	)
	timer.End(idx)

	svg, bbox, err := r.collectArtifact(scratch, StageVectorize, out, runErr)
	if err != nil {
		r.emit(req.Node, StageVectorize, StatusError, err, timer.Duration(string(StageVectorize)))
		return nil, bbox, err
	}
	r.emit(req.Node, StageVectorize, StatusDone, nil, timer.Duration(string(StageVectorize)))
	return svg, bbox, nil
}

func (r *Runner) runSimplify(ctx context.Context, req Request, scratch string, timer *observ.Timer) ([]byte, geometry.BBox, error) {
	idx := timer.Begin(string(StageSimplify))
	r.emit(req.Node, StageSimplify, StatusWorking, nil, 0)

	actions := fmt.Sprintf("EditSelectAll;StrokeToPath;export-filename:%s.svg;export-do;EditUndo;FileClose", scratchBase)
	out, runErr := runCommand(ctx, scratch, r.Toolchain.ConverterPath,
		"-g",
		"--batch-process",
		"--actions="+actions,
		scratchBase+".svg",
	)
	timer.End(idx)

	svg, bbox, err := r.collectArtifact(scratch, StageSimplify, out, runErr)
	if err != nil {
		r.emit(req.Node, StageSimplify, StatusError, err, timer.Duration(string(StageSimplify)))
		return nil, bbox, err
	}
	r.emit(req.Node, StageSimplify, StatusDone, nil, timer.Duration(string(StageSimplify)))
	return svg, bbox, nil
}

func (r *Runner) runPreview(ctx context.Context, req Request, scratch string, timer *observ.Timer) ([]byte, error) {
	idx := timer.Begin(string(StagePreview))
	r.emit(req.Node, StagePreview, StatusWorking, nil, 0)

	args := []string{
		"--pdf-poppler",
		"--pages=1",
		"--export-type=png",
		"--export-area-drawing",
		"--export-dpi=300",
		"--export-filename", scratchBase + ".png",
		scratchBase + ".pdf",
	}
	if req.PreviewWhiteBG {
		args = append(args, "--export-background=#FFFFFF", "--export-background-opacity=1.0")
	}
	out, runErr := runCommand(ctx, scratch, r.Toolchain.ConverterPath, args...)
	timer.End(idx)

	var png []byte
	if runErr == nil {
		png, runErr = os.ReadFile(filepath.Join(scratch, scratchBase+".png"))
	}
	if runErr != nil {
		fail := &StageFailure{Stage: StagePreview, ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr, Err: runErr}
		r.emit(req.Node, StagePreview, StatusError, fail, timer.Duration(string(StagePreview)))
		return nil, fail
	}
	r.emit(req.Node, StagePreview, StatusDone, nil, timer.Duration(string(StagePreview)))
	return png, nil
}

// collectArtifact validates a converter stage: the command must have
// succeeded, the artifact must exist, and its bounding box must be
// computable. A run that succeeded without a computable box is a defect,
// not a user error.
func (r *Runner) collectArtifact(scratch string, stage Stage, out commandOutput, runErr error) ([]byte, geometry.BBox, error) {
	if runErr != nil {
		return nil, geometry.BBox{}, &StageFailure{Stage: stage, ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr, Err: runErr}
	}
	svg, err := os.ReadFile(filepath.Join(scratch, scratchBase+".svg"))
	if err != nil {
		return nil, geometry.BBox{}, &StageFailure{Stage: stage, Stdout: out.Stdout, Stderr: out.Stderr, Err: fmt.Errorf("converter produced no %s.svg: %w", scratchBase, err)}
	}
	bbox, err := parseArtifactBBox(svg)
	if err != nil {
		return nil, geometry.BBox{}, &errs.InternalError{Msg: fmt.Sprintf("stage %s reported success without a computable bounding box", stage), Err: err}
	}
	return svg, bbox, nil
}

// readLogFile returns the engine's .log file content when one exists.
func readLogFile(scratch string) string {
	data, err := os.ReadFile(filepath.Join(scratch, scratchBase+".log"))
	if err != nil {
		return ""
	}
	return string(data)
}

func sourceExt(engine document.Engine) string {
	if engine.IsTeX() {
		return ".tex"
	}
	return ".typ"
}

func (r *Runner) emit(node string, stage Stage, status Status, err error, elapsed time.Duration) {
	if r.Progress == nil {
		return
	}
	r.Progress.OnEvent(Event{Node: node, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
