package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"texsvg/internal/document"
	"texsvg/internal/errs"
	"texsvg/internal/geometry"
)

// writeScript drops a fake tool into dir. The test suite never requires
// the real engines; every stage is exercised against shell stand-ins.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const fakeSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 30 8"><path d="M 0 0 H 30 V 8 H 0 Z"/></svg>`

// fakeEngine pretends to be pdflatex: it emits a banner and produces
// the PDF next to the source.
func fakeEngine(t *testing.T, dir string) string {
	return writeScript(t, dir, "pdflatex", `echo "This is pdfTeX"
: > texsvg.pdf`)
}

// fakeConverter pretends to be inkscape, dispatching on the invocation
// shape the stages use.
func fakeConverter(t *testing.T, dir string) string {
	return writeScript(t, dir, "inkscape", `case "$*" in
*--batch-process*)
  printf '%s' '<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 30 8"><path d="M 0 0 H 30 V 8 H 0 Z" data-pass="simplify"/></svg>' > texsvg.svg ;;
*--export-type=svg*)
  printf '%s' '`+fakeSVG+`' > texsvg.svg ;;
*--export-type=png*)
  printf 'PNGDATA' > texsvg.png ;;
esac`)
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) OnEvent(e Event) { s.events = append(s.events, e) }

func testDoc() document.SourceDocument {
	doc := document.New(document.Defaults{})
	doc.Text = `$x^2$`
	return doc
}

func newTestRunner(t *testing.T) (*Runner, *recordingSink, string) {
	t.Helper()
	tools := t.TempDir()
	scratchRoot := t.TempDir()
	sink := &recordingSink{}
	r := &Runner{
		Toolchain: Toolchain{
			Engines:       map[document.Engine]string{document.EnginePDFLaTeX: fakeEngine(t, tools)},
			ConverterPath: fakeConverter(t, tools),
		},
		Progress:    sink,
		ScratchRoot: scratchRoot,
	}
	return r, sink, scratchRoot
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch root not cleaned, %d entries remain", len(entries))
	}
}

func TestRunnerSuccess(t *testing.T) {
	r, sink, scratchRoot := newTestRunner(t)

	art, err := r.Run(context.Background(), Request{Doc: testDoc()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(string(art.SVG), "viewBox") {
		t.Fatalf("artifact SVG missing: %q", art.SVG)
	}
	want := geometry.BBox{X: 0, Y: 0, W: 30, H: 8}
	if art.BBox != want {
		t.Fatalf("bbox = %+v, want %+v", art.BBox, want)
	}
	if art.PNG != nil {
		t.Fatal("preview produced without being requested")
	}
	if art.Timings.TotalMS < 0 || len(art.Timings.Stages) < 3 {
		t.Fatalf("timings incomplete: %+v", art.Timings)
	}
	requireEmptyDir(t, scratchRoot)

	var stages []Stage
	for _, e := range sink.events {
		if e.Status == StatusDone {
			stages = append(stages, e.Stage)
		}
	}
	wantStages := []Stage{StageWrap, StageCompile, StageVectorize}
	if len(stages) != len(wantStages) {
		t.Fatalf("done stages = %v, want %v", stages, wantStages)
	}
	for i, s := range wantStages {
		if stages[i] != s {
			t.Fatalf("done stages = %v, want %v", stages, wantStages)
		}
	}
}

func TestRunnerEventOrdering(t *testing.T) {
	r, sink, _ := newTestRunner(t)

	if _, err := r.Run(context.Background(), Request{Doc: testDoc()}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	working := make(map[Stage]bool)
	for _, e := range sink.events {
		switch e.Status {
		case StatusWorking:
			working[e.Stage] = true
		case StatusDone, StatusError:
			if !working[e.Stage] {
				t.Fatalf("stage %s finished without a working event", e.Stage)
			}
		}
	}
}

func TestRunnerStrokeToPath(t *testing.T) {
	r, sink, _ := newTestRunner(t)
	doc := testDoc()
	doc.StrokeToPath = true

	art, err := r.Run(context.Background(), Request{Doc: doc})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(string(art.SVG), "simplify") {
		t.Fatalf("simplify stage output not picked up: %q", art.SVG)
	}
	seen := false
	for _, e := range sink.events {
		if e.Stage == StageSimplify && e.Status == StatusDone {
			seen = true
		}
	}
	if !seen {
		t.Fatal("no simplify completion event")
	}
}

func TestRunnerPreview(t *testing.T) {
	r, _, _ := newTestRunner(t)

	art, err := r.Run(context.Background(), Request{Doc: testDoc(), Preview: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(art.PNG) != "PNGDATA" {
		t.Fatalf("preview bytes = %q", art.PNG)
	}
}

func TestRunnerCompileFailure(t *testing.T) {
	r, _, scratchRoot := newTestRunner(t)
	tools := t.TempDir()
	r.Toolchain.Engines[document.EnginePDFLaTeX] = writeScript(t, tools, "pdflatex", `echo "This is pdfTeX"
cat > texsvg.log <<'EOF'
! Undefined control sequence.
l.5 \frobnicate
EOF
exit 1`)

	_, err := r.Run(context.Background(), Request{Doc: testDoc()})
	var fail *StageFailure
	if !errors.As(err, &fail) {
		t.Fatalf("want StageFailure, got %T: %v", err, err)
	}
	if fail.Stage != StageCompile {
		t.Fatalf("stage = %s, want %s", fail.Stage, StageCompile)
	}
	if fail.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", fail.ExitCode)
	}
	if !strings.Contains(fail.LogText, "! Undefined control sequence.") {
		t.Fatalf("log text not captured: %q", fail.LogText)
	}
	if !strings.Contains(fail.Stdout, "This is pdfTeX") {
		t.Fatalf("stdout not captured: %q", fail.Stdout)
	}
	requireEmptyDir(t, scratchRoot)
}

func TestRunnerCompileProducesNoPDF(t *testing.T) {
	r, _, _ := newTestRunner(t)
	tools := t.TempDir()
	r.Toolchain.Engines[document.EnginePDFLaTeX] = writeScript(t, tools, "pdflatex", `exit 0`)

	_, err := r.Run(context.Background(), Request{Doc: testDoc()})
	var fail *StageFailure
	if !errors.As(err, &fail) {
		t.Fatalf("want StageFailure, got %T: %v", err, err)
	}
	if fail.Stage != StageCompile {
		t.Fatalf("stage = %s, want %s", fail.Stage, StageCompile)
	}
}

func TestRunnerVectorizeFailure(t *testing.T) {
	r, _, scratchRoot := newTestRunner(t)
	tools := t.TempDir()
	r.Toolchain.ConverterPath = writeScript(t, tools, "inkscape", `echo "poppler choked" >&2
exit 4`)

	_, err := r.Run(context.Background(), Request{Doc: testDoc()})
	var fail *StageFailure
	if !errors.As(err, &fail) {
		t.Fatalf("want StageFailure, got %T: %v", err, err)
	}
	if fail.Stage != StageVectorize {
		t.Fatalf("stage = %s, want %s", fail.Stage, StageVectorize)
	}
	if fail.ExitCode != 4 {
		t.Fatalf("exit code = %d, want 4", fail.ExitCode)
	}
	if !strings.Contains(fail.Stderr, "poppler choked") {
		t.Fatalf("stderr not captured: %q", fail.Stderr)
	}
	requireEmptyDir(t, scratchRoot)
}

func TestRunnerSuccessWithoutBBoxIsInternal(t *testing.T) {
	r, _, _ := newTestRunner(t)
	tools := t.TempDir()
	r.Toolchain.ConverterPath = writeScript(t, tools, "inkscape",
		`printf '%s' '<svg xmlns="http://www.w3.org/2000/svg"></svg>' > texsvg.svg`)

	_, err := r.Run(context.Background(), Request{Doc: testDoc()})
	var internal *errs.InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("want InternalError, got %T: %v", err, err)
	}
}

func TestRunnerCancellation(t *testing.T) {
	r, _, scratchRoot := newTestRunner(t)
	tools := t.TempDir()
	r.Toolchain.Engines[document.EnginePDFLaTeX] = writeScript(t, tools, "pdflatex", `sleep 5`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, Request{Doc: testDoc()})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	requireEmptyDir(t, scratchRoot)
}

func TestRunnerKeepScratch(t *testing.T) {
	r, _, scratchRoot := newTestRunner(t)
	r.KeepScratch = true

	if _, err := r.Run(context.Background(), Request{Doc: testDoc()}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	entries, err := os.ReadDir(scratchRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("want one kept scratch directory, got %d", len(entries))
	}
	if _, err := os.Stat(filepath.Join(scratchRoot, entries[0].Name(), "texsvg.tex")); err != nil {
		t.Fatalf("scratch source missing: %v", err)
	}
}

func TestRunnerUnresolvedEngineIsSetupError(t *testing.T) {
	r, _, _ := newTestRunner(t)
	doc := testDoc()
	doc.Engine = document.EngineTypst

	_, err := r.Run(context.Background(), Request{Doc: doc})
	var setup *errs.SetupError
	if !errors.As(err, &setup) {
		t.Fatalf("want SetupError, got %T: %v", err, err)
	}
	if setup.Tool != "typst" {
		t.Fatalf("tool = %q, want typst", setup.Tool)
	}
}

func TestRunnerRejectsInvalidDocument(t *testing.T) {
	r, _, _ := newTestRunner(t)
	doc := testDoc()
	doc.Text = "   "

	_, err := r.Run(context.Background(), Request{Doc: doc})
	var setup *errs.SetupError
	if !errors.As(err, &setup) {
		t.Fatalf("want SetupError, got %T: %v", err, err)
	}
}
