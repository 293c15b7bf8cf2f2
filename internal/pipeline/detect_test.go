package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"texsvg/internal/document"
	"texsvg/internal/errs"
	"texsvg/internal/settings"
)

func TestDetectFromPath(t *testing.T) {
	tools := t.TempDir()
	enginePath := writeScript(t, tools, "pdflatex", "exit 0")
	converterPath := writeScript(t, tools, "inkscape", "exit 0")
	t.Setenv("PATH", tools)

	tc, cache, err := Detect([]document.Engine{document.EnginePDFLaTeX}, settings.DefaultSettings(), settings.CachePayload{})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if tc.Engines[document.EnginePDFLaTeX] != enginePath {
		t.Fatalf("engine path = %q, want %q", tc.Engines[document.EnginePDFLaTeX], enginePath)
	}
	if tc.ConverterPath != converterPath {
		t.Fatalf("converter path = %q, want %q", tc.ConverterPath, converterPath)
	}
	if cache.Executables["pdflatex"] != enginePath || cache.Executables["inkscape"] != converterPath {
		t.Fatalf("resolved paths not cached: %+v", cache.Executables)
	}
}

func TestDetectMultipleEngines(t *testing.T) {
	tools := t.TempDir()
	latexPath := writeScript(t, tools, "pdflatex", "exit 0")
	typstPath := writeScript(t, tools, "typst", "exit 0")
	writeScript(t, tools, "inkscape", "exit 0")
	t.Setenv("PATH", tools)

	engines := []document.Engine{document.EnginePDFLaTeX, document.EngineTypst}
	tc, _, err := Detect(engines, settings.DefaultSettings(), settings.CachePayload{})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if tc.Engines[document.EnginePDFLaTeX] != latexPath || tc.Engines[document.EngineTypst] != typstPath {
		t.Fatalf("resolved engines = %+v", tc.Engines)
	}

	if _, err := tc.EnginePath(document.EngineXeLaTeX); err == nil {
		t.Fatal("undetected engine resolved")
	}
}

func TestDetectMissingEngine(t *testing.T) {
	tools := t.TempDir()
	writeScript(t, tools, "inkscape", "exit 0")
	t.Setenv("PATH", tools)

	_, _, err := Detect([]document.Engine{document.EngineTypst}, settings.DefaultSettings(), settings.CachePayload{})
	var setup *errs.SetupError
	if !errors.As(err, &setup) {
		t.Fatalf("want SetupError, got %T: %v", err, err)
	}
	if setup.Tool != "typst" {
		t.Fatalf("tool = %q, want typst", setup.Tool)
	}
	if setup.Hint == "" {
		t.Fatal("setup error carries no install hint")
	}
}

func TestDetectSettingsOverrideWins(t *testing.T) {
	tools := t.TempDir()
	pathEngine := writeScript(t, tools, "pdflatex", "exit 0")
	writeScript(t, tools, "inkscape", "exit 0")
	t.Setenv("PATH", tools)

	override := t.TempDir()
	overrideEngine := writeScript(t, override, "pdflatex-dev", "exit 0")

	cfg := settings.DefaultSettings()
	cfg.Executables = map[string]string{"pdflatex": overrideEngine}

	tc, _, err := Detect([]document.Engine{document.EnginePDFLaTeX}, cfg, settings.CachePayload{})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if tc.Engines[document.EnginePDFLaTeX] != overrideEngine {
		t.Fatalf("engine path = %q, want override %q (PATH had %q)", tc.Engines[document.EnginePDFLaTeX], overrideEngine, pathEngine)
	}
}

func TestDetectBrokenOverrideIsSetupError(t *testing.T) {
	tools := t.TempDir()
	writeScript(t, tools, "pdflatex", "exit 0")
	writeScript(t, tools, "inkscape", "exit 0")
	t.Setenv("PATH", tools)

	cfg := settings.DefaultSettings()
	cfg.Executables = map[string]string{"pdflatex": "/nonexistent/pdflatex"}

	_, _, err := Detect([]document.Engine{document.EnginePDFLaTeX}, cfg, settings.CachePayload{})
	var setup *errs.SetupError
	if !errors.As(err, &setup) {
		t.Fatalf("want SetupError, got %T: %v", err, err)
	}
}

func TestDetectStaleCacheFallsBackToPath(t *testing.T) {
	tools := t.TempDir()
	enginePath := writeScript(t, tools, "pdflatex", "exit 0")
	writeScript(t, tools, "inkscape", "exit 0")
	t.Setenv("PATH", tools)

	cache := settings.CachePayload{Executables: map[string]string{
		"pdflatex": filepath.Join(t.TempDir(), "gone", "pdflatex"),
	}}

	tc, updated, err := Detect([]document.Engine{document.EnginePDFLaTeX}, settings.DefaultSettings(), cache)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if tc.Engines[document.EnginePDFLaTeX] != enginePath {
		t.Fatalf("engine path = %q, want %q", tc.Engines[document.EnginePDFLaTeX], enginePath)
	}
	if updated.Executables["pdflatex"] != enginePath {
		t.Fatalf("cache not refreshed: %+v", updated.Executables)
	}
}

func TestDetectAllReportsPerTool(t *testing.T) {
	tools := t.TempDir()
	writeScript(t, tools, "pdflatex", "exit 0")
	writeScript(t, tools, "typst", "exit 0")
	writeScript(t, tools, "inkscape", "exit 0")
	t.Setenv("PATH", tools)

	found, missing, _ := DetectAll(settings.DefaultSettings(), settings.CachePayload{})
	for _, tool := range []string{"pdflatex", "typst", "inkscape"} {
		if found[tool] == "" {
			t.Fatalf("%s not found: %+v", tool, found)
		}
	}
	for _, tool := range []string{"xelatex", "lualatex"} {
		if missing[tool] == nil {
			t.Fatalf("%s should be reported missing", tool)
		}
	}
}
