package pipeline

import (
	"fmt"
	"os"
	"os/exec"

	"texsvg/internal/document"
	"texsvg/internal/errs"
	"texsvg/internal/settings"
)

// converterTool is the PDF-to-SVG converter every engine shares.
const converterTool = "inkscape"

// Toolchain holds the resolved executable paths for a run. A document
// may mix nodes compiled with different engines, so every engine the
// run can need is resolved up front.
type Toolchain struct {
	Engines       map[document.Engine]string
	ConverterPath string
}

// EnginePath returns the resolved executable for engine. An engine the
// toolchain was not detected for is a SetupError.
func (tc Toolchain) EnginePath(engine document.Engine) (string, error) {
	if path, ok := tc.Engines[engine]; ok && path != "" {
		return path, nil
	}
	return "", &errs.SetupError{
		Tool: string(engine),
		Hint: fmt.Sprintf("%s was not resolved for this run", engine),
	}
}

// Detect resolves the given engines and the converter executable.
// Explicit settings overrides win, then the run cache, then PATH
// lookup. The updated cache payload is returned so callers can persist
// resolved paths. A missing tool is a SetupError: it is surfaced
// before any compilation is attempted.
func Detect(engines []document.Engine, cfg settings.Settings, cache settings.CachePayload) (Toolchain, settings.CachePayload, error) {
	tc := Toolchain{Engines: make(map[document.Engine]string, len(engines))}

	for _, engine := range engines {
		enginePath, updated, err := resolveTool(string(engine), cfg, cache)
		cache = updated
		if err != nil {
			return Toolchain{}, cache, err
		}
		tc.Engines[engine] = enginePath
	}

	converterPath, cache, err := resolveTool(converterTool, cfg, cache)
	if err != nil {
		return Toolchain{}, cache, err
	}
	tc.ConverterPath = converterPath
	return tc, cache, nil
}

// DetectAll probes every supported engine plus the converter, for the
// `engines` listing. Missing tools are reported per entry, not as a
// combined failure.
func DetectAll(cfg settings.Settings, cache settings.CachePayload) (map[string]string, map[string]error, settings.CachePayload) {
	found := make(map[string]string)
	missing := make(map[string]error)
	tools := make([]string, 0, len(document.Engines())+1)
	for _, e := range document.Engines() {
		tools = append(tools, string(e))
	}
	tools = append(tools, converterTool)

	for _, tool := range tools {
		path, updated, err := resolveTool(tool, cfg, cache)
		cache = updated
		if err != nil {
			missing[tool] = err
			continue
		}
		found[tool] = path
	}
	return found, missing, cache
}

func resolveTool(tool string, cfg settings.Settings, cache settings.CachePayload) (string, settings.CachePayload, error) {
	if override, ok := cfg.Executables[tool]; ok && override != "" {
		if !isExecutableFile(override) {
			return "", cache, &errs.SetupError{
				Tool: tool,
				Hint: fmt.Sprintf("configured path %q does not exist", override),
			}
		}
		return override, cache, nil
	}

	if cached, ok := cache.Executables[tool]; ok && isExecutableFile(cached) {
		return cached, cache, nil
	}

	path, err := exec.LookPath(tool)
	if err != nil {
		return "", cache, &errs.SetupError{
			Tool: tool,
			Hint: fmt.Sprintf("install %s and make sure it is on PATH, or set [executables] %s in the config file", tool, tool),
			Err:  err,
		}
	}
	if cache.Executables == nil {
		cache.Executables = make(map[string]string)
	}
	cache.Executables[tool] = path
	return path, cache, nil
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
