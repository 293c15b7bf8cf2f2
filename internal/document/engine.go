package document

import "fmt"

// Engine selects the compilation backend that turns source text into a PDF.
type Engine string

const (
	// EnginePDFLaTeX is the pdflatex backend.
	EnginePDFLaTeX Engine = "pdflatex"
	// EngineXeLaTeX is the xelatex backend.
	EngineXeLaTeX Engine = "xelatex"
	// EngineLuaLaTeX is the lualatex backend.
	EngineLuaLaTeX Engine = "lualatex"
	// EngineTypst is the typst backend.
	EngineTypst Engine = "typst"
)

// Engines lists every supported backend in presentation order.
func Engines() []Engine {
	return []Engine{EnginePDFLaTeX, EngineXeLaTeX, EngineLuaLaTeX, EngineTypst}
}

// ParseEngine validates a backend name against the supported set.
func ParseEngine(name string) (Engine, error) {
	switch Engine(name) {
	case EnginePDFLaTeX, EngineXeLaTeX, EngineLuaLaTeX, EngineTypst:
		return Engine(name), nil
	}
	return "", fmt.Errorf("unsupported engine: %q (supported: pdflatex, xelatex, lualatex, typst)", name)
}

// IsTeX reports whether the engine belongs to the TeX family.
// The typst backend uses a different template and log format.
func (e Engine) IsTeX() bool { return e != EngineTypst }

func (e Engine) String() string { return string(e) }
