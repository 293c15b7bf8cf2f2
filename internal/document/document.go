// Package document models the editable source snippet and its compile
// parameters.
package document

import (
	"fmt"
	"strings"
)

// Defaults carries the ambient settings used to seed a fresh document.
// It is an explicit value rather than process-wide state so the engine
// stays testable in isolation.
type Defaults struct {
	Engine       Engine
	Preamble     string
	Scale        float64
	StrokeToPath bool
}

// SourceDocument holds the source text together with everything needed
// to compile it. It is created when an editing session opens (empty, or
// hydrated from a node's persisted metadata) and mutated only by that
// session.
type SourceDocument struct {
	Text         string
	Engine       Engine
	Preamble     string
	Scale        float64
	Anchor       Anchor
	StrokeToPath bool
}

// New returns an empty document seeded from ambient defaults.
func New(d Defaults) SourceDocument {
	engine := d.Engine
	if engine == "" {
		engine = EnginePDFLaTeX
	}
	scale := d.Scale
	if scale <= 0 {
		scale = 1.0
	}
	return SourceDocument{
		Engine:       engine,
		Preamble:     d.Preamble,
		Scale:        scale,
		Anchor:       DefaultAnchor,
		StrokeToPath: d.StrokeToPath,
	}
}

// Validate checks the invariants required before a compilation request
// can be built.
func (d SourceDocument) Validate() error {
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("empty source text")
	}
	if _, err := ParseEngine(string(d.Engine)); err != nil {
		return err
	}
	if d.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %g", d.Scale)
	}
	return nil
}
