package pipeline

import (
	"fmt"
	"os"
	"strings"

	"texsvg/internal/document"
)

// defaultDocumentClass is prepended to TeX preambles that bring no
// document class of their own.
const defaultDocumentClass = `\documentclass{article}`

// texDocumentTemplate wraps the preamble and source for the TeX family.
const texDocumentTemplate = `%s
\pagestyle{empty}
\begin{document}
%s
\end{document}
`

// typstPagePrelude makes the page hug the rendered content so the
// exported drawing area matches the snippet.
const typstPagePrelude = `#set page(width: auto, height: auto, margin: 0pt, fill: none)`

// WrapSource builds the full engine input from the preamble reference
// and the snippet. A missing preamble file is not an error; the built-in
// wrapper alone is used.
func WrapSource(engine document.Engine, preamblePath, text string) (string, error) {
	preamble := ""
	if preamblePath != "" {
		data, err := os.ReadFile(preamblePath)
		switch {
		case err == nil:
			preamble = string(data)
		case os.IsNotExist(err):
			// fall through to the built-in wrapper
		default:
			return "", fmt.Errorf("failed to read preamble %q: %w", preamblePath, err)
		}
	}

	if engine.IsTeX() {
		if !containsDocumentClass(preamble) {
			preamble = defaultDocumentClass + "\n" + preamble
		}
		return fmt.Sprintf(texDocumentTemplate, preamble, text), nil
	}

	// typst has no document-class concept; the prelude is skipped when
	// the preamble already configures the page.
	if !strings.Contains(preamble, "#set page") {
		preamble = typstPagePrelude + "\n" + preamble
	}
	return preamble + "\n" + text + "\n", nil
}

// containsDocumentClass reports whether the preamble carries an
// uncommented \documentclass or \documentstyle command, in which case
// the built-in default wrapper must not be layered on top.
func containsDocumentClass(preamble string) bool {
	commands := []string{`\documentclass{`, `\documentclass[`, `\documentstyle{`, `\documentstyle[`}
	for _, line := range strings.Split(preamble, "\n") {
		for _, cmd := range commands {
			idx := strings.Index(line, cmd)
			if idx < 0 {
				continue
			}
			if !strings.Contains(line[:idx], "%") {
				return true
			}
		}
	}
	return false
}
