package diag

import (
	"regexp"
	"strings"

	"texsvg/internal/document"
)

// typst reports compile failures on stderr as "error: <message>" followed
// by an arrow block pointing into the source:
//
//	error: unknown variable: x
//	  ┌─ tmp.typ:3:7
var (
	typstError   = regexp.MustCompile(`^error: (.*)`)
	typstLineRef = regexp.MustCompile(`\.typ:(\d+):\d+`)
)

// ExtractTypst scans typst stderr for the first fatal error marker.
func ExtractTypst(stage, stdout, stderr string) Summary {
	s := Summary{Stage: stage, RawStdout: stdout, RawStderr: stderr}

	lines := strings.Split(stderr, "\n")
	for i, line := range lines {
		m := typstError.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		s.Headline = m[1]
		s.Recognized = true
		s.ContextLines = append(s.ContextLines, line)
		for j := i + 1; j < len(lines) && j <= i+contextLines; j++ {
			s.ContextLines = append(s.ContextLines, lines[j])
			if s.SourceLine == 0 {
				if ref := typstLineRef.FindStringSubmatch(lines[j]); ref != nil {
					s.SourceLine = parseLineRef(ref[1])
				}
			}
		}
		return s
	}
	return s
}

// Extract dispatches on the engine family. Stages other than the compile
// stage (the vectorizer and simplifier) have no structured log format, so
// their output is returned unrecognized.
func Extract(engine document.Engine, stage, logText, stdout, stderr string) Summary {
	switch {
	case stage != "compile":
		return Summary{Stage: stage, RawStdout: stdout, RawStderr: stderr}
	case engine.IsTeX():
		return ExtractTeX(stage, logText, stdout, stderr)
	default:
		return ExtractTypst(stage, stdout, stderr)
	}
}
