package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"texsvg/internal/diag"
)

var (
	errorHeadColor = color.New(color.FgRed, color.Bold)
	contextColor   = color.New(color.Faint)
)

// printSummary renders an extracted diagnostic to the user. When the
// compiler output was not recognized the raw output is shown instead,
// so nothing is ever silently dropped.
func printSummary(out io.Writer, summary *diag.Summary) {
	if summary == nil {
		return
	}
	if !summary.Recognized {
		if summary.RawStderr != "" {
			fmt.Fprint(out, summary.RawStderr)
		} else if summary.RawStdout != "" {
			fmt.Fprint(out, summary.RawStdout)
		}
		return
	}

	errorHeadColor.Fprintf(out, "error: %s\n", summary.Headline)
	if summary.SourceLine > 0 {
		fmt.Fprintf(out, "  at source line %d\n", summary.SourceLine)
	}
	for _, line := range summary.ContextLines {
		contextColor.Fprintf(out, "  %s\n", line)
	}
}
