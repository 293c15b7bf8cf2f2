package diag

import (
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// The TeX family writes its fatal errors to the .log file (and stdout)
// either as a bare "! <message>" line or as a typed
// "! LaTeX Error:" / "Package <name> Error:" style line.
var (
	texTypedError = regexp.MustCompile(
		`^! ((?:La|pdf)TeX|Package|Class)(?: (\w+))? [eE]rror(?: \(([\\]?\w+)\))?: (.*)`)
	texBareError = regexp.MustCompile(`^! (.*)`)
	texLineRef   = regexp.MustCompile(`^l\.(\d+)`)
)

// ExtractTeX scans TeX-family compiler output for the first fatal error
// marker and captures a bounded context window around it. The log file
// content takes precedence over stdout since the engine truncates its
// console output; when neither contains a recognized marker the raw
// output is returned unrecognized.
func ExtractTeX(stage, logText, stdout, stderr string) Summary {
	s := Summary{Stage: stage, RawStdout: stdout, RawStderr: stderr}

	for _, text := range []string{logText, stdout} {
		if text == "" {
			continue
		}
		if found, ok := scanTeXLines(strings.Split(text, "\n")); ok {
			found.Stage = stage
			found.RawStdout = stdout
			found.RawStderr = stderr
			return found
		}
	}
	return s
}

func scanTeXLines(lines []string) (Summary, bool) {
	for i, line := range lines {
		var headline string
		if m := texTypedError.FindStringSubmatch(line); m != nil {
			headline = m[1]
			if m[2] != "" {
				headline += " " + m[2]
			}
			headline += " Error: " + m[4]
		} else if m := texBareError.FindStringSubmatch(line); m != nil {
			headline = m[1]
		} else {
			continue
		}

		s := Summary{Headline: headline, Recognized: true}
		s.ContextLines = append(s.ContextLines, line)
		for j := i + 1; j < len(lines) && j <= i+contextLines; j++ {
			s.ContextLines = append(s.ContextLines, lines[j])
		}
		// The source line reference ("l.<n> ...") usually follows within
		// a few lines of the error marker.
		for j := i + 1; j < len(lines) && j <= i+8; j++ {
			if m := texLineRef.FindStringSubmatch(lines[j]); m != nil {
				s.SourceLine = parseLineRef(m[1])
				break
			}
		}
		return s, true
	}
	return Summary{}, false
}

func parseLineRef(digits string) uint32 {
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0
	}
	line, err := safecast.Convert[uint32](n)
	if err != nil {
		return 0
	}
	return line
}
