package diag

// Severity defines the importance of a parsed log message.
type Severity uint8

const (
	// SevInfo is for informational messages.
	SevInfo Severity = iota
	// SevWarning is for warnings.
	SevWarning
	// SevError is for fatal errors.
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Summary is the user-presentable digest of a failed stage.
type Summary struct {
	// Stage identifies the pipeline stage that failed.
	Stage string
	// Headline is the first recognized fatal error message.
	Headline string
	// ContextLines is a bounded window of log lines around the error.
	ContextLines []string
	// SourceLine is the 1-based source line referenced by the error,
	// or 0 when the log names none.
	SourceLine uint32
	// RawStdout and RawStderr keep the full stage output for an
	// expandable details view.
	RawStdout string
	RawStderr string
	// Recognized is false when no known error marker was found and the
	// raw output is all there is.
	Recognized bool
}

// contextLines is the window captured after a recognized error marker.
const contextLines = 2
