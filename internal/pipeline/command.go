package pipeline

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// commandOutput captures what an external stage wrote.
type commandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runCommand executes an external tool inside dir, never the process
// working directory. The context kills the child on cancellation. A
// nonzero exit is returned as an error alongside the captured output.
func runCommand(ctx context.Context, dir, name string, args ...string) (commandOutput, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := commandOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		return out, err
	}
	return out, nil
}
