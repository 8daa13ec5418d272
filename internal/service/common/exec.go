package common

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/oshokin/webdeploy/internal/logger"
)

// errEmptyCommand is returned when a declared command has no argv.
var errEmptyCommand = errors.New("empty command")

// Runner executes external commands. The only contract consumed from them is
// the exit code: zero is success, anything else is failure.
type Runner interface {
	Run(ctx context.Context, argv []string) error
}

// ExecRunner runs commands via os/exec. Output is forwarded to the logger at
// debug level so long-running migrations stay observable.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes argv and returns an error for non-zero exit codes.
// Cancellation of the context kills the process.
func (r *ExecRunner) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errEmptyCommand
	}

	//nolint:gosec // Commands come from the operator-owned manifest.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		logger.DebugKV(ctx, "Command output", "command", argv[0], "output", string(output))
	}

	if err != nil {
		return fmt.Errorf("%v: %w", argv, err)
	}

	return nil
}
