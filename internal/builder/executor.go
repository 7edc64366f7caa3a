package builder

import (
	"bytes"
	"context"
	"os/exec"
)

// Executor abstracts converter execution for testability.
type Executor interface {
	// Run executes binary in dir and returns its captured stderr.
	Run(ctx context.Context, dir, binary string, args []string) (string, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}
