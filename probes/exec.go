package probes

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process
// was killed, e.g. when a child of the command still holds them open.
const waitDelay = 2 * time.Second

var (
	ErrExec        = errors.New("command failed")
	ErrParse       = errors.New("unable to parse output")
	ErrDeserialize = errors.New("unable to deserialize output")
)

// CommandOutput is what a finished process left behind. A non-zero
// ExitCode is not an error at this level; each probe decides.
type CommandOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner starts external programs. Tests replace it with a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandOutput, error)
}

// ExecRunner runs commands through os/exec. A command killed because ctx
// ended reports ctx.Err() instead of its exit status.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandOutput, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	out := CommandOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, err
}
