package probes

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func TestExecRunnerExitCode(t *testing.T) {
	requireShell(t)

	out, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo loss; exit 1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, "loss\n", string(out.Stdout))
}

func TestExecRunnerCancelled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	// the background sleep keeps stdout open after sh itself is killed
	_, err := ExecRunner{}.Run(ctx, "sh", "-c", "sleep 10 & sleep 10")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), waitDelay+2*time.Second)
}

func TestCommandPingerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &CommandPinger{Platform: Linux{}, Runner: &fakeRunner{err: ctx.Err()}}
	_, err := p.Ping(ctx, "a.com", 32, 5, time.Second)
	assert.ErrorIs(t, err, ErrExec)
	assert.ErrorIs(t, err, context.Canceled)
}
