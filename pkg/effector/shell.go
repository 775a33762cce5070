package effector

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/convergefm/converge/internal/errs"
)

// CommandResult is the outcome of one shell-effector invocation.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Shell runs external commands under a per-command timeout, grounded on
// the teacher's ExecHandler.Handle (command/args/shell/workdir/env
// plumbing, exec.CommandContext, stdout/stderr capture), extended with the
// graceful-terminate-then-kill cancellation discipline spec.md §5 requires:
// on timeout the child is signalled SIGTERM first, then SIGKILL if it has
// not exited after GracePeriod.
type Shell struct {
	GracePeriod time.Duration
}

func NewShell() *Shell {
	return &Shell{GracePeriod: 5 * time.Second}
}

// Run executes command (via /bin/sh -c when args is empty) bounded by
// timeout. A timeout yields an effector-timed-out error and Interrupted is
// the outcome the caller should report; any other non-zero exit is an
// effector-failed error, which the caller may downgrade to a warning per
// §4.8's "a command exit is treated as success or as a not-verified
// warning" rule.
func (s *Shell) Run(ctx context.Context, command string, args []string, workDir string, timeout time.Duration) (*CommandResult, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if len(args) > 0 {
		cmd = exec.CommandContext(runCtx, command, args...)
	} else {
		cmd = exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = s.GracePeriod
	if workDir != "" {
		cmd.Dir = workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	dur := time.Since(start)

	result := &CommandResult{Stdout: stdout.String(), Stderr: stderr.String(), Duration: dur}

	if runCtx.Err() != nil {
		return result, errs.NewEffectorTimedOut(fmt.Sprintf("command %q timed out after %s", command, timeout))
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, errs.NewEffectorFailed(fmt.Sprintf("command %q exited %d", command, result.ExitCode), err)
		}
		return result, errs.NewEffectorFailed(fmt.Sprintf("command %q failed to start", command), err)
	}
	return result, nil
}
