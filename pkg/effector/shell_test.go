package effector

import (
	"context"
	"testing"
	"time"

	"github.com/convergefm/converge/internal/errs"
)

func TestShellRunCapturesStdout(t *testing.T) {
	sh := NewShell()
	res, err := sh.Run(context.Background(), "echo hello", nil, "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("expected %q, got %q", "hello\n", res.Stdout)
	}
}

func TestShellRunNonZeroExitIsEffectorFailed(t *testing.T) {
	sh := NewShell()
	_, err := sh.Run(context.Background(), "exit 3", nil, "", time.Second)
	var e *errs.Error
	if err == nil {
		t.Fatal("expected an error for non-zero exit")
	}
	if !asErr(err, &e) || e.Kind != errs.KindEffectorFailed {
		t.Fatalf("expected effector-failed, got %v", err)
	}
}

func TestShellRunTimeout(t *testing.T) {
	sh := NewShell()
	sh.GracePeriod = 10 * time.Millisecond
	_, err := sh.Run(context.Background(), "sleep 2", nil, "", 20*time.Millisecond)
	var e *errs.Error
	if !asErr(err, &e) || e.Kind != errs.KindEffectorTimedOut {
		t.Fatalf("expected effector-timed-out, got %v", err)
	}
}

func asErr(err error, target **errs.Error) bool {
	e, ok := err.(*errs.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
