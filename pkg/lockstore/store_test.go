package lockstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Config{Path: filepath.Join(dir, "lock.db")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTryAcquireTooSoonThenAcquired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	out, _, err := s.TryAcquire(ctx, "promises", "fp1", "owner-a", 60*time.Second, time.Hour, base)
	if err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	if out != Acquired {
		t.Fatalf("first acquire = %v, want Acquired", out)
	}

	out, _, err = s.TryAcquire(ctx, "promises", "fp1", "owner-a", 60*time.Second, time.Hour, base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	if out != TooSoon {
		t.Fatalf("second acquire at +30s = %v, want TooSoon", out)
	}

	out, _, err = s.TryAcquire(ctx, "promises", "fp1", "owner-a", 60*time.Second, time.Hour, base.Add(61*time.Second))
	if err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	if out != Acquired {
		t.Fatalf("third acquire at +61s = %v, want Acquired", out)
	}
}

func TestTryAcquireConflictThenStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	if _, _, err := s.TryAcquire(ctx, "promises", "fp2", "owner-a", 0, 10*time.Second, base); err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}

	out, _, err := s.TryAcquire(ctx, "promises", "fp2", "owner-b", 0, 10*time.Second, base.Add(1*time.Second))
	if err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	if out != Conflict {
		t.Fatalf("concurrent different-owner acquire = %v, want Conflict", out)
	}

	out, _, err = s.TryAcquire(ctx, "promises", "fp2", "owner-b", 0, 10*time.Second, base.Add(20*time.Second))
	if err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	if out != Stale {
		t.Fatalf("acquire past expireafter = %v, want Stale", out)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	_, h, err := s.TryAcquire(ctx, "promises", "fp3", "owner-a", time.Hour, time.Hour, base)
	if err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	if err := s.Release(ctx, h); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	out, _, err := s.TryAcquire(ctx, "promises", "fp3", "owner-b", time.Hour, time.Hour, base.Add(time.Second))
	if err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	if out != Acquired {
		t.Fatalf("reacquire after release = %v, want Acquired", out)
	}
}

func TestFingerprintExcludesTimeAttributes(t *testing.T) {
	base := FingerprintInput{
		Subtype:  "files",
		Promiser: "/etc/foo",
		Constraints: []ConstraintKV{
			{Lval: "mode", Rval: "0644"},
			{Lval: "mtime", Rval: "123"},
		},
	}
	withDifferentMtime := base
	withDifferentMtime.Constraints = []ConstraintKV{
		{Lval: "mode", Rval: "0644"},
		{Lval: "mtime", Rval: "999"},
	}
	if Fingerprint(base) != Fingerprint(withDifferentMtime) {
		t.Fatalf("fingerprint changed when only mtime differed")
	}

	reordered := base
	reordered.Constraints = []ConstraintKV{
		{Lval: "mtime", Rval: "123"},
		{Lval: "mode", Rval: "0644"},
	}
	if Fingerprint(base) != Fingerprint(reordered) {
		t.Fatalf("fingerprint changed when constraints were reordered")
	}

	changedMode := base
	changedMode.Constraints = []ConstraintKV{
		{Lval: "mode", Rval: "0755"},
		{Lval: "mtime", Rval: "123"},
	}
	if Fingerprint(base) == Fingerprint(changedMode) {
		t.Fatalf("fingerprint unchanged when mode differed")
	}
}
