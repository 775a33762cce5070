package hashstore

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Config{Path: filepath.Join(dir, "hash.db")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCompareFirstSeenThenUnchangedThenChanged(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Compare("sha256", "/etc/foo", "deadbeef", true)
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}
	if res != FirstSeen {
		t.Fatalf("first Compare = %v, want FirstSeen", res)
	}

	res, err = s.Compare("sha256", "/etc/foo", "deadbeef", true)
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}
	if res != Unchanged {
		t.Fatalf("second Compare = %v, want Unchanged", res)
	}

	res, err = s.Compare("sha256", "/etc/foo", "cafebabe", false)
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}
	if res != Changed {
		t.Fatalf("third Compare = %v, want Changed", res)
	}

	stored, _, err := s.Read("sha256", "/etc/foo")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if stored != "deadbeef" {
		t.Fatalf("digest updated despite updatePromised=false: got %s", stored)
	}
}

func TestPurgeWalkRespectsUpdatePromised(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Compare("sha256", "/tmp/gone", "abc", true); err != nil {
		t.Fatalf("Compare error: %v", err)
	}

	stale, err := s.PurgeWalk("sha256", func(kind, key string) bool { return false }, false)
	if err != nil {
		t.Fatalf("PurgeWalk error: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale entry, got %d", len(stale))
	}
	if _, found, _ := s.Read("sha256", "/tmp/gone"); !found {
		t.Fatalf("entry removed despite updatePromised=false")
	}

	if _, err := s.PurgeWalk("sha256", func(kind, key string) bool { return false }, true); err != nil {
		t.Fatalf("PurgeWalk error: %v", err)
	}
	if _, found, _ := s.Read("sha256", "/tmp/gone"); found {
		t.Fatalf("entry not removed when updatePromised=true")
	}
}
