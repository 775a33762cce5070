package editor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInsertLineIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\nfoo\n"), 0644); err != nil {
		t.Fatalf("setup write: %v", err)
	}

	ctx, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	region := SelectRegion(ctx.Lines, Anchor{AtStart: true}, Anchor{AtEnd: true})
	changed := ctx.InsertLine(region, nil, PosAfter, SelLast, "foo")
	if changed {
		t.Fatalf("expected no change when last line already is foo")
	}
	wrote, err := ctx.Save()
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if wrote {
		t.Fatalf("expected Save to be a no-op (kept) when nothing changed")
	}
}

func TestInsertLineRepairsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0644); err != nil {
		t.Fatalf("setup write: %v", err)
	}

	ctx, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	region := SelectRegion(ctx.Lines, Anchor{AtStart: true}, Anchor{AtEnd: true})
	changed := ctx.InsertLine(region, nil, PosAfter, SelLast, "foo")
	if !changed {
		t.Fatalf("expected a change when foo is missing")
	}
	wrote, err := ctx.Save()
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !wrote {
		t.Fatalf("expected Save to write (repaired)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := "one\ntwo\nfoo\n"
	if string(data) != want {
		t.Fatalf("got %q, want %q", string(data), want)
	}
}

func TestDeleteMatchingFirstVsAll(t *testing.T) {
	ctx := &Context{Lines: []string{"a", "x", "b", "x"}, DerivedClasses: map[string]bool{}}
	region := Region{Start: 0, End: len(ctx.Lines)}
	re := mustRe("^x$")
	ctx.DeleteMatching(region, re, false)
	if len(ctx.Lines) != 3 {
		t.Fatalf("expected 3 lines after deleting first match, got %d: %v", len(ctx.Lines), ctx.Lines)
	}

	ctx2 := &Context{Lines: []string{"a", "x", "b", "x"}, DerivedClasses: map[string]bool{}}
	ctx2.DeleteMatching(Region{Start: 0, End: len(ctx2.Lines)}, re, true)
	if len(ctx2.Lines) != 2 {
		t.Fatalf("expected 2 lines after deleting all matches, got %d: %v", len(ctx2.Lines), ctx2.Lines)
	}
}
