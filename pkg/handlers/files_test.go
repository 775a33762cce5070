package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/convergefm/converge/pkg/ast"
	"github.com/convergefm/converge/pkg/editor"
	"github.com/convergefm/converge/pkg/evaluator"
	"github.com/convergefm/converge/pkg/expand"
)

func TestFileHandlerInsertsMissingLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motd")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	clone := &expand.Clone{
		Promiser: path,
		Constraints: []ast.Constraint{
			{Lval: "insert_line", RvalKind: ast.RvalScalar, RvalStr: "welcome"},
		},
	}

	h := &FileHandler{}
	outcome, _, err := h.Handle(context.Background(), clone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != evaluator.Repaired {
		t.Fatalf("expected repaired, got %s", outcome)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello\nwelcome\n" {
		t.Fatalf("unexpected file contents: %q", data)
	}

	// Second run should be idempotent.
	outcome, _, err = h.Handle(context.Background(), clone)
	if err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if outcome != evaluator.Kept {
		t.Fatalf("expected kept on idempotent rerun, got %s", outcome)
	}
}

func TestFileHandlerReplacesPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf")
	if err := os.WriteFile(path, []byte("debug = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	clone := &expand.Clone{
		Promiser: path,
		Constraints: []ast.Constraint{
			{Lval: "replace_pattern", RvalKind: ast.RvalList, RvalList: []string{`debug = false`, `debug = true`}},
		},
	}

	h := &FileHandler{}
	outcome, _, err := h.Handle(context.Background(), clone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != evaluator.Repaired {
		t.Fatalf("expected repaired, got %s", outcome)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "debug = true\n" {
		t.Fatalf("unexpected file contents: %q", data)
	}
}

func TestFileHandlerAppliesNamedTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motd")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tplDir := t.TempDir()
	doc := "name: motd-banner\ninsert_lines:\n  - \"managed by converge\"\n"
	if err := os.WriteFile(filepath.Join(tplDir, "motd.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := editor.LoadLibrary(tplDir)
	if err != nil {
		t.Fatal(err)
	}

	clone := &expand.Clone{
		Promiser: path,
		Constraints: []ast.Constraint{
			{Lval: "edit_template", RvalKind: ast.RvalScalar, RvalStr: "motd-banner"},
		},
	}

	h := &FileHandler{Templates: lib}
	outcome, _, err := h.Handle(context.Background(), clone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != evaluator.Repaired {
		t.Fatalf("expected repaired, got %s", outcome)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello\nmanaged by converge\n" {
		t.Fatalf("unexpected file contents: %q", data)
	}
}

func TestFileHandlerRejectsUnknownTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motd")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	clone := &expand.Clone{
		Promiser: path,
		Constraints: []ast.Constraint{
			{Lval: "edit_template", RvalKind: ast.RvalScalar, RvalStr: "missing"},
		},
	}

	h := &FileHandler{}
	if _, _, err := h.Handle(context.Background(), clone); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
