package editor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadLibraryParsesSingleAndListDocuments(t *testing.T) {
	dir := t.TempDir()

	single := "name: motd-banner\ninsert_lines:\n  - \"welcome\"\n"
	if err := os.WriteFile(filepath.Join(dir, "motd.yaml"), []byte(single), 0o644); err != nil {
		t.Fatal(err)
	}

	list := "- name: sshd-harden\n  select_region_start: \"^Match\"\n  select_region_end: \"$end\"\n  replace_pattern: [\"PermitRootLogin yes\", \"PermitRootLogin no\"]\n- name: sshd-banner\n  insert_lines: [\"Banner /etc/issue.net\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "sshd.yml"), []byte(list), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := LoadLibrary(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tpl, ok := lib.Lookup("motd-banner")
	if !ok || len(tpl.InsertLines) != 1 || tpl.InsertLines[0] != "welcome" {
		t.Fatalf("unexpected template: %+v", tpl)
	}

	tpl, ok = lib.Lookup("sshd-harden")
	if !ok || tpl.SelectRegionStart != "^Match" || len(tpl.ReplacePattern) != 2 {
		t.Fatalf("unexpected template: %+v", tpl)
	}

	if _, ok := lib.Lookup("sshd-banner"); !ok {
		t.Fatal("expected second list entry to be indexed")
	}

	if _, ok := lib.Lookup("missing"); ok {
		t.Fatal("expected lookup miss for unknown template")
	}
}

func TestLoadLibraryMissingDirIsEmpty(t *testing.T) {
	lib, err := LoadLibrary(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := lib.Lookup("anything"); ok {
		t.Fatal("expected empty library")
	}
}
