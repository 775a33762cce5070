package policyio

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCUE(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "policy.cue"), []byte(content), 0o644); err != nil {
		t.Fatalf("write cue fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cue.mod", "module.cue"), []byte(`module: "policy.test"
`), 0o644); err != nil {
		t.Fatalf("write cue.mod: %v", err)
	}
}

func TestCUELoaderLowersBundleAndBody(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "cue.mod"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeCUE(t, dir, `
bundles: [{
	type: "agent"
	name: "main"
	subtypes: [{
		name: "packages"
		promises: [{
			promiser: "nginx"
			classes: "linux"
			constraints: [
				{lval: "package_policy", rval: "add"},
			]
		}]
	}]
}]

bodies: [{
	type: "package_module"
	name: "apt"
	constraints: [
		{lval: "package_manager", rval: "apt"},
	]
}]
`)

	loader := NewCUELoader()
	policy, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	bundle, ok := policy.LookupBundle("agent", "main")
	if !ok {
		t.Fatal("expected bundle agent:main to be loaded")
	}
	if len(bundle.Subtypes) != 1 || len(bundle.Subtypes[0].Promises) != 1 {
		t.Fatalf("unexpected bundle shape: %+v", bundle)
	}
	if bundle.Subtypes[0].Promises[0].Promiser != "nginx" {
		t.Errorf("unexpected promiser: %q", bundle.Subtypes[0].Promises[0].Promiser)
	}

	if _, ok := policy.LookupBody("package_module", "apt"); !ok {
		t.Fatal("expected body package_module:apt to be loaded")
	}
}

func TestCUELoaderRejectsDuplicateBundle(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "cue.mod"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeCUE(t, dir, `
bundles: [
	{type: "agent", name: "main"},
	{type: "agent", name: "main"},
]
`)
	loader := NewCUELoader()
	if _, err := loader.Load(dir); err == nil {
		t.Fatalf("expected a redefinition error for duplicate bundle agent:main")
	}
}
