package effector

import (
	"context"
	"testing"

	"github.com/convergefm/converge/pkg/packages"
)

func TestPackageManagerRunnerRunIndividualBuildsArgs(t *testing.T) {
	r := NewPackageManagerRunner(NewShell(), map[string]ManagerCommands{
		"apt": {Add: []string{"echo", "installing"}},
	})
	out, err := r.RunIndividual(context.Background(), "apt", packages.ActionAdd, packages.Identifier{Name: "nginx", Version: "1.2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == "" {
		t.Fatal("expected command output")
	}
}

func TestPackageManagerRunnerUnknownManager(t *testing.T) {
	r := NewPackageManagerRunner(NewShell(), map[string]ManagerCommands{})
	_, err := r.RunIndividual(context.Background(), "apt", packages.ActionAdd, packages.Identifier{Name: "nginx"})
	if err == nil {
		t.Fatal("expected error for unregistered manager")
	}
}

func TestPackageManagerRunnerListInstalledParsesLines(t *testing.T) {
	r := NewPackageManagerRunner(NewShell(), map[string]ManagerCommands{
		"apt": {List: []string{"printf", "nginx 1.18\nbash 5.0\n"}},
	})
	installed, err := r.ListInstalled("apt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if installed["nginx"].Version != "1.18" {
		t.Fatalf("unexpected parse result: %+v", installed)
	}
}
