package evaluator

import (
	"testing"

	"github.com/convergefm/converge/pkg/ast"
)

func TestBundleSequenceFromControlResolvesBareNames(t *testing.T) {
	policy := ast.NewPolicy()
	if err := policy.AddBody(&ast.Body{Type: "agent", Name: "control", Constraints: []ast.Constraint{
		{Lval: "bundlesequence", RvalKind: ast.RvalList, RvalList: []string{"main", "cleanup"}},
	}}); err != nil {
		t.Fatal(err)
	}
	if err := policy.AddBundle(&ast.Bundle{Type: "agent", Name: "main"}); err != nil {
		t.Fatal(err)
	}
	if err := policy.AddBundle(&ast.Bundle{Type: "agent", Name: "cleanup"}); err != nil {
		t.Fatal(err)
	}

	seq, err := BundleSequenceFromControl(policy, "agent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != 2 || seq[0].Name != "main" || seq[1].Name != "cleanup" {
		t.Fatalf("unexpected sequence: %+v", seq)
	}
}

func TestBundleSequenceFromControlParsesActuals(t *testing.T) {
	policy := ast.NewPolicy()
	if err := policy.AddBody(&ast.Body{Type: "agent", Name: "control", Constraints: []ast.Constraint{
		{Lval: "bundlesequence", RvalKind: ast.RvalList, RvalList: []string{`configure("prod", "east")`}},
	}}); err != nil {
		t.Fatal(err)
	}
	if err := policy.AddBundle(&ast.Bundle{Type: "agent", Name: "configure"}); err != nil {
		t.Fatal(err)
	}

	seq, err := BundleSequenceFromControl(policy, "agent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != 1 || seq[0].Name != "configure" || len(seq[0].Actuals) != 2 || seq[0].Actuals[0] != "prod" || seq[0].Actuals[1] != "east" {
		t.Fatalf("unexpected sequence: %+v", seq)
	}
}

func TestBundleSequenceFromControlRejectsUnknownBundle(t *testing.T) {
	policy := ast.NewPolicy()
	if err := policy.AddBody(&ast.Body{Type: "agent", Name: "control", Constraints: []ast.Constraint{
		{Lval: "bundlesequence", RvalKind: ast.RvalList, RvalList: []string{"missing"}},
	}}); err != nil {
		t.Fatal(err)
	}

	if _, err := BundleSequenceFromControl(policy, "agent"); err == nil {
		t.Fatal("expected error for unknown bundle reference")
	}
}

func TestBundleSequenceFromControlRequiresControlBody(t *testing.T) {
	policy := ast.NewPolicy()
	if _, err := BundleSequenceFromControl(policy, "agent"); err == nil {
		t.Fatal("expected error when no control body is defined")
	}
}
