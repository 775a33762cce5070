package handlers

import (
	"context"
	"testing"

	"github.com/convergefm/converge/pkg/ast"
	"github.com/convergefm/converge/pkg/evaluator"
	"github.com/convergefm/converge/pkg/expand"
	"github.com/convergefm/converge/pkg/packages"
)

type fakeLister struct {
	installed map[string]packages.Identifier
}

func (f *fakeLister) ListInstalled(managerKey string) (map[string]packages.Identifier, error) {
	return f.installed, nil
}

type fakeRunner struct {
	individual []packages.Identifier
}

func (f *fakeRunner) RunBulk(ctx context.Context, managerKey string, action packages.Action, ids []packages.Identifier) (string, error) {
	return "", nil
}

func (f *fakeRunner) RunIndividual(ctx context.Context, managerKey string, action packages.Action, id packages.Identifier) (string, error) {
	f.individual = append(f.individual, id)
	return "", nil
}

func packageClone(promiser string, extra ...ast.Constraint) *expand.Clone {
	constraints := []ast.Constraint{
		{Lval: "package_manager", RvalStr: "apt"},
	}
	constraints = append(constraints, extra...)
	return &expand.Clone{Promiser: promiser, Constraints: constraints}
}

func TestPackageHandlerPlansAddWhenMissing(t *testing.T) {
	lister := &fakeLister{installed: map[string]packages.Identifier{}}
	planner := packages.NewPlanner(lister)
	h := &PackageHandler{Planner: planner}

	clone := packageClone("nginx", ast.Constraint{Lval: "package_policy", RvalStr: string(packages.PolicyAdd)})
	outcome, _, err := h.Handle(context.Background(), clone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != evaluator.Repaired {
		t.Fatalf("expected repaired, got %s", outcome)
	}

	buckets := planner.Buckets()
	if len(buckets) != 1 {
		t.Fatalf("expected one bucket, got %d", len(buckets))
	}
}

func TestPackageHandlerKeepsWhenAlreadyInstalled(t *testing.T) {
	lister := &fakeLister{installed: map[string]packages.Identifier{
		"nginx": {Name: "nginx", Version: "1.0"},
	}}
	planner := packages.NewPlanner(lister)
	h := &PackageHandler{Planner: planner}

	clone := packageClone("nginx", ast.Constraint{Lval: "package_policy", RvalStr: string(packages.PolicyAdd)})
	outcome, _, err := h.Handle(context.Background(), clone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != evaluator.Kept {
		t.Fatalf("expected kept, got %s", outcome)
	}
}

func TestPackageHandlerCommitReportsOutcomes(t *testing.T) {
	lister := &fakeLister{installed: map[string]packages.Identifier{}}
	planner := packages.NewPlanner(lister)
	runner := &fakeRunner{}
	executor := packages.NewExecutor(runner)

	var reported []evaluator.Record
	reporter := recordingReporter(func(r evaluator.Record) { reported = append(reported, r) })

	h := &PackageHandler{Planner: planner, Executor: executor, CommitReporter: reporter, Bundle: "main"}

	clone := packageClone("nginx", ast.Constraint{Lval: "package_policy", RvalStr: string(packages.PolicyAdd)})
	if _, _, err := h.Handle(context.Background(), clone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Commit(context.Background()); err != nil {
		t.Fatalf("unexpected commit error: %v", err)
	}

	if len(reported) != 1 {
		t.Fatalf("expected one reported record, got %d", len(reported))
	}
	if reported[0].Outcome != evaluator.Outcome(packages.OutcomeRepaired) {
		t.Fatalf("unexpected outcome: %s", reported[0].Outcome)
	}
	if len(runner.individual) != 1 {
		t.Fatalf("expected runner to be invoked once, got %d", len(runner.individual))
	}
}

type recordingReporter func(evaluator.Record)

func (f recordingReporter) Report(r evaluator.Record) { f(r) }

func TestPackageHandlerRejectsMissingManager(t *testing.T) {
	lister := &fakeLister{installed: map[string]packages.Identifier{}}
	planner := packages.NewPlanner(lister)
	h := &PackageHandler{Planner: planner}

	clone := &expand.Clone{Promiser: "nginx"}
	if _, _, err := h.Handle(context.Background(), clone); err == nil {
		t.Fatal("expected error for missing package_manager")
	}
}
