// Package handlers wires the evaluator's Dispatch table (the Design
// Notes' "table from subtype tag to handler") to the concrete C8/C9
// engines, translating an expand.Clone's constraints into the typed input
// each engine expects.
package handlers

import (
	"context"
	"regexp"

	"github.com/convergefm/converge/internal/errs"
	"github.com/convergefm/converge/pkg/evaluator"
	"github.com/convergefm/converge/pkg/expand"
	"github.com/convergefm/converge/pkg/packages"
)

// PackageHandler adapts clones of the "packages" subtype to the C8
// planner/executor. Handle plans immediately (§4.8's plan phase runs once
// per promise as it is dispatched); Commit drains every manager's bucket
// at pass end in the fixed delete/add/update/patch/verify order, which is
// when the effector actually runs. Because the plan/commit split means the
// true per-package result is only known at Commit time, Handle reports a
// provisional outcome (repaired when an action was planned, kept when the
// promise was already satisfied) and Commit additionally reports the
// observed outcome for each planned op through CommitReporter, so a
// caller wanting the authoritative result should read both.
type PackageHandler struct {
	Planner        *packages.Planner
	Executor       *packages.Executor
	Noverify       map[string]*regexp.Regexp
	CommitReporter evaluator.Reporter
	Bundle         string
	// DryRun suppresses Commit's effector invocation; outcomes are
	// predicted from the plan instead (spec.md's dry-run semantics).
	DryRun bool
}

func constraintStr(c *expand.Clone, lval string) (string, bool) {
	for _, k := range c.Constraints {
		if k.Lval == lval {
			return k.RvalStr, true
		}
	}
	return "", false
}

func constraintList(c *expand.Clone, lval string) ([]string, bool) {
	for _, k := range c.Constraints {
		if k.Lval == lval {
			return k.RvalList, true
		}
	}
	return nil, false
}

func toPackagePromise(c *expand.Clone) packages.PackagePromise {
	pp := packages.PackagePromise{Promiser: c.Promiser}
	if v, ok := constraintStr(c, "package_manager"); ok {
		pp.ManagerKey = v
	}
	if v, ok := constraintStr(c, "package_policy"); ok {
		pp.Policy = packages.Policy(v)
	}
	if v, ok := constraintStr(c, "name_regex"); ok {
		pp.NameRegex = v
	}
	if v, ok := constraintStr(c, "version_regex"); ok {
		pp.VersionRegex = v
	}
	if v, ok := constraintStr(c, "arch_regex"); ok {
		pp.ArchRegex = v
	}
	if v, ok := constraintStr(c, "name"); ok {
		pp.ExplicitName = v
	}
	if v, ok := constraintStr(c, "version"); ok {
		pp.ExplicitVersion = v
	}
	if v, ok := constraintStr(c, "arch"); ok {
		pp.ExplicitArch = v
	}
	if v, ok := constraintStr(c, "comparator"); ok {
		pp.Comparator = packages.Comparator(v)
	} else {
		pp.Comparator = packages.CmpNone
	}
	if v, ok := constraintStr(c, "batch_policy"); ok {
		pp.BatchPolicy = packages.BatchPolicy(v)
	} else {
		pp.BatchPolicy = packages.BatchIndividual
	}
	if v, ok := constraintStr(c, "noverify_regex"); ok {
		pp.NoverifyRegex = v
	}
	if v, ok := constraintList(c, "repository_dirs"); ok {
		pp.RepositoryDirs = v
	}
	if v, ok := constraintStr(c, "repository_name_pattern"); ok {
		pp.RepositoryNamePattern = v
	}
	return pp
}

func (h *PackageHandler) Handle(ctx context.Context, c *expand.Clone) (evaluator.Outcome, []string, error) {
	pp := toPackagePromise(c)
	if pp.ManagerKey == "" {
		return evaluator.NotKept, nil, errs.NewPolicyMalformed("package promise missing package_manager", nil).WithPromiser(c.Promiser)
	}

	action, _, err := h.Planner.Plan(pp)
	if err != nil {
		return evaluator.NotKept, nil, err
	}
	if action == "" {
		return evaluator.Kept, nil, nil
	}
	return evaluator.Repaired, nil, nil
}

// Commit implements evaluator.Committer: drain every manager's buckets in
// the fixed commit order and forward the observed per-op result to
// CommitReporter, if one is set.
func (h *PackageHandler) Commit(ctx context.Context) error {
	var results []packages.OpResult
	if h.DryRun {
		for _, b := range h.Planner.Buckets() {
			for _, action := range packages.CommitOrder {
				for _, op := range b.ByAction[action] {
					results = append(results, packages.OpResult{Op: op, Outcome: packages.OutcomeRepaired})
				}
			}
		}
	} else {
		results = h.Executor.Commit(ctx, h.Planner.Buckets(), h.Noverify)
	}
	for _, b := range h.Planner.Buckets() {
		b.ByAction = make(map[packages.Action][]packages.PlannedOp)
	}
	if h.CommitReporter == nil {
		return nil
	}
	for _, r := range results {
		detail := ""
		if r.Err != nil {
			detail = r.Err.Error()
		}
		h.CommitReporter.Report(evaluator.Record{
			Bundle:   h.Bundle,
			Subtype:  "packages",
			Promiser: r.Op.Promiser,
			Outcome:  evaluator.Outcome(r.Outcome),
			Detail:   detail,
		})
	}
	return nil
}
