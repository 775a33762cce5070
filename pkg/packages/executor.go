package packages

import (
	"context"
	"regexp"

	"github.com/convergefm/converge/internal/errs"
)

// Runner is the external command-execution boundary (§1: OS-level
// effectors are a collaborator). Grounded on the teacher's
// pkg/micro_runner/handlers/package.go install/remove/upgrade dispatch,
// generalised to bulk-vs-individual batching.
type Runner interface {
	RunBulk(ctx context.Context, managerKey string, action Action, ids []Identifier) (output string, err error)
	RunIndividual(ctx context.Context, managerKey string, action Action, id Identifier) (output string, err error)
}

// Outcome mirrors the evaluator's outcome token vocabulary (§7), scoped to
// what the commit phase itself can determine before the evaluator
// aggregates across constraints.
type Outcome string

const (
	OutcomeRepaired    Outcome = "repaired"
	OutcomeNotKept     Outcome = "not-kept"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeWarn        Outcome = "warn"
)

// OpResult is the per-planned-op commit result.
type OpResult struct {
	Op      PlannedOp
	Outcome Outcome
	Err     error
}

// Executor drains buckets in the fixed commit order.
type Executor struct {
	runner Runner
}

func NewExecutor(runner Runner) *Executor {
	return &Executor{runner: runner}
}

// Commit drains every bucket's actions in CommitOrder, batching per the
// bucket's BatchPolicy, and applying noverify as a post-condition override
// when supplied for a manager.
func (e *Executor) Commit(ctx context.Context, buckets []*Bucket, noverify map[string]*regexp.Regexp) []OpResult {
	var results []OpResult
	for _, action := range CommitOrder {
		for _, b := range buckets {
			ops := b.ByAction[action]
			if len(ops) == 0 {
				continue
			}
			if b.BatchPolicy == BatchBulk {
				results = append(results, e.commitBulk(ctx, b.ManagerKey, action, ops, noverify[b.ManagerKey])...)
			} else {
				results = append(results, e.commitIndividual(ctx, b.ManagerKey, action, ops, noverify[b.ManagerKey])...)
			}
		}
	}
	return results
}

func (e *Executor) commitBulk(ctx context.Context, managerKey string, action Action, ops []PlannedOp, noverifyRe *regexp.Regexp) []OpResult {
	ids := make([]Identifier, len(ops))
	for i, op := range ops {
		ids[i] = op.Identifier
	}
	output, err := e.runner.RunBulk(ctx, managerKey, action, ids)
	results := make([]OpResult, len(ops))
	if err != nil {
		// Bulk batch failure surfaces interrupted for every member; the
		// core does not attempt per-member retry (§4.8 Failure semantics).
		for i, op := range ops {
			results[i] = OpResult{Op: op, Outcome: OutcomeInterrupted, Err: errs.NewEffectorFailed("bulk package operation failed", err).WithPromiser(op.Promiser)}
		}
		return results
	}
	outcome := OutcomeRepaired
	var verr error
	if noverifyRe != nil && noverifyRe.MatchString(output) {
		outcome = OutcomeNotKept
		verr = errs.NewVerificationFailed("noverify pattern matched command output")
	}
	for i, op := range ops {
		results[i] = OpResult{Op: op, Outcome: outcome, Err: verr}
	}
	return results
}

func (e *Executor) commitIndividual(ctx context.Context, managerKey string, action Action, ops []PlannedOp, noverifyRe *regexp.Regexp) []OpResult {
	results := make([]OpResult, len(ops))
	for i, op := range ops {
		output, err := e.runner.RunIndividual(ctx, managerKey, action, op.Identifier)
		if err != nil {
			results[i] = OpResult{Op: op, Outcome: OutcomeNotKept, Err: errs.NewEffectorFailed("package operation failed", err).WithPromiser(op.Promiser)}
			continue
		}
		if noverifyRe != nil && noverifyRe.MatchString(output) {
			results[i] = OpResult{Op: op, Outcome: OutcomeNotKept, Err: errs.NewVerificationFailed("noverify pattern matched command output").WithPromiser(op.Promiser)}
			continue
		}
		results[i] = OpResult{Op: op, Outcome: OutcomeRepaired}
	}
	return results
}
