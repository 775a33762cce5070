// Package evaluator implements the fixed-point driver (C5): the outer
// bundle-sequence loop, the middle subtype-pass loop, and the inner per-
// promise loop that acquires a lock, dispatches to a subtype handler, and
// aggregates an outcome. Grounded on the teacher's pkg/engine/scheduler.go
// (pass/level loop idioms, retry/backoff structure) and pkg/engine/
// planner.go (ordering), reworked to the promise/subtype/bundle loop
// structure of §4.5 rather than a DAG of infra resources.
package evaluator

import (
	"context"
	"strconv"
	"time"

	"github.com/convergefm/converge/internal/errs"
	"github.com/convergefm/converge/internal/obslog"
	"github.com/convergefm/converge/pkg/ast"
	"github.com/convergefm/converge/pkg/classes"
	"github.com/convergefm/converge/pkg/expand"
	"github.com/convergefm/converge/pkg/lockstore"
	"github.com/convergefm/converge/pkg/scope"
	"github.com/google/uuid"
)

// Outcome is the observable result of one promise dispatch (§7).
type Outcome string

const (
	Kept        Outcome = "kept"
	Repaired    Outcome = "repaired"
	NotKept     Outcome = "not-kept"
	Interrupted Outcome = "interrupted"
	Warn        Outcome = "warn"
)

// Handler dispatches one expanded clone to its subtype-specific effector.
// Planner-shaped subtypes (e.g. packages) additionally implement Committer
// and are drained via Commit at the end of every pass.
type Handler interface {
	Handle(ctx context.Context, clone *expand.Clone) (Outcome, []string /* on-outcome classes */, error)
}

// Committer is implemented by subtype handlers that batch work across a
// whole pass before executing (the package planner).
type Committer interface {
	Commit(ctx context.Context) error
}

// Record is one reportable dispatch outcome, handed to the Reporter.
type Record struct {
	Bundle   string
	Subtype  string
	Promiser string
	Outcome  Outcome
	Detail   string
	Origin   ast.Origin
}

// Reporter receives a Record per promise dispatch (C12's collaborator
// boundary into pkg/report).
type Reporter interface {
	Report(Record)
}

// BundleInvocation is one entry of the `bundlesequence` control variable:
// a bundle name plus actual arguments.
type BundleInvocation struct {
	BundleType string
	Name       string
	Actuals    []string
}

// Config controls pass-cap and default subtype ordering.
type Config struct {
	PassCap      int
	SubtypeOrder []string // fixed order appropriate to the agent role
	NoLock       bool
	OwnerIdent   string
}

const defaultPassCap = 3

// defaultExpireafter bounds how long an unconfigured lock may be held
// before a later frame may steal it as stale (§4.7).
const defaultExpireafter = time.Hour

// defaultSubtypeOrder places class-defining promises first so later guards
// in the same pass can see newly set classes, per §4.5's middle-loop note.
var defaultSubtypeOrder = []string{"vars", "classes", "packages", "files", "processes", "reports"}

// Engine is the process-wide evaluation context: the AST arena, scope
// registry, class context, lock store and dispatch table, encapsulated per
// the Design Notes' "explicit Engine struct" guidance.
type Engine struct {
	Policy    *ast.Policy
	Scopes    *scope.Registry
	Classes   *classes.Context
	Locks     *lockstore.Store
	Dispatch  map[string]Handler
	Reporter  Reporter
	Log       *obslog.Logger
	cfg       Config
}

func New(policy *ast.Policy, scopes *scope.Registry, classCtx *classes.Context, locks *lockstore.Store, dispatch map[string]Handler, reporter Reporter, log *obslog.Logger, cfg Config) *Engine {
	if cfg.PassCap <= 0 {
		cfg.PassCap = defaultPassCap
	}
	if len(cfg.SubtypeOrder) == 0 {
		cfg.SubtypeOrder = defaultSubtypeOrder
	}
	if cfg.OwnerIdent == "" {
		cfg.OwnerIdent = uuid.NewString()
	}
	return &Engine{Policy: policy, Scopes: scopes, Classes: classCtx, Locks: locks, Dispatch: dispatch, Reporter: reporter, Log: log, cfg: cfg}
}

// guardEvaluator adapts the engine's class context into expand.ClassEvaluator.
type guardEvaluator struct{ ctx *classes.Context }

func (g guardEvaluator) EvalGuard(expr string) (bool, error) {
	return classes.EvalString(expr, g.ctx)
}

// RunBundleSequence is the outer loop of §4.5: walk bundlesequence, create
// a fresh local scope per invocation, bind formals to actuals, and iterate
// the bundle's subtypes.
func (e *Engine) RunBundleSequence(ctx context.Context, seq []BundleInvocation) error {
	for _, inv := range seq {
		if err := e.runBundle(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runBundle(ctx context.Context, inv BundleInvocation) error {
	bundle, ok := e.Policy.LookupBundle(inv.BundleType, inv.Name)
	if !ok {
		return errs.NewPolicyMalformed("bundle not found: "+inv.BundleType+":"+inv.Name, nil)
	}

	localScope, err := e.Scopes.Enter(inv.Name)
	if err != nil {
		return errs.NewPolicyMalformed(err.Error(), err)
	}
	defer e.Scopes.Exit(inv.Name)
	defer e.Classes.ClearLocal()

	if len(bundle.FormalArgs) != len(inv.Actuals) {
		return errs.NewBindingArity("bundle "+inv.Name+" arity mismatch", nil)
	}
	for i, f := range bundle.FormalArgs {
		localScope.Set(f.Name, scope.Binding{Val: inv.Actuals[i], Type: scope.TypeString})
	}

	return e.runSubtypePasses(ctx, bundle, inv.Name)
}

// runSubtypePasses is the middle loop of §4.5: iterate subtypes in a fixed
// order, repeating passes while the class set changed or any clone is
// deferred, bounded by PassCap.
func (e *Engine) runSubtypePasses(ctx context.Context, bundle *ast.Bundle, bundleName string) error {
	subtypesByName := make(map[string]*ast.Subtype, len(bundle.Subtypes))
	for i := range bundle.Subtypes {
		subtypesByName[bundle.Subtypes[i].Name] = &bundle.Subtypes[i]
	}

	lastSnapshot := e.Classes.Snapshot()
	for pass := 0; pass < e.cfg.PassCap; pass++ {
		isLastPass := pass == e.cfg.PassCap-1
		anyDeferred := false
		order := e.cfg.SubtypeOrder
		for _, name := range order {
			st, ok := subtypesByName[name]
			if !ok {
				continue
			}
			deferred, err := e.runSubtype(ctx, bundleName, st, isLastPass)
			if err != nil {
				return err
			}
			if deferred {
				anyDeferred = true
			}
		}
		// also run any subtype not named in SubtypeOrder, preserving
		// declaration order for the remainder.
		for i := range bundle.Subtypes {
			st := &bundle.Subtypes[i]
			if containsString(order, st.Name) {
				continue
			}
			deferred, err := e.runSubtype(ctx, bundleName, st, isLastPass)
			if err != nil {
				return err
			}
			if deferred {
				anyDeferred = true
			}
		}

		snapshot := e.Classes.Snapshot()
		classesChanged := !classes.SnapshotsEqual(lastSnapshot, snapshot)
		lastSnapshot = snapshot

		if err := e.commitPlanners(ctx); err != nil {
			return err
		}

		if !classesChanged && !anyDeferred {
			return nil
		}
	}
	return nil
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func (e *Engine) commitPlanners(ctx context.Context) error {
	for _, h := range e.Dispatch {
		if c, ok := h.(Committer); ok {
			if err := c.Commit(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// runSubtype is the inner loop of §4.5 applied to every promise in one
// subtype, in source order (ties broken by file/line, which declaration
// order already encodes). isLastPass marks the final pass before the cap,
// at which point Open Question (a)'s uniform deferred->not-kept escalation
// applies.
func (e *Engine) runSubtype(ctx context.Context, bundleName string, st *ast.Subtype, isLastPass bool) (anyDeferred bool, err error) {
	resolver := expand.Resolver{Registry: e.Scopes, LocalScopes: []string{bundleName, "sys", "const"}}
	expander := expand.New(e.Policy)
	guard := guardEvaluator{ctx: e.Classes}

	for _, p := range st.Promises {
		ok, err := classes.EvalString(p.Classes, e.Classes)
		if err != nil {
			return anyDeferred, errs.NewPolicyMalformed(err.Error(), err)
		}
		if !ok {
			continue
		}

		clones, err := expander.Expand(p, st.Name, resolver, guard)
		if err != nil {
			return anyDeferred, err
		}

		for _, clone := range clones {
			if clone.Deferred {
				if isLastPass {
					e.report(bundleName, st.Name, clone.Promiser, NotKept, string(errs.KindUnresolvedReference), clone.Origin, true)
				} else {
					anyDeferred = true
				}
				continue
			}
			if e.dispatchClone(ctx, bundleName, st.Name, clone) {
				anyDeferred = true
			}
		}
	}
	return anyDeferred, nil
}

func (e *Engine) dispatchClone(ctx context.Context, bundleName, subtype string, clone *expand.Clone) (deferred bool) {
	handler, ok := e.Dispatch[subtype]
	if !ok {
		e.report(bundleName, subtype, clone.Promiser, NotKept, "no handler for subtype", clone.Origin, false)
		return false
	}

	fp := lockstore.Fingerprint(fingerprintInput(subtype, clone))
	ifelapsed, expireafter, thislock := lockTiming(clone)

	var handle *lockstore.Handle
	if !e.cfg.NoLock {
		out, h, err := e.Locks.TryAcquire(ctx, "promises", fp, e.cfg.OwnerIdent, ifelapsed, expireafter, time.Now())
		if err != nil {
			e.report(bundleName, subtype, clone.Promiser, Interrupted, "lock store error: "+err.Error(), clone.Origin, false)
			return false
		}
		switch out {
		case lockstore.TooSoon:
			return false
		case lockstore.Conflict:
			return true // retry a later pass
		case lockstore.Stale:
			if e.Log != nil {
				e.Log.WithBundle(bundleName).WithSubtype(subtype).WithPromiser(clone.Promiser).WithFingerprint(fp).Warn().Msg("stole stale lock: prior holder exceeded expireafter, probably a crashed run")
			}
		}
		handle = h
	}

	outcome, onOutcomeClasses, err := handler.Handle(ctx, clone)
	if err != nil {
		outcome = classifyOutcome(err)
	}
	for _, cls := range onOutcomeClasses {
		e.Classes.AddLocal(cls)
	}

	if handle != nil && !thislock {
		_ = e.Locks.Release(ctx, handle)
	}

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	e.report(bundleName, subtype, clone.Promiser, outcome, detail, clone.Origin, clone.Deferred)
	return false
}

func classifyOutcome(err error) Outcome {
	if errs.IsRetryable(err) {
		return Interrupted
	}
	return NotKept
}

// lockTiming reads the ifelapsed/expireafter/thislock lvals off a clone's
// own constraints (§4.7): ifelapsed and expireafter are seconds, thislock
// marks a long-duration hold that dispatchClone must not Release. Absent
// ifelapsed means "always eligible to reacquire"; absent expireafter falls
// back to defaultExpireafter rather than never expiring.
func lockTiming(clone *expand.Clone) (ifelapsed, expireafter time.Duration, thislock bool) {
	expireafter = defaultExpireafter
	if v, ok := constraintStr(clone, "ifelapsed"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ifelapsed = time.Duration(n) * time.Second
		}
	}
	if v, ok := constraintStr(clone, "expireafter"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			expireafter = time.Duration(n) * time.Second
		}
	}
	if v, ok := constraintStr(clone, "thislock"); ok {
		thislock = v == "true" || v == "yes" || v == "1"
	}
	return ifelapsed, expireafter, thislock
}

// constraintStr returns the scalar Rval of the first constraint with the
// given lval, mirroring pkg/handlers's helper of the same shape.
func constraintStr(clone *expand.Clone, lval string) (string, bool) {
	for _, c := range clone.Constraints {
		if c.Lval == lval {
			return c.RvalStr, true
		}
	}
	return "", false
}

func fingerprintInput(subtype string, clone *expand.Clone) lockstore.FingerprintInput {
	kvs := make([]lockstore.ConstraintKV, len(clone.Constraints))
	for i, c := range clone.Constraints {
		kvs[i] = lockstore.ConstraintKV{Lval: c.Lval, Rval: c.RvalStr}
	}
	return lockstore.FingerprintInput{
		Subtype:     subtype,
		Promiser:    clone.Promiser,
		Promisee:    clone.Promisee,
		HasPromisee: clone.HasPromisee,
		Constraints: kvs,
	}
}

func (e *Engine) report(bundle, subtype, promiser string, outcome Outcome, detail string, origin ast.Origin, deferred bool) {
	if e.Reporter != nil {
		e.Reporter.Report(Record{Bundle: bundle, Subtype: subtype, Promiser: promiser, Outcome: outcome, Detail: detail, Origin: origin})
	}
	if e.Log != nil {
		e.Log.WithBundle(bundle).WithSubtype(subtype).WithPromiser(promiser).WithOutcome(string(outcome)).Debug().Msg(detail)
	}
}
