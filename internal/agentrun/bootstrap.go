// Package agentrun is the shared bootstrap cf-agent and cf-execd run before
// their role-specific loop: load and validate an internal/runconfig.Config,
// open the lock/hash stores, load policy via pkg/policyio, seed class
// context, and wire the evaluator's dispatch table to pkg/handlers.
// Grounded on the teacher's cmd/froyo/commands/root.go persistent-flag
// wiring, generalised into one reusable construction path instead of
// eleven independent command stubs.
package agentrun

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/convergefm/converge/internal/obslog"
	"github.com/convergefm/converge/internal/runconfig"
	"github.com/convergefm/converge/pkg/ast"
	"github.com/convergefm/converge/pkg/classes"
	"github.com/convergefm/converge/pkg/editor"
	"github.com/convergefm/converge/pkg/effector"
	"github.com/convergefm/converge/pkg/evaluator"
	"github.com/convergefm/converge/pkg/handlers"
	"github.com/convergefm/converge/pkg/hashstore"
	"github.com/convergefm/converge/pkg/lockstore"
	"github.com/convergefm/converge/pkg/packages"
	"github.com/convergefm/converge/pkg/policyio"
	"github.com/convergefm/converge/pkg/report"
	"github.com/convergefm/converge/pkg/scope"
	"github.com/google/uuid"
)

// noLockStaleAfter bounds how recently another owner must have
// heartbeat to count as "live" for Open Question (c)'s --no-lock refusal.
const noLockStaleAfter = 5 * time.Minute

// Runtime holds everything a cf-* main needs after bootstrap: the built
// engine plus the stores it must close on shutdown.
type Runtime struct {
	Engine *evaluator.Engine
	Policy *ast.Policy
	Log    *obslog.Logger
	Locks  *lockstore.Store
	Hashes *hashstore.Store
	Totals *report.Totals
	Tracer *report.Tracer
}

// DefaultManagerCommands is the apt-based command table shipped out of the
// box; a deployment swapping package managers supplies its own via
// ManagerCommands in a future configuration layer (spec.md §1 leaves the
// concrete manager backend an external collaborator).
var DefaultManagerCommands = map[string]effector.ManagerCommands{
	"apt": {
		List:   []string{"dpkg-query", "-W", "-f", "${Package} ${Version}\n"},
		Add:    []string{"apt-get", "install", "-y"},
		Delete: []string{"apt-get", "remove", "-y"},
		Update: []string{"apt-get", "install", "-y", "--only-upgrade"},
		Patch:  []string{"apt-get", "install", "-y", "--only-upgrade"},
		Verify: []string{"dpkg", "-s"},
	},
}

// Bootstrap wires the full evaluation stack for one cf-* process: loads
// policy, opens stores, seeds classes, and builds the evaluator.Engine
// with the packages/files handlers registered.
func Bootstrap(ctx context.Context, cfg runconfig.Config, agentRole string) (*Runtime, error) {
	if err := runconfig.Validate(cfg); err != nil {
		return nil, err
	}

	log := obslog.New(obslog.Config{Level: cfg.LogLevel, Output: os.Stderr})

	loader := policyio.NewCUELoader()
	policy, err := loader.Load(cfg.EntryFile)
	if err != nil {
		return nil, fmt.Errorf("loading policy from %s: %w", cfg.EntryFile, err)
	}

	classCtx := classes.NewContext()
	classCtx.Seed(time.Now())
	classCtx.AddHeap(agentRole)
	for _, c := range cfg.DefineClasses {
		classCtx.AddHeap(c)
	}
	for _, c := range cfg.NegateClasses {
		classCtx.Negate(c)
	}

	locks, err := lockstore.New(lockstore.Config{Path: cfg.LockStorePath})
	if err != nil {
		return nil, fmt.Errorf("opening lock store: %w", err)
	}
	if err := locks.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing lock store: %w", err)
	}

	hashes, err := hashstore.New(hashstore.Config{Path: cfg.HashStorePath})
	if err != nil {
		locks.Close()
		return nil, fmt.Errorf("opening hash store: %w", err)
	}
	if err := hashes.Init(ctx); err != nil {
		locks.Close()
		hashes.Close()
		return nil, fmt.Errorf("initializing hash store: %w", err)
	}

	ownerIdent := uuid.NewString()
	now := time.Now()
	if cfg.NoLock {
		live, err := locks.HasLiveOwner(ctx, ownerIdent, noLockStaleAfter, now)
		if err != nil {
			locks.Close()
			hashes.Close()
			return nil, fmt.Errorf("checking for a live lock owner: %w", err)
		}
		if live {
			locks.Close()
			hashes.Close()
			return nil, fmt.Errorf("--no-lock refused: another owner has heartbeat within %s", noLockStaleAfter)
		}
	}
	if err := locks.Heartbeat(ctx, ownerIdent, now); err != nil {
		locks.Close()
		hashes.Close()
		return nil, fmt.Errorf("recording owner heartbeat: %w", err)
	}

	templates, err := editor.LoadLibrary(cfg.TemplateDir)
	if err != nil {
		locks.Close()
		hashes.Close()
		return nil, fmt.Errorf("loading edit-region template library: %w", err)
	}

	shell := effector.NewShell()
	runner := effector.NewPackageManagerRunner(shell, DefaultManagerCommands)
	planner := packages.NewPlanner(runner)
	executor := packages.NewExecutor(runner)

	totals := report.NewTotals()
	textSink := report.NewTextSink(os.Stdout)
	reporter := report.MultiReporter{Sinks: []evaluator.Reporter{textSink, totals}}

	pkgHandler := &handlers.PackageHandler{
		Planner:        planner,
		Executor:       executor,
		CommitReporter: reporter,
		Bundle:         agentRole,
		DryRun:         cfg.DryRun,
	}
	dispatch := map[string]evaluator.Handler{
		"packages": pkgHandler,
		"files":    &handlers.FileHandler{DryRun: cfg.DryRun, Templates: templates},
	}

	scopes := scope.NewRegistry()
	engine := evaluator.New(policy, scopes, classCtx, locks, dispatch, reporter, log, evaluator.Config{
		PassCap:    cfg.PassCap,
		NoLock:     cfg.NoLock,
		OwnerIdent: ownerIdent,
	})

	return &Runtime{Engine: engine, Policy: policy, Log: log, Locks: locks, Hashes: hashes, Totals: totals}, nil
}

// Close releases every store the runtime opened. Safe to call once per
// Bootstrap call, typically deferred right after a successful bootstrap.
func (r *Runtime) Close() {
	if r.Locks != nil {
		r.Locks.Close()
	}
	if r.Hashes != nil {
		r.Hashes.Close()
	}
	if r.Tracer != nil {
		r.Tracer.Shutdown(context.Background())
	}
}

