// Package runconfig holds the CLI-seeded run configuration shared by the
// agent binaries (cf-agent, cf-execd, cf-serverd, cf-runagent, cf-monitord):
// entry file, defined/negated classes, log level, dry-run/no-lock flags,
// pass cap and store paths. Grounded on the teacher's pkg/config/types.go
// (validator struct-tag pattern) and cmd/froyo/commands/root.go (the
// persistent-flag set every subcommand shares), closing Open Question (b)
// from spec.md §9: integer flags are rejected at load time instead of
// silently clamped by an unchecked atoi.
package runconfig

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config is the validated, load-time view of every agent's CLI surface
// (spec.md §6). Not every field applies to every agent binary; each cmd
// package populates only the flags it exposes and leaves the rest zero.
type Config struct {
	// Shared across all agents.
	EntryFile     string   `validate:"required"`
	DefineClasses []string `validate:""`
	NegateClasses []string `validate:""`
	LogLevel      string   `validate:"required,oneof=trace debug info warn error"`
	DryRun        bool
	NoLock        bool

	// Evaluator tuning (cf-agent, cf-execd).
	PassCap int `validate:"gte=1,lte=100"`

	// Store locations (all agents that touch C7/C10).
	LockStorePath string `validate:"required"`
	HashStorePath string `validate:"required"`

	// TemplateDir holds named edit-region recipes (pkg/editor.Library) an
	// "edit_template" constraint can reference; empty disables the feature.
	TemplateDir string

	// Run-agent only (spec.md §6 "--hail ... --background [N] --timeout
	// <sec> --select-class --remote-options").
	HailHosts     []string
	Background    int `validate:"gte=0,lte=10000"`
	TimeoutSecs   int `validate:"gte=1,lte=3600"`
	SelectClass   string
	RemoteOptions []string

	// Executor only: schedule tick, in minutes (§5 "sleeps one minute per
	// schedule tick" is the default; operators may widen it).
	TickMinutes int `validate:"gte=1,lte=1440"`
}

// DefaultConfig returns a Config with every bounded field at its
// spec-mandated default: pass cap 3 (§4.5), timeout 30s (§5), tick 1
// minute (§5).
func DefaultConfig() Config {
	return Config{
		LogLevel:    "info",
		PassCap:     3,
		TimeoutSecs: 30,
		TickMinutes: 1,
	}
}

var validate = validator.New()

// Validate rejects an out-of-range or missing-required config at load
// time. agentrun.Bootstrap (cf-agent, cf-execd) runs it before
// constructing an Engine; cf-runagent and cf-monitord range-check their
// own integer flags instead.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid run configuration: %w", err)
	}
	return nil
}
