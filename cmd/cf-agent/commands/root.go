// Package commands implements cf-agent's cobra command tree: the
// main-agent CLI that evaluates one pass of the bundlesequence, grounded
// on the teacher's cmd/froyo/commands/root.go persistent-flag pattern.
package commands

import (
	"context"
	"fmt"

	"github.com/convergefm/converge/internal/agentrun"
	"github.com/convergefm/converge/internal/runconfig"
	"github.com/convergefm/converge/pkg/evaluator"
	"github.com/spf13/cobra"
)

func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	cfg := runconfig.DefaultConfig()

	cmd := &cobra.Command{
		Use:     "cf-agent",
		Short:   "Evaluate one pass of the bundlesequence against local policy",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.EntryFile, "file", "f", ".", "policy directory to load")
	cmd.Flags().StringSliceVarP(&cfg.DefineClasses, "define", "D", nil, "classes to define (heap)")
	cmd.Flags().StringSliceVarP(&cfg.NegateClasses, "negate", "N", nil, "classes to negate")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace|debug|info|warn|error")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "plan without committing")
	cmd.Flags().BoolVar(&cfg.NoLock, "no-lock", false, "ignore the convergence lock store")
	cmd.Flags().IntVar(&cfg.PassCap, "pass-cap", cfg.PassCap, "maximum fixed-point passes per bundle")
	cmd.Flags().StringVar(&cfg.LockStorePath, "lock-store", "/var/lib/converge/locks.db", "convergence lock store path")
	cmd.Flags().StringVar(&cfg.HashStorePath, "hash-store", "/var/lib/converge/hashes.db", "hash-indexed content store path")
	cmd.Flags().StringVar(&cfg.TemplateDir, "template-dir", "", "directory of named edit-region templates")

	return cmd
}

func run(ctx context.Context, cfg runconfig.Config) error {
	rt, err := agentrun.Bootstrap(ctx, cfg, "agent")
	if err != nil {
		return err
	}
	defer rt.Close()

	seq, err := evaluator.BundleSequenceFromControl(rt.Policy, "agent")
	if err != nil {
		return err
	}

	if err := rt.Engine.RunBundleSequence(ctx, seq); err != nil {
		return err
	}

	for _, s := range rt.Totals.Snapshot() {
		rt.Log.Info().Str("bundle", s.Bundle).Str("subtype", s.Subtype).Str("outcome", s.Outcome).Int("count", s.Count).Msg("pass summary")
	}
	return nil
}
