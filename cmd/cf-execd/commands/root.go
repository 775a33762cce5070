// Package commands implements cf-execd's cobra command tree: the
// executor daemon that re-runs cf-agent's evaluation on a schedule tick
// (spec.md §5: "the executor's top-level loop sleeps one minute per
// schedule tick" by default).
package commands

import (
	"context"
	"fmt"
	"time"

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
		Use:     "cf-execd",
		Short:   "Run cf-agent's evaluation on a recurring schedule tick",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.EntryFile, "file", "f", ".", "policy directory to load")
	cmd.Flags().StringSliceVarP(&cfg.DefineClasses, "define", "D", nil, "classes to define (heap)")
	cmd.Flags().StringSliceVarP(&cfg.NegateClasses, "negate", "N", nil, "classes to negate")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace|debug|info|warn|error")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "predict outcomes without invoking effectors")
	cmd.Flags().BoolVar(&cfg.NoLock, "no-lock", false, "ignore the convergence lock store")
	cmd.Flags().IntVar(&cfg.PassCap, "pass-cap", cfg.PassCap, "maximum fixed-point passes per bundle")
	cmd.Flags().StringVar(&cfg.LockStorePath, "lock-store", "/var/lib/converge/locks.db", "convergence lock store path")
	cmd.Flags().StringVar(&cfg.HashStorePath, "hash-store", "/var/lib/converge/hashes.db", "hash-indexed content store path")
	cmd.Flags().StringVar(&cfg.TemplateDir, "template-dir", "", "directory of named edit-region templates")
	cmd.Flags().IntVar(&cfg.TickMinutes, "tick-minutes", cfg.TickMinutes, "minutes between schedule ticks")

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

	tick := time.Duration(cfg.TickMinutes) * time.Minute
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if err := rt.Engine.RunBundleSequence(ctx, seq); err != nil {
			rt.Log.Error().Err(err).Msg("schedule tick evaluation failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
