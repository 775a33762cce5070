// Package commands implements cf-runagent's cobra command tree: the
// run-agent CLI that dispatches a remote cf-agent invocation to one or
// more hosts over SSH (spec.md §6 "--hail ... --background [N] --timeout
// <sec> --select-class --remote-options").
package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/convergefm/converge/internal/runconfig"
	"github.com/convergefm/converge/pkg/runagent"
	"github.com/spf13/cobra"
)

func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	cfg := runconfig.DefaultConfig()
	var (
		sshUser    string
		sshKeyPath string
		sshPort    int
		remoteCmd  string
	)

	cmd := &cobra.Command{
		Use:     "cf-runagent",
		Short:   "Hail remote hosts to run one cf-agent evaluation pass",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, runagent.SSHConfig{User: sshUser, PrivateKeyPath: sshKeyPath, Port: sshPort}, remoteCmd)
		},
	}

	cmd.Flags().StringSliceVar(&cfg.HailHosts, "hail", nil, "hosts to hail")
	cmd.Flags().IntVar(&cfg.Background, "background", 0, "number of hails to run concurrently (0 = sequential)")
	cmd.Flags().IntVar(&cfg.TimeoutSecs, "timeout", cfg.TimeoutSecs, "per-host hail timeout in seconds")
	cmd.Flags().StringVar(&cfg.SelectClass, "select-class", "", "class to define on the remote invocation")
	cmd.Flags().StringSliceVar(&cfg.RemoteOptions, "remote-options", nil, "additional options passed through to the remote command")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "root", "SSH user for hail connections")
	cmd.Flags().StringVar(&sshKeyPath, "ssh-key", "", "SSH private key path (password auth if empty)")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")
	cmd.Flags().StringVar(&remoteCmd, "remote-command", "cf-agent", "remote command to invoke per hail")

	return cmd
}

func run(ctx context.Context, cfg runconfig.Config, sshCfg runagent.SSHConfig, remoteCmd string) error {
	if len(cfg.HailHosts) == 0 {
		return fmt.Errorf("--hail requires at least one host")
	}
	if cfg.TimeoutSecs < 1 || cfg.TimeoutSecs > 3600 {
		return fmt.Errorf("invalid run configuration: --timeout %d out of range [1, 3600]", cfg.TimeoutSecs)
	}
	if cfg.Background < 0 || cfg.Background > 10000 {
		return fmt.Errorf("invalid run configuration: --background %d out of range [0, 10000]", cfg.Background)
	}

	dispatcher := runagent.NewSSHDispatcher(sshCfg, remoteCommandLine(remoteCmd, cfg.RemoteOptions))
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	var results []runagent.HailResult
	var err error
	if cfg.Background > 0 {
		results, err = hailConcurrently(ctx, dispatcher, cfg.HailHosts, cfg.SelectClass, timeout, cfg.Background)
	} else {
		results, err = dispatcher.Hail(ctx, cfg.HailHosts, cfg.SelectClass, timeout)
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil || r.ExitCode != 0 {
			failed++
			fmt.Printf("%s: FAILED (exit=%d): %v\n%s\n", r.Host, r.ExitCode, r.Err, r.Output)
			continue
		}
		fmt.Printf("%s: ok\n%s\n", r.Host, r.Output)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d hails failed", failed, len(results))
	}
	return nil
}

func remoteCommandLine(remoteCmd string, opts []string) string {
	for _, o := range opts {
		remoteCmd += " " + o
	}
	return remoteCmd
}

// hailConcurrently fans hosts out across at most maxConcurrent goroutines,
// one dispatcher.Hail([host]) call per host, and merges results in host
// order (the background flag's concurrency, §6).
func hailConcurrently(ctx context.Context, d *runagent.SSHDispatcher, hosts []string, selectClass string, timeout time.Duration, maxConcurrent int) ([]runagent.HailResult, error) {
	results := make([]runagent.HailResult, len(hosts))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for i, host := range hosts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, host string) {
			defer wg.Done()
			defer func() { <-sem }()
			one, err := d.Hail(ctx, []string{host}, selectClass, timeout)
			if err != nil || len(one) == 0 {
				results[i] = runagent.HailResult{Host: host, ExitCode: -1, Err: err}
				return
			}
			results[i] = one[0]
		}(i, host)
	}
	wg.Wait()
	return results, nil
}
