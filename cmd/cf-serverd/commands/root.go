// Package commands implements cf-serverd's cobra command tree. The
// server CLI mediates remote access for cf-runagent hails; per
// SPEC_FULL.md's package layout it is an interface stub — the concrete
// wire/service schema that cf-runagent's RPCDispatcher.Call talks to is an
// external collaborator (spec.md §1), so this binary owns only the
// listening/lifecycle boundary, grounded on the teacher's
// cmd/froyo/commands/root.go persistent-flag pattern.
package commands

import (
	"context"
	"fmt"
	"net"

	"github.com/convergefm/converge/internal/runconfig"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	cfg := runconfig.DefaultConfig()
	var listen string

	cmd := &cobra.Command{
		Use:     "cf-serverd",
		Short:   "Mediate remote cf-runagent hails against local policy",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, listen)
		},
	}

	cmd.Flags().StringVarP(&cfg.EntryFile, "file", "f", ".", "policy directory to load")
	cmd.Flags().StringVar(&listen, "listen", ":2224", "address to accept hail connections on")

	return cmd
}

// run opens the hail-serving listener and blocks until ctx is cancelled.
// The gRPC server is started with no service registered: the message/RPC
// schema cf-runagent's hail actually invokes is the external transport
// collaborator spec.md §1 leaves out of scope, so this is the boundary
// a concrete deployment registers its service against.
func run(ctx context.Context, cfg runconfig.Config, listen string) error {
	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listen, err)
	}
	defer lis.Close()

	srv := grpc.NewServer()
	log.Info().Str("listen", listen).Msg("cf-serverd accepting hail connections")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
