// Package runagent is the remote-dispatch collaborator boundary: the
// run-agent's "hail a host, wait up to --timeout, run one evaluation pass
// there" operation. spec.md §1 keeps the concrete wire protocol and its
// TLS/handshake out of the core's scope; this package defines the
// Dispatcher interface the run-agent CLI (cmd/cf-runagent) depends on, plus
// two thin concrete transports — ssh.go (grounded on the teacher's
// pkg/transports/ssh client/executor pair) and rpc.go (a gRPC service
// boundary, grounded on the teacher's google.golang.org/grpc dependency).
package runagent

import (
	"context"
	"time"
)

// HailResult is one remote host's evaluation outcome, reported back to the
// executor that backgrounded the hail (§5 "the executor itself backgrounds
// each hail").
type HailResult struct {
	Host     string
	ExitCode int
	Output   string
	Err      error
}

// Dispatcher hails a set of hosts and runs one evaluation pass on each,
// honoring the `timeout` control's suspension point (§5.iii): "Network
// hails in the run-agent suspend with a timeout from the timeout control
// (default 30s)."
type Dispatcher interface {
	Hail(ctx context.Context, hosts []string, selectClass string, timeout time.Duration) ([]HailResult, error)
}
