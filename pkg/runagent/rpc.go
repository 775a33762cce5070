package runagent

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// RPCDialer opens a gRPC connection to a remote main-agent's server
// endpoint. The concrete service/message schema is an external
// collaborator per spec.md §1 ("the specific network protocol wire layer
// ... is out of scope"); converge defines only the boundary the run-agent
// and server CLIs share, grounded on the teacher's google.golang.org/grpc
// dependency.
type RPCDialer func(ctx context.Context, target string) (*grpc.ClientConn, error)

// DefaultRPCDialer opens an insecure (mutual-TLS is the transport
// collaborator's concern, per §1) gRPC connection. grpc.NewClient resolves
// and connects lazily, so timeout only bounds the first RPC made over conn,
// not the dial itself.
func DefaultRPCDialer(ctx context.Context, target string, timeout time.Duration) (*grpc.ClientConn, error) {
	return grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// RPCDispatcher hails hosts by dialing each host's server (cmd/cf-serverd)
// gRPC endpoint and invoking the (externally-defined) evaluate-one-pass
// RPC. Call is left as an injectable function so converge does not need to
// own the generated protobuf client stub to exercise the boundary.
type RPCDispatcher struct {
	Target string // not read by Hail, which dials each host string as given
	Call   func(ctx context.Context, conn *grpc.ClientConn, host, selectClass string) (HailResult, error)
}

func (d *RPCDispatcher) Hail(ctx context.Context, hosts []string, selectClass string, timeout time.Duration) ([]HailResult, error) {
	results := make([]HailResult, 0, len(hosts))
	for _, host := range hosts {
		conn, err := DefaultRPCDialer(ctx, host, timeout)
		if err != nil {
			results = append(results, HailResult{Host: host, ExitCode: -1, Err: err})
			continue
		}
		res, err := d.Call(ctx, conn, host, selectClass)
		conn.Close()
		if err != nil {
			res = HailResult{Host: host, ExitCode: -1, Err: err}
		}
		results = append(results, res)
	}
	return results, nil
}
