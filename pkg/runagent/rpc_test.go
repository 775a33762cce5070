package runagent

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
)

func TestRPCDispatcherHailInvokesCallPerHost(t *testing.T) {
	var seen []string
	d := &RPCDispatcher{
		Call: func(ctx context.Context, conn *grpc.ClientConn, host, selectClass string) (HailResult, error) {
			seen = append(seen, host)
			return HailResult{Host: host, ExitCode: 0}, nil
		},
	}

	results, err := d.Hail(context.Background(), []string{"host-a", "host-b"}, "role_web", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || len(seen) != 2 {
		t.Fatalf("expected both hosts to be hailed, got %v", seen)
	}
	if results[0].Host != "host-a" || results[1].Host != "host-b" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
