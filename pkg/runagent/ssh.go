package runagent

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig is connection configuration for one hail target, pared down
// from the teacher's ssh.Config to what a single one-shot hail needs (the
// teacher's connection-pool/reuse machinery is out of scope for a
// per-hail dispatch that opens, runs, and closes).
type SSHConfig struct {
	User           string
	PrivateKeyPath string
	Password       string
	Port           int
}

// SSHDispatcher hails hosts over SSH, grounded on the teacher's
// pkg/transports/ssh.SSHClient/executor pair (dial, open session, run
// command, capture stdout/stderr), collapsed to the one-shot shape a hail
// needs rather than the teacher's pooled/reused-connection transport.
type SSHDispatcher struct {
	Config  SSHConfig
	Command string // the remote main-agent invocation to run per hail
}

func NewSSHDispatcher(cfg SSHConfig, command string) *SSHDispatcher {
	return &SSHDispatcher{Config: cfg, Command: command}
}

// Hail dials each host in turn (sequentially; the executor is responsible
// for backgrounding/parallelising hails across its own goroutines per §5),
// bounded by timeout per host.
func (d *SSHDispatcher) Hail(ctx context.Context, hosts []string, selectClass string, timeout time.Duration) ([]HailResult, error) {
	auth, err := d.authMethod()
	if err != nil {
		return nil, err
	}

	results := make([]HailResult, 0, len(hosts))
	for _, host := range hosts {
		results = append(results, d.hailOne(ctx, host, selectClass, auth, timeout))
	}
	return results, nil
}

func (d *SSHDispatcher) authMethod() ([]ssh.AuthMethod, error) {
	if d.Config.PrivateKeyPath != "" {
		key, err := os.ReadFile(d.Config.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(d.Config.Password)}, nil
}

func (d *SSHDispatcher) hailOne(ctx context.Context, host, selectClass string, auth []ssh.AuthMethod, timeout time.Duration) HailResult {
	port := d.Config.Port
	if port == 0 {
		port = 22
	}

	clientCfg := &ssh.ClientConfig{
		User:            d.Config.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // the wire/TLS layer is an external collaborator per spec.md §1
		Timeout:         timeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d2 net.Dialer
	conn, err := d2.DialContext(dialCtx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return HailResult{Host: host, ExitCode: -1, Err: fmt.Errorf("dial %s: %w", host, err)}
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, host, clientCfg)
	if err != nil {
		conn.Close()
		return HailResult{Host: host, ExitCode: -1, Err: fmt.Errorf("handshake %s: %w", host, err)}
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return HailResult{Host: host, ExitCode: -1, Err: fmt.Errorf("session %s: %w", host, err)}
	}
	defer session.Close()

	cmd := d.Command
	if selectClass != "" {
		cmd = fmt.Sprintf("%s --define %s", cmd, selectClass)
	}

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-dialCtx.Done():
		session.Signal(ssh.SIGTERM)
		return HailResult{Host: host, ExitCode: -1, Output: out.String(), Err: fmt.Errorf("hail %s timed out", host)}
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return HailResult{Host: host, ExitCode: -1, Output: out.String(), Err: err}
			}
		}
		return HailResult{Host: host, ExitCode: exitCode, Output: out.String()}
	}
}
