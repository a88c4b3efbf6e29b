// Package remote provides command execution, file transfer and detached
// session control on cluster hosts.
//
// The Transport interface is what the rest of the harness programs against.
// SSHDialer is the production implementation; package remotetest carries an
// in-memory fake for tests.
package remote

import (
	"context"
	"fmt"
	"strings"
)

// Result is the captured outcome of a remote command.
type Result struct {
	Stdout   string `json:"stdout" yaml:"stdout"`
	Stderr   string `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	ExitCode int    `json:"exitCode" yaml:"exitCode"`
}

// Transport is an open connection to one host.
//
// Implementations must be safe for concurrent use: a pooled Transport is
// handed to every task touching its host. The SSH implementation opens a
// separate session per call.
type Transport interface {
	// Host returns the address the transport is connected to.
	Host() string

	// Run executes cmd through the remote shell. A non-zero exit status is
	// reported as *ExitError together with the captured Result.
	Run(ctx context.Context, cmd string) (Result, error)

	// CopyFile copies a local file to remotePath, keeping its permission bits.
	CopyFile(ctx context.Context, localPath, remotePath string) error

	// MakeDirs creates every directory in dirs including parents.
	MakeDirs(ctx context.Context, dirs ...string) error

	// RunDetachedSession starts cmd in a named session that survives the
	// connection.
	RunDetachedSession(ctx context.Context, name, cmd string) error

	// WaitForSession blocks until the named session has ended and reports
	// whether its command exited cleanly.
	WaitForSession(ctx context.Context, name string) (bool, error)

	// KillSessions terminates every session with the given name and returns
	// how many were running.
	KillSessions(ctx context.Context, name string) (int, error)

	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, host string) (Transport, error)
}

// ExitError is returned by Run when the remote command exited non-zero.
type ExitError struct {
	Host   string
	Cmd    string
	Result Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: %q exited with status %d", e.Host, e.Cmd, e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}
