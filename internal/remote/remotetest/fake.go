// Package remotetest provides an in-memory fleet of hosts implementing
// remote.Dialer and remote.Transport for tests.
package remotetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"evalgo.org/tsuite/internal/remote"
)

// Operation names accepted as keys of Host.Fail.
const (
	OpRun     = "run"
	OpCopy    = "copy"
	OpMkdir   = "mkdir"
	OpSession = "session"
	OpWait    = "wait"
	OpKill    = "kill"
)

// ErrUnreachable is returned when dialing a host marked Unreachable.
var ErrUnreachable = errors.New("host unreachable")

// Host is the scripted state of one fake machine. Fields may be set before
// the host is used and inspected afterwards.
type Host struct {
	Name        string
	Unreachable bool

	// Fail makes the named operation return the given error.
	Fail map[string]error

	// Handler answers Run before the built-in behaviour when it returns
	// handled == true.
	Handler func(cmd string) (res remote.Result, handled bool, err error)

	// Files is the remote file system; `cat <path>` reads from it.
	Files map[string][]byte

	// Dirs records the directories created.
	Dirs map[string]bool

	// Commands records every command passed to Run.
	Commands []string

	// Sessions counts running detached sessions by name.
	Sessions map[string]int

	// SessionFails makes WaitForSession report an unclean exit.
	SessionFails bool

	// OnSession runs when a detached session starts.
	OnSession func(h *Host, name, cmd string)

	Dials  int
	Closes int
}

// Fleet is a set of fake hosts. Hosts are created on first reference and
// are reachable unless marked otherwise.
type Fleet struct {
	mu    sync.Mutex
	hosts map[string]*Host
}

// NewFleet creates an empty fleet.
func NewFleet() *Fleet {
	return &Fleet{hosts: make(map[string]*Host)}
}

// Host returns the named host, creating it if needed.
func (f *Fleet) Host(name string) *Host {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.host(name)
}

func (f *Fleet) host(name string) *Host {
	h, ok := f.hosts[name]
	if !ok {
		h = &Host{
			Name:     name,
			Fail:     make(map[string]error),
			Files:    make(map[string][]byte),
			Dirs:     make(map[string]bool),
			Sessions: make(map[string]int),
		}
		f.hosts[name] = h
	}
	return h
}

// Do runs fn with the fleet locked, for inspecting hosts while transports
// may still be in use.
func (f *Fleet) Do(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

// Dial implements remote.Dialer.
func (f *Fleet) Dial(ctx context.Context, host string) (remote.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := f.host(host)
	h.Dials++
	if h.Unreachable {
		return nil, fmt.Errorf("dial %s: %w", host, ErrUnreachable)
	}
	return &transport{fleet: f, h: h}, nil
}

type transport struct {
	fleet *Fleet
	h     *Host
}

func (t *transport) lock() func() {
	t.fleet.mu.Lock()
	return t.fleet.mu.Unlock
}

func (t *transport) Host() string { return t.h.Name }

func (t *transport) Run(ctx context.Context, cmd string) (remote.Result, error) {
	defer t.lock()()
	h := t.h

	h.Commands = append(h.Commands, cmd)
	if err := ctx.Err(); err != nil {
		return remote.Result{}, err
	}
	if err := h.Fail[OpRun]; err != nil {
		return remote.Result{}, err
	}
	if h.Handler != nil {
		if res, handled, err := h.Handler(cmd); handled {
			return res, err
		}
	}

	if p, ok := strings.CutPrefix(cmd, "cat "); ok {
		p = strings.Trim(strings.TrimSpace(p), "'")
		data, ok := h.Files[p]
		if !ok {
			res := remote.Result{Stderr: "cat: " + p + ": No such file or directory", ExitCode: 1}
			return res, &remote.ExitError{Host: h.Name, Cmd: cmd, Result: res}
		}
		return remote.Result{Stdout: string(data)}, nil
	}

	return remote.Result{}, nil
}

func (t *transport) CopyFile(ctx context.Context, localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	defer t.lock()()
	if err := t.h.Fail[OpCopy]; err != nil {
		return err
	}
	t.h.Files[remotePath] = data
	return nil
}

func (t *transport) MakeDirs(ctx context.Context, dirs ...string) error {
	defer t.lock()()
	if err := t.h.Fail[OpMkdir]; err != nil {
		return err
	}
	for _, d := range dirs {
		t.h.Dirs[d] = true
	}
	return nil
}

func (t *transport) RunDetachedSession(ctx context.Context, name, cmd string) error {
	defer t.lock()()
	h := t.h
	if err := h.Fail[OpSession]; err != nil {
		return err
	}
	h.Sessions[name]++
	h.Commands = append(h.Commands, cmd)
	if h.OnSession != nil {
		h.OnSession(h, name, cmd)
	}
	return nil
}

// WaitForSession ends the named sessions immediately.
func (t *transport) WaitForSession(ctx context.Context, name string) (bool, error) {
	defer t.lock()()
	if err := t.h.Fail[OpWait]; err != nil {
		return false, err
	}
	delete(t.h.Sessions, name)
	return !t.h.SessionFails, nil
}

func (t *transport) KillSessions(ctx context.Context, name string) (int, error) {
	defer t.lock()()
	if err := t.h.Fail[OpKill]; err != nil {
		return 0, err
	}
	n := t.h.Sessions[name]
	delete(t.h.Sessions, name)
	return n, nil
}

func (t *transport) Close() error {
	defer t.lock()()
	t.h.Closes++
	return nil
}
