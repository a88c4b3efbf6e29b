package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Pool keeps one open Transport per host and hands it out to every phase
// of a run. It satisfies Dialer; transports obtained through Dial are shared,
// so closing them is a no-op and the pool owns their lifetime.
//
// A transport that fails below the remote command (anything other than an
// *ExitError or a cancelled context) is closed and forgotten, so the next
// Dial for that host reconnects.
//
// Thread-safe for concurrent access.
type Pool struct {
	dialer Dialer
	conns  map[string]Transport
	mu     sync.RWMutex
}

// NewPool creates a pool dialing through d.
func NewPool(d Dialer) *Pool {
	return &Pool{
		dialer: d,
		conns:  make(map[string]Transport),
	}
}

// Get returns the transport for host, dialing it on first use.
func (p *Pool) Get(ctx context.Context, host string) (Transport, error) {
	p.mu.RLock()
	t, ok := p.conns[host]
	p.mu.RUnlock()
	if ok {
		return t, nil
	}

	// dial outside the lock so one slow host does not stall the others
	t, err := p.dialer.Dial(ctx, host)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.conns[host]; ok {
		_ = t.Close()
		return existing, nil
	}
	p.conns[host] = t
	return t, nil
}

// Dial implements Dialer.
func (p *Pool) Dial(ctx context.Context, host string) (Transport, error) {
	t, err := p.Get(ctx, host)
	if err != nil {
		return nil, err
	}
	return &shared{Transport: t, pool: p}, nil
}

// evict drops t if it is still the pooled transport of its host.
func (p *Pool) evict(t Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	host := t.Host()
	if cur, ok := p.conns[host]; ok && cur == t {
		delete(p.conns, host)
		_ = t.Close()
	}
}

// broken reports whether err means the connection itself failed.
func broken(err error) bool {
	if err == nil {
		return false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type shared struct {
	Transport
	pool *Pool
}

func (s *shared) check(err error) error {
	if broken(err) {
		s.pool.evict(s.Transport)
	}
	return err
}

func (s *shared) Run(ctx context.Context, cmd string) (Result, error) {
	res, err := s.Transport.Run(ctx, cmd)
	return res, s.check(err)
}

func (s *shared) CopyFile(ctx context.Context, localPath, remotePath string) error {
	return s.check(s.Transport.CopyFile(ctx, localPath, remotePath))
}

func (s *shared) MakeDirs(ctx context.Context, dirs ...string) error {
	return s.check(s.Transport.MakeDirs(ctx, dirs...))
}

func (s *shared) RunDetachedSession(ctx context.Context, name, cmd string) error {
	return s.check(s.Transport.RunDetachedSession(ctx, name, cmd))
}

func (s *shared) WaitForSession(ctx context.Context, name string) (bool, error) {
	ok, err := s.Transport.WaitForSession(ctx, name)
	return ok, s.check(err)
}

func (s *shared) KillSessions(ctx context.Context, name string) (int, error) {
	n, err := s.Transport.KillSessions(ctx, name)
	return n, s.check(err)
}

func (*shared) Close() error { return nil }

// Remove closes and forgets the transport for host.
// Returns an error if the host is not found.
func (p *Pool) Remove(host string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.conns[host]
	if !ok {
		return fmt.Errorf("host %s not found", host)
	}

	delete(p.conns, host)
	return t.Close()
}

// Hosts returns the connected hosts, sorted.
func (p *Pool) Hosts() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	hosts := make([]string, 0, len(p.conns))
	for host := range p.conns {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// Has reports whether host has an open transport.
func (p *Pool) Has(host string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.conns[host]
	return ok
}

// Count returns the number of open transports.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.conns)
}

// Close closes every transport and empties the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for host, t := range p.conns {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing transport for %s: %w", host, err))
		}
	}

	p.conns = make(map[string]Transport)

	return errors.Join(errs...)
}
