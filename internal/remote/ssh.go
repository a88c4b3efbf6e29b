package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/time/rate"
)

// DefaultKeyFiles are tried when no key files are configured.
var DefaultKeyFiles = []string{"~/.ssh/id_rsa", "~/.ssh/id_ed25519"}

// SSHConfig configures SSHDialer.
type SSHConfig struct {
	// User is the login name; a "user@" prefix on a host overrides it
	User string

	// Port is used for hosts given without one
	Port int

	// KeyFiles are private keys offered for public key authentication.
	// Missing files are skipped.
	KeyFiles []string

	// KnownHosts enables host key verification against the given file.
	// Empty disables verification.
	KnownHosts string

	// Timeout bounds connection setup
	Timeout time.Duration

	// DialRate limits new connections per second across the fleet.
	// Zero or less means unlimited.
	DialRate float64

	// PollInterval is how often detached sessions are checked
	PollInterval time.Duration
}

// SSHDialer opens Transports over SSH.
type SSHDialer struct {
	cfg     SSHConfig
	auth    []ssh.AuthMethod
	hostKey ssh.HostKeyCallback
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSSHDialer loads the configured keys and host key database.
func NewSSHDialer(cfg SSHConfig, logger *slog.Logger) (*SSHDialer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ssh")

	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if len(cfg.KeyFiles) == 0 {
		cfg.KeyFiles = DefaultKeyFiles
	}

	signers, err := loadSigners(cfg.KeyFiles)
	if err != nil {
		return nil, err
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		file, err := homedir.Expand(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("expanding known_hosts path: %w", err)
		}
		hostKey, err = knownhosts.New(file)
		if err != nil {
			return nil, fmt.Errorf("loading known_hosts %s: %w", file, err)
		}
	} else {
		logger.Warn("host key verification disabled")
	}

	limit := rate.Inf
	if cfg.DialRate > 0 {
		limit = rate.Limit(cfg.DialRate)
	}

	return &SSHDialer{
		cfg:     cfg,
		auth:    []ssh.AuthMethod{ssh.PublicKeys(signers...)},
		hostKey: hostKey,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

func loadSigners(files []string) ([]ssh.Signer, error) {
	var signers []ssh.Signer
	for _, f := range files {
		path, err := homedir.Expand(f)
		if err != nil {
			return nil, fmt.Errorf("expanding key path %s: %w", f, err)
		}
		key, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading key %s: %w", path, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing key %s: %w", path, err)
		}
		signers = append(signers, signer)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("no usable private key in %s", strings.Join(files, ", "))
	}
	return signers, nil
}

// splitTarget separates an optional "user@" prefix and adds the default port.
func (d *SSHDialer) splitTarget(host string) (user, addr string) {
	user = d.cfg.User
	if u, h, ok := strings.Cut(host, "@"); ok {
		user, host = u, h
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return user, host
	}
	return user, net.JoinHostPort(host, strconv.Itoa(d.cfg.Port))
}

// Dial connects to host.
func (d *SSHDialer) Dial(ctx context.Context, host string) (Transport, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting to dial %s: %w", host, err)
	}

	user, addr := d.splitTarget(host)

	nd := net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            d.auth,
		HostKeyCallback: d.hostKey,
		Timeout:         d.cfg.Timeout,
	}
	if d.cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.cfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	d.logger.Debug("connected", "host", host, "user", user)

	return &sshTransport{
		host:   host,
		client: ssh.NewClient(c, chans, reqs),
		poll:   d.cfg.PollInterval,
	}, nil
}

type sshTransport struct {
	host   string
	client *ssh.Client
	poll   time.Duration
}

func (t *sshTransport) Host() string { return t.host }

func (t *sshTransport) Run(ctx context.Context, cmd string) (Result, error) {
	return t.exec(ctx, cmd, nil)
}

func (t *sshTransport) exec(ctx context.Context, cmd string, stdin io.Reader) (Result, error) {
	sess, err := t.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("%s: opening session: %w", t.host, err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	sess.Stdin = stdin

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		<-done
		return Result{}, fmt.Errorf("%s: %q: %w", t.host, cmd, ctx.Err())
	case err = <-done:
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, &ExitError{Host: t.host, Cmd: cmd, Result: res}
	}
	if err != nil {
		return res, fmt.Errorf("%s: %q: %w", t.host, cmd, err)
	}
	return res, nil
}

func (t *sshTransport) CopyFile(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	dst := shellescape.Quote(remotePath)
	cmd := fmt.Sprintf("cat > %s && chmod %o %s", dst, info.Mode().Perm(), dst)
	if _, err := t.exec(ctx, cmd, f); err != nil {
		return fmt.Errorf("copying %s to %s:%s: %w", localPath, t.host, remotePath, err)
	}
	return nil
}

func (t *sshTransport) MakeDirs(ctx context.Context, dirs ...string) error {
	if len(dirs) == 0 {
		return nil
	}
	_, err := t.Run(ctx, "mkdir -p "+shellescape.QuoteCommand(dirs))
	return err
}

func (t *sshTransport) RunDetachedSession(ctx context.Context, name, cmd string) error {
	return startSession(ctx, t, name, cmd)
}

func (t *sshTransport) WaitForSession(ctx context.Context, name string) (bool, error) {
	return waitForSession(ctx, t, name, t.poll)
}

func (t *sshTransport) KillSessions(ctx context.Context, name string) (int, error) {
	return killSessions(ctx, t, name)
}

func (t *sshTransport) Close() error {
	return t.client.Close()
}
