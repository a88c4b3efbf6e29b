// Package testrun ships a test set to every client, runs it inside a named
// detached session and collects the results each client writes.
//
// Per client the sequence is: create the staging directory, copy the test
// modules and the handler, kill stale sessions of the same name, launch the
// handler detached, wait for it and read back the results file. Clients are
// processed concurrently; a client that fails is reported and left out of
// the results without affecting the others.
package testrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"evalgo.org/tsuite/internal/fleet"
	"evalgo.org/tsuite/internal/paths"
	"evalgo.org/tsuite/internal/remote"
	"evalgo.org/tsuite/models"
)

const (
	// DefaultHandlerCommand launches the handler; {handler} and {payload}
	// are substituted.
	DefaultHandlerCommand = "python {handler} {payload}"

	// DefaultResultsFile is the results artifact name under the mount dir.
	DefaultResultsFile = "results.json"

	// ModulesDir is the staging directory name under the mount dir.
	ModulesDir = "modules"
)

var (
	// ErrNoClients means there is no client to run tests on.
	ErrNoClients = errors.New("no test clients available")

	// ErrUnreachable marks clients that could not be connected to.
	ErrUnreachable = errors.New("client unreachable")

	// ErrSessionFailed marks a detached session that did not exit cleanly.
	ErrSessionFailed = errors.New("test session did not finish cleanly")
)

// SessionName returns the detached session name for a run.
func SessionName(run string) string {
	return "sl2." + run + ".tset"
}

// Config describes a test set and how to run it.
type Config struct {
	// RunName identifies the run; it names the detached session
	RunName string

	// TestDir holds the test modules
	TestDir string

	// Pattern selects modules in TestDir (default DefaultPattern)
	Pattern string

	// Handler is the local path of the remote execution handler
	Handler string

	// HandlerCommand is the launch command template
	HandlerCommand string

	// ResultsFile is the results artifact name under the mount dir
	ResultsFile string

	// Concurrency bounds the clients processed at once (0 = all)
	Concurrency int
}

// Run is the outcome of a test run.
type Run struct {
	Session string
	Tests   []string

	// Killed is the number of stale sessions cleaned up before launch
	Killed int

	// Results holds the parsed results per client, in client order
	Results []models.HostResults

	// Unclean lists clients whose session did not exit cleanly
	Unclean []string

	// Failures holds the error of every client without results
	Failures map[string]error
}

// Coordinator runs test sets on clients.
type Coordinator struct {
	dialer remote.Dialer
	cfg    Config
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(d remote.Dialer, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandlerCommand == "" {
		cfg.HandlerCommand = DefaultHandlerCommand
	}
	if cfg.ResultsFile == "" {
		cfg.ResultsFile = DefaultResultsFile
	}
	return &Coordinator{
		dialer: d,
		cfg:    cfg,
		logger: logger.With("component", "testrun"),
	}
}

// hostRun is what one client contributes to a Run.
type hostRun struct {
	killed  int
	clean   bool
	results *models.ClientResults
}

// Run executes the test set on every client. dirs is the resolved build
// table; it is handed to the handler and locates the staging paths.
//
// Per-client failures are recorded in Run.Failures. An error is returned
// only when the test set cannot be prepared or no client could be reached.
func (c *Coordinator) Run(ctx context.Context, clients []models.Resource, dirs paths.Table) (*Run, error) {
	if len(clients) == 0 {
		return nil, ErrNoClients
	}

	modules, err := Discover(c.cfg.TestDir, c.cfg.Pattern)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		c.logger.Warn("no test modules found", "dir", c.cfg.TestDir, "pattern", c.cfg.Pattern)
	}
	c.logger.Debug("found tests", "tests", strings.Join(Names(modules), ", "))

	// the package marker travels with the modules so they import as a package
	ship := modules
	if marker := filepath.Join(c.cfg.TestDir, PackageMarker); fileExists(marker) {
		ship = append(append([]Module{}, modules...), Module{Name: PackageMarker, Path: marker})
	}

	payload, err := EncodePayload(dirs)
	if err != nil {
		return nil, err
	}

	mount := dirs[paths.Mount]
	session := SessionName(c.cfg.RunName)
	remoteHandler := path.Join(mount, path.Base(filepath.ToSlash(c.cfg.Handler)))
	launch := strings.NewReplacer(
		"{handler}", shellescape.Quote(remoteHandler),
		"{payload}", payload,
	).Replace(c.cfg.HandlerCommand)
	resultsPath := path.Join(mount, c.cfg.ResultsFile)
	modulesPath := path.Join(mount, ModulesDir)

	hosts := make([]string, len(clients))
	for i, cl := range clients {
		hosts[i] = cl.Host
	}

	outcomes := fleet.FanOut(ctx, hosts, c.cfg.Concurrency, func(ctx context.Context, host string) (hostRun, error) {
		var hr hostRun

		t, err := c.dialer.Dial(ctx, host)
		if err != nil {
			return hr, fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		defer t.Close()

		if err := t.MakeDirs(ctx, modulesPath); err != nil {
			return hr, fmt.Errorf("creating staging dir: %w", err)
		}
		for _, m := range ship {
			if err := t.CopyFile(ctx, m.Path, path.Join(modulesPath, m.Name)); err != nil {
				return hr, fmt.Errorf("copying test %s: %w", m.Name, err)
			}
		}
		if err := t.CopyFile(ctx, c.cfg.Handler, remoteHandler); err != nil {
			return hr, fmt.Errorf("copying handler: %w", err)
		}

		if hr.killed, err = t.KillSessions(ctx, session); err != nil {
			return hr, fmt.Errorf("killing stale sessions: %w", err)
		}

		if err := t.RunDetachedSession(ctx, session, launch); err != nil {
			return hr, fmt.Errorf("launching handler: %w", err)
		}

		if hr.clean, err = t.WaitForSession(ctx, session); err != nil {
			return hr, fmt.Errorf("waiting for session: %w", err)
		}
		if !hr.clean {
			c.logger.Warn("test session did not finish cleanly", "host", host, "session", session)
		}

		res, err := t.Run(ctx, "cat "+shellescape.Quote(resultsPath))
		if err != nil {
			return hr, fmt.Errorf("reading results: %w", err)
		}
		var results models.ClientResults
		if err := json.Unmarshal([]byte(res.Stdout), &results); err != nil {
			return hr, fmt.Errorf("parsing results from %s: %w", resultsPath, err)
		}
		hr.results = &results
		return hr, nil
	})

	run := &Run{
		Session:  session,
		Tests:    Names(modules),
		Failures: make(map[string]error),
	}

	unreachable := 0
	for _, o := range outcomes {
		run.Killed += o.Value.killed
		if o.Err != nil {
			if errors.Is(o.Err, ErrUnreachable) {
				unreachable++
			}
			run.Failures[o.Host] = o.Err
			c.logger.Error("test run failed on client", "host", o.Host, "error", o.Err)
			continue
		}
		if !o.Value.clean {
			run.Unclean = append(run.Unclean, o.Host)
		}
		run.Results = append(run.Results, models.HostResults{Host: o.Host, Results: o.Value.results})
	}

	if run.Killed > 0 {
		c.logger.Debug("killed stale test sessions", "count", run.Killed, "session", session)
	}
	if len(run.Unclean) > 0 {
		c.logger.Error("some test sessions encountered errors, check the clients",
			"hosts", strings.Join(run.Unclean, ", "))
	}

	if unreachable == len(outcomes) {
		return run, fmt.Errorf("%w: none of %d clients reachable", ErrNoClients, len(outcomes))
	}

	c.logger.Info("test run finished", "session", session, "clients", len(run.Results),
		"failed_clients", len(run.Failures))
	return run, nil
}

// Err returns the per-client failures joined, or nil.
func (r *Run) Err() error {
	hosts := make([]string, 0, len(r.Failures))
	for host := range r.Failures {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	var errs []error
	for _, host := range hosts {
		errs = append(errs, fmt.Errorf("%s: %w", host, r.Failures[host]))
	}
	for _, host := range r.Unclean {
		errs = append(errs, fmt.Errorf("%s: %w", host, ErrSessionFailed))
	}
	return errors.Join(errs...)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
