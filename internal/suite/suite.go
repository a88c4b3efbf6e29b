// Package suite sequences a harness run: local build root, topology parse,
// fleet setup, test execution and report publication.
//
// Errors come in two classes. Per-host failures are logged and the run
// carries on with the remaining hosts. Fatal failures (unreadable
// configuration, unwritable build artifacts, incomplete resources, no
// reachable client) abort the run: daemons started on the fleet are stopped
// best effort and the error is returned as a *FatalError.
//
// # Usage Example
//
//	s, err := suite.New(cfg, dialer, logger)
//	if err != nil {
//	    return err
//	}
//	defer s.Shutdown()
//
//	if err := s.Setup(ctx); err != nil {
//	    return err
//	}
//	run, err := s.RunTests(ctx)
package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"evalgo.org/tsuite/internal/config"
	"evalgo.org/tsuite/internal/fleet"
	"evalgo.org/tsuite/internal/localenv"
	"evalgo.org/tsuite/internal/paths"
	"evalgo.org/tsuite/internal/remote"
	"evalgo.org/tsuite/internal/report"
	"evalgo.org/tsuite/internal/status"
	"evalgo.org/tsuite/internal/testrun"
	"evalgo.org/tsuite/internal/topology"
	"evalgo.org/tsuite/models"
)

// ErrNotLoaded is returned by operations that need a parsed topology.
var ErrNotLoaded = errors.New("topology not loaded")

// FatalError ends a run. Shutdown holds the outcome of stopping the
// daemons, if any failed.
type FatalError struct {
	Phase    string
	Err      error
	Shutdown error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error during %s: %v", e.Phase, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Suite drives one harness run over a fleet of hosts.
type Suite struct {
	cfg    *config.Config
	dialer remote.Dialer
	pool   *remote.Pool
	fleet  *fleet.Orchestrator
	logger *slog.Logger

	env      *localenv.Env
	dirs     paths.Table
	src      paths.Table
	registry *topology.Registry
	conf     []byte
	confPath string
}

// New creates a Suite. Connections of the setup and test phases are pooled
// per host and released by Shutdown; status checks dial d afresh.
func New(cfg *config.Config, d remote.Dialer, logger *slog.Logger) (*Suite, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if d == nil {
		return nil, errors.New("dialer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool := remote.NewPool(d)
	return &Suite{
		cfg:    cfg,
		dialer: d,
		pool:   pool,
		fleet:  fleet.New(pool, cfg.SSH.Concurrency, logger),
		logger: logger.With("component", "suite"),
	}, nil
}

// Registry returns the parsed topology, or nil before Load or Setup.
func (s *Suite) Registry() *topology.Registry { return s.registry }

// Dirs returns the resolved build directory table.
func (s *Suite) Dirs() paths.Table { return s.dirs }

// SrcDirs returns the resolved source table.
func (s *Suite) SrcDirs() paths.Table { return s.src }

// Env returns the local build root created by Setup.
func (s *Suite) Env() *localenv.Env { return s.env }

// Config returns the rewritten configuration.
func (s *Suite) Config() []byte { return s.conf }

// ConfigPath returns the path of the configuration artifact written by Setup.
func (s *Suite) ConfigPath() string { return s.confPath }

// Load resolves the directory tables for the build root at base and parses
// the SLASH2 configuration. It touches neither the local file system nor
// the fleet, so it serves status checks against an existing deployment.
func (s *Suite) Load(base string) error {
	dirs := paths.BuildDirs(base)
	if err := paths.Resolve(dirs, nil); err != nil {
		return fmt.Errorf("resolving build dirs: %w", err)
	}
	return s.load(dirs)
}

func (s *Suite) load(dirs paths.Table) error {
	src := paths.SrcDirs(s.cfg.Source.SrcRoot, paths.Table(s.cfg.Source.Dirs))
	if err := paths.ResolveSrcDirs(src, dirs); err != nil {
		return fmt.Errorf("resolving source dirs: %w", err)
	}

	result, err := topology.NewParser(dirs, s.logger).ParseFile(s.cfg.Slash2.Conf)
	if err != nil {
		return err
	}

	s.dirs = dirs
	s.src = src
	s.registry = result.Registry
	s.conf = result.Config

	s.logger.Info("topology loaded", "conf", s.cfg.Slash2.Conf, "resources", s.registry.Summary())
	return nil
}

// Setup creates the local build root, parses the configuration, writes the
// rewritten configuration into the build root and replicates the build
// layout and configuration on every host. Hosts that fail are logged and
// skipped.
func (s *Suite) Setup(ctx context.Context) error {
	b := localenv.NewBuilder(s.cfg.TSuite.RootDir, s.logger)
	b.LockTimeout = s.cfg.TSuite.LockTimeout

	env, err := b.Create(ctx)
	if err != nil {
		return s.Abort(ctx, "local environment", err)
	}
	s.env = env

	if err := s.load(env.Dirs); err != nil {
		return s.Abort(ctx, "configuration parse", err)
	}

	s.confPath, err = topology.WriteArtifact(env.Base, s.conf)
	if err != nil {
		return s.Abort(ctx, "configuration parse", err)
	}

	hosts := s.registry.Hosts()
	dirs := s.fleet.SetupDirs(ctx, hosts, s.dirs)
	dist := s.fleet.DistributeConfig(ctx, dirs.Succeeded().Hosts(), s.confPath)

	s.logger.Info("fleet prepared",
		"hosts", len(hosts),
		"dirs_failed", len(dirs.Failed()),
		"config_failed", len(dist.Failed()))
	return nil
}

// RunTests runs the configured test set on every client. Per-client
// failures are logged and recorded in the returned run. Running without any
// reachable client is fatal.
func (s *Suite) RunTests(ctx context.Context) (*testrun.Run, error) {
	if s.registry == nil {
		return nil, ErrNotLoaded
	}

	tc := s.cfg.Tests
	coord := testrun.NewCoordinator(s.pool, testrun.Config{
		RunName:        tc.TsetName,
		TestDir:        tc.TsetDir,
		Pattern:        tc.Pattern,
		Handler:        tc.Handler,
		HandlerCommand: tc.HandlerCommand,
		ResultsFile:    tc.ResultsFile,
		Concurrency:    s.cfg.SSH.Concurrency,
	}, s.logger)

	run, err := coord.Run(ctx, s.registry.ByKind(models.KindClient), s.dirs)
	if err != nil {
		return run, s.Abort(ctx, "test run", err)
	}
	return run, nil
}

// Status checks every resource of the topology, each over its own
// short-lived connection.
func (s *Suite) Status(ctx context.Context) (status.Report, error) {
	if s.registry == nil {
		return nil, ErrNotLoaded
	}
	r := status.NewReporter(s.dialer, status.Options{
		CommandTimeout: s.cfg.Status.CommandTimeout,
		Concurrency:    s.cfg.SSH.Concurrency,
		Tables:         []paths.Table{s.dirs, s.src},
	}, s.logger)
	return r.Check(ctx, s.registry.All()), nil
}

// StoreReport publishes the results of run to store.
func (s *Suite) StoreReport(ctx context.Context, store report.Store, run *testrun.Run) (*models.RunReport, error) {
	if run == nil {
		return nil, errors.New("no test run to report")
	}
	rep, err := report.Publish(ctx, store, s.cfg.Tests.TsetName, run.Results)
	if err != nil {
		return nil, err
	}
	s.logger.Info("report stored", "label", rep.Label, "tests", len(rep.Tests), "failed", rep.FailedTests)
	return rep, nil
}

// StopDaemons runs the configured stop command on every resource's host.
func (s *Suite) StopDaemons(ctx context.Context) error {
	if s.registry == nil {
		return nil
	}
	out := s.fleet.StopDaemons(ctx, s.registry.All(), s.cfg.Daemons.StopCommands(), s.dirs, s.src)
	return out.Err()
}

// Abort stops the fleet's daemons best effort and wraps err as a
// *FatalError for phase.
func (s *Suite) Abort(ctx context.Context, phase string, err error) error {
	s.logger.Error("aborting run", "phase", phase, "error", err)

	fe := &FatalError{Phase: phase, Err: err}
	if stopErr := s.StopDaemons(context.WithoutCancel(ctx)); stopErr != nil {
		s.logger.Warn("some daemons could not be stopped", "error", stopErr)
		fe.Shutdown = stopErr
	}
	return fe
}

// Shutdown closes every pooled connection.
func (s *Suite) Shutdown() error {
	return s.pool.Close()
}
