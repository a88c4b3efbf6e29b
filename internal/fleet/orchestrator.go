// Package fleet runs the per-host phases of a harness run: replicating the
// build layout, distributing the rewritten configuration and stopping the
// daemons the run started.
//
// Every phase fans out one task per host. A host that cannot be reached or
// whose commands fail is logged and reported in the returned Outcomes; the
// remaining hosts are processed regardless.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"al.essio.dev/pkg/shellescape"

	"evalgo.org/tsuite/internal/paths"
	"evalgo.org/tsuite/internal/remote"
	"evalgo.org/tsuite/models"
)

// DefaultStopCommands stop the daemons of each kind. Placeholders are
// expanded against the build and source tables.
var DefaultStopCommands = map[models.Kind]string{
	models.KindClient: "sudo umount -l %mp%; sudo pkill -f mount_slash",
	models.KindMDS:    "sudo pkill -f slashd",
	models.KindION:    "sudo pkill -f sliod",
}

// Orchestrator drives fleet-wide phases over a Dialer.
type Orchestrator struct {
	dialer remote.Dialer
	limit  int
	logger *slog.Logger
}

// New creates an orchestrator running at most limit hosts concurrently
// (zero means all at once).
func New(d remote.Dialer, limit int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		dialer: d,
		limit:  limit,
		logger: logger.With("component", "fleet"),
	}
}

// Each connects to every host, runs fn and disconnects. Failures are logged
// with the phase name.
func (o *Orchestrator) Each(ctx context.Context, phase string, hosts []string, fn func(ctx context.Context, t remote.Transport) error) Outcomes[struct{}] {
	outcomes := FanOut(ctx, hosts, o.limit, func(ctx context.Context, host string) (struct{}, error) {
		t, err := o.dialer.Dial(ctx, host)
		if err != nil {
			return struct{}{}, err
		}
		defer t.Close()
		return struct{}{}, fn(ctx, t)
	})

	for _, f := range outcomes.Failed() {
		o.logger.Warn(phase+" failed", "host", f.Host, "error", f.Err)
	}
	o.logger.Debug(phase+" done", "hosts", len(outcomes), "failed", len(outcomes.Failed()))
	return outcomes
}

// SetupDirs creates every build directory on each host and opens up the
// permissions of the build root. A failing chmod is only logged.
func (o *Orchestrator) SetupDirs(ctx context.Context, hosts []string, dirs paths.Table) Outcomes[struct{}] {
	return o.Each(ctx, "directory setup", hosts, func(ctx context.Context, t remote.Transport) error {
		if err := t.MakeDirs(ctx, dirs.Values()...); err != nil {
			return fmt.Errorf("creating build dirs: %w", err)
		}
		if base := dirs[paths.Base]; base != "" {
			if _, err := t.Run(ctx, "sudo chmod -R 777 "+shellescape.Quote(base)); err != nil {
				o.logger.Warn("unable to change permissions of build root", "host", t.Host(), "error", err)
			}
		}
		return nil
	})
}

// DistributeConfig copies the configuration artifact at path to the same
// path on every host.
func (o *Orchestrator) DistributeConfig(ctx context.Context, hosts []string, path string) Outcomes[struct{}] {
	return o.Each(ctx, "config distribution", hosts, func(ctx context.Context, t remote.Transport) error {
		return t.CopyFile(ctx, path, path)
	})
}

// StopDaemons runs the stop command of each resource's kind on its host.
// Hosts carrying several resources run all their commands in order; every
// command is attempted even when an earlier one fails. Kinds without a
// command in commands are skipped.
func (o *Orchestrator) StopDaemons(ctx context.Context, resources []models.Resource, commands map[models.Kind]string, tables ...paths.Table) Outcomes[struct{}] {
	if commands == nil {
		commands = DefaultStopCommands
	}

	perHost := make(map[string][]string)
	var hosts []string
	for _, res := range resources {
		cmd, ok := commands[res.Kind]
		if !ok || cmd == "" {
			continue
		}
		if _, seen := perHost[res.Host]; !seen {
			hosts = append(hosts, res.Host)
		}
		perHost[res.Host] = append(perHost[res.Host], paths.Expand(cmd, tables...))
	}

	return o.Each(ctx, "daemon shutdown", hosts, func(ctx context.Context, t remote.Transport) error {
		var errs []error
		for _, cmd := range dedupe(perHost[t.Host()]) {
			if _, err := t.Run(ctx, cmd); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
