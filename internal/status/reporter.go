// Package status collects lightweight health metrics from every cluster
// member: load, memory, uptime, disk usage and role-specific counters of the
// SLASH2 control utilities.
package status

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"evalgo.org/tsuite/internal/fleet"
	"evalgo.org/tsuite/internal/paths"
	"evalgo.org/tsuite/internal/remote"
	"evalgo.org/tsuite/models"
)

// DefaultCommandTimeout bounds each status command.
const DefaultCommandTimeout = 2 * time.Second

// CommandResult is the outcome of one status command.
type CommandResult struct {
	Command  string `json:"command" yaml:"command"`
	Stdout   string `json:"stdout" yaml:"stdout"`
	Stderr   string `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	ExitCode int    `json:"exitCode" yaml:"exitCode"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// HostReport is the status of one resource.
type HostReport struct {
	Host    string                   `json:"host" yaml:"host"`
	Name    string                   `json:"name" yaml:"name"`
	ID      int                      `json:"id" yaml:"id"`
	Reports map[string]CommandResult `json:"reports,omitempty" yaml:"reports,omitempty"`
	Summary Summary                  `json:"summary" yaml:"summary"`
	Error   string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report groups host reports by resource kind.
type Report map[models.Kind][]HostReport

// Options configure a Reporter.
type Options struct {
	// CommandTimeout bounds every command (default DefaultCommandTimeout)
	CommandTimeout time.Duration

	// Concurrency bounds the resources checked at once (0 = all)
	Concurrency int

	// Tables resolve the placeholders of role-specific commands
	Tables []paths.Table
}

// Reporter checks the status of resources.
type Reporter struct {
	dialer remote.Dialer
	opts   Options
	logger *slog.Logger
}

// NewReporter creates a Reporter.
func NewReporter(d remote.Dialer, opts Options, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	return &Reporter{dialer: d, opts: opts, logger: logger.With("component", "status")}
}

// Check reports on every resource. Each resource gets its own connection;
// a command failure is recorded and the remaining commands still run.
// Unreachable resources appear with Error set.
func (r *Reporter) Check(ctx context.Context, resources []models.Resource) Report {
	// keyed by index: several resources may share a host
	keys := make([]string, len(resources))
	for i := range resources {
		keys[i] = strconv.Itoa(i)
	}

	outcomes := fleet.FanOut(ctx, keys, r.opts.Concurrency, func(ctx context.Context, key string) (HostReport, error) {
		i, _ := strconv.Atoi(key)
		return r.checkOne(ctx, resources[i]), nil
	})

	report := make(Report)
	for i, o := range outcomes {
		kind := resources[i].Kind
		report[kind] = append(report[kind], o.Value)
	}
	return report
}

func (r *Reporter) checkOne(ctx context.Context, res models.Resource) HostReport {
	hr := HostReport{Host: res.Host, Name: res.Name, ID: res.ID}

	r.logger.Debug("connecting", "host", res.Host, "kind", res.Kind)
	t, err := r.dialer.Dial(ctx, res.Host)
	if err != nil {
		hr.Error = err.Error()
		r.logger.Warn("status check failed", "host", res.Host, "error", err)
		return hr
	}
	defer t.Close()

	ops := OpsFor(res.Kind)
	hr.Reports = make(map[string]CommandResult, len(ops))
	for _, name := range ops.Names() {
		cmd := paths.Expand(ops[name], r.opts.Tables...)
		hr.Reports[name] = r.run(ctx, t, cmd)
	}
	hr.Summary = Summarize(hr.Reports)

	r.logger.Debug("status check completed", "host", res.Host, "kind", res.Kind)
	return hr
}

func (r *Reporter) run(ctx context.Context, t remote.Transport, cmd string) CommandResult {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CommandTimeout)
	defer cancel()

	out, err := t.Run(ctx, cmd)
	cr := CommandResult{Command: cmd, Stdout: out.Stdout, Stderr: out.Stderr, ExitCode: out.ExitCode}
	if err != nil {
		var exitErr *remote.ExitError
		if errors.As(err, &exitErr) {
			cr.ExitCode = exitErr.Result.ExitCode
		}
		cr.Error = err.Error()
	}
	return cr
}

// Hosts returns the number of reports and how many of them failed.
func (rep Report) Hosts() (total, failed int) {
	for _, list := range rep {
		for _, hr := range list {
			total++
			if hr.Error != "" {
				failed++
			}
		}
	}
	return total, failed
}
