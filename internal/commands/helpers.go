package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"evalgo.org/tsuite/internal/remote"
	"evalgo.org/tsuite/internal/report"
	"evalgo.org/tsuite/internal/suite"
)

// Output formats accepted by --format.
const (
	formatYAML = "yaml"
	formatJSON = "json"
)

// signalContext is cancelled on SIGINT, SIGTERM or SIGQUIT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
}

// newSuite builds a Suite connecting over SSH as configured.
func newSuite() (*suite.Suite, error) {
	dialer, err := remote.NewSSHDialer(remote.SSHConfig{
		User:         cfg.SSH.User,
		Port:         cfg.SSH.Port,
		KeyFiles:     cfg.SSH.KeyFiles,
		KnownHosts:   cfg.SSH.KnownHosts,
		Timeout:      cfg.SSH.Timeout,
		DialRate:     cfg.SSH.DialRate,
		PollInterval: cfg.Tests.PollInterval,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up ssh: %w", err)
	}
	return suite.New(cfg, dialer, logger)
}

// openStore connects to the configured report backend.
func openStore(ctx context.Context) (report.Store, error) {
	rc := cfg.Report
	return report.Open(ctx, report.Options{
		Backend: rc.Backend,
		CouchDB: report.CouchConfig{
			URL:      rc.CouchDB.URL,
			Database: rc.CouchDB.Database,
			Username: rc.CouchDB.Username,
			Password: rc.CouchDB.Password,
		},
		MongoDB: report.MongoConfig{
			URI:        rc.MongoDB.URI,
			Database:   rc.MongoDB.Database,
			Collection: rc.MongoDB.Collection,
			Timeout:    rc.MongoDB.Timeout,
		},
	})
}

// encode writes v to w as YAML or JSON.
func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q (want yaml or json)", format)
}
