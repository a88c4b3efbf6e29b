package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"evalgo.org/tsuite/internal/api"
)

var serveBase string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the topology and live status over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveBase, "base", "", "build root of the running deployment (default: tsuite.rootdir)")
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := newSuite()
	if err != nil {
		return err
	}
	defer s.Shutdown()

	if err := s.Load(baseOrRoot(serveBase)); err != nil {
		return err
	}

	server := api.New(cfg.Server, s, logger)

	ctx, stop := signalContext()
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}
