package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a build root and deploy the configuration to every host",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		s, err := newSuite()
		if err != nil {
			return err
		}
		defer s.Shutdown()

		if err := s.Setup(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Build root: %s\n", s.Env().Base)
		fmt.Fprintf(out, "Config:     %s\n", s.ConfigPath())
		fmt.Fprintf(out, "Resources:  %s\n", s.Registry().Summary())
		return nil
	},
}
