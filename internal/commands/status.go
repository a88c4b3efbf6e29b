package commands

import (
	"github.com/spf13/cobra"
)

var (
	statusBase   string
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query every cluster member for load, memory, uptime and disk usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		s, err := newSuite()
		if err != nil {
			return err
		}
		defer s.Shutdown()

		if err := s.Load(baseOrRoot(statusBase)); err != nil {
			return err
		}

		rep, err := s.Status(ctx)
		if err != nil {
			return err
		}

		total, failed := rep.Hosts()
		if failed > 0 {
			logger.Warn("some resources could not be checked", "resources", total, "failed", failed)
		}
		return encode(cmd.OutOrStdout(), statusFormat, rep)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusBase, "base", "", "build root of the running deployment (default: tsuite.rootdir)")
	statusCmd.Flags().StringVarP(&statusFormat, "format", "o", formatYAML, "output format (yaml, json)")
}

func baseOrRoot(base string) string {
	if base != "" {
		return base
	}
	return cfg.TSuite.RootDir
}
