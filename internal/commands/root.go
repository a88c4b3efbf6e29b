// Package commands implements the tsuite command line.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"evalgo.org/tsuite/internal/config"
	"evalgo.org/tsuite/internal/logging"
	"evalgo.org/tsuite/internal/version"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	cfg       *config.Config
	logger    = slog.Default()
	closeLog  = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "tsuite",
	Short: "Distributed test harness for SLASH2",
	Long: `tsuite reads an annotated SLASH2 configuration, prepares a private
build root on every cluster member, runs a test set on the client hosts
and collects the results.

The cluster is described by the slash.conf given in slash2.conf; test
clients are declared with a "# clients = host1, host2;" comment.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = version.Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "%s" .Version}}
`)
}

// initConfig loads the configuration and sets up logging. Flags override
// the configured logging settings.
func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	l, closeFn, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		NoColor: cfg.Logging.NoColor,
	})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	logger, closeLog = l, closeFn
	slog.SetDefault(logger)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// the version needs no configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintln(cmd.OutOrStdout(), info.String())

		if cmd.Flag("verbose").Changed {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nDetails:\n")
			fmt.Fprintf(out, "  Version:    %s\n", info.Version)
			fmt.Fprintf(out, "  Git Commit: %s\n", info.GitCommit)
			fmt.Fprintf(out, "  Built:      %s\n", info.BuildTime)
			fmt.Fprintf(out, "  Go Version: %s\n", info.GoVersion)
			fmt.Fprintf(out, "  Platform:   %s\n", info.Platform)
		}
	},
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "verbose version output")
}
