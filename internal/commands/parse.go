package commands

import (
	"github.com/spf13/cobra"

	"evalgo.org/tsuite/internal/paths"
	"evalgo.org/tsuite/internal/topology"
	"evalgo.org/tsuite/models"
)

var (
	parseBase   string
	parseFormat string
	parseConfig bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [slash.conf]",
	Short: "Parse a SLASH2 configuration without touching any host",
	Long: `Parse the SLASH2 configuration (default: slash2.conf) against the build
root given by --base and print the discovered resources. With --rewrite
the rewritten configuration is printed instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVar(&parseBase, "base", "/tmp/sltest.0", "build root placeholders resolve against")
	parseCmd.Flags().StringVarP(&parseFormat, "format", "o", formatYAML, "output format (yaml, json)")
	parseCmd.Flags().BoolVar(&parseConfig, "rewrite", false, "print the rewritten configuration")
}

func runParse(cmd *cobra.Command, args []string) error {
	conf := cfg.Slash2.Conf
	if len(args) > 0 {
		conf = args[0]
	}

	dirs := paths.BuildDirs(parseBase)
	if err := paths.Resolve(dirs, nil); err != nil {
		return err
	}

	result, err := topology.NewParser(dirs, logger).ParseFile(conf)
	if err != nil {
		return err
	}

	if parseConfig {
		_, err := cmd.OutOrStdout().Write(result.Config)
		return err
	}

	reg := result.Registry
	out := make(map[models.Kind][]models.Resource, len(reg.Kinds()))
	for _, kind := range reg.Kinds() {
		out[kind] = reg.ByKind(kind)
	}
	if err := encode(cmd.OutOrStdout(), parseFormat, out); err != nil {
		return err
	}
	logger.Debug("configuration parsed", "resources", reg.Len(), "summary", reg.Summary())
	return nil
}
