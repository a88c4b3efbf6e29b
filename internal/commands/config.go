package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"evalgo.org/tsuite/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runShowConfig,
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config.yaml with the default settings",
	// init must work before any configuration exists
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runInitConfig,
}

var initForce bool

func init() {
	initConfigCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config.yaml")

	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(initConfigCmd)
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	const path = "config.yaml"

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	defaults, err := config.Defaults()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}

	content := append([]byte("# tsuite configuration\n\n"), data...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Created config.yaml")
	return nil
}
