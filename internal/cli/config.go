package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fg/internal/config"
	"fg/internal/failure"
	"fg/internal/paths"
)

var configInitForce bool

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialise the manager configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration in YAML",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml under the root",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	cmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config.yaml")
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	layout, err := resolveLayout()
	if err != nil {
		return err
	}

	cfg, err := config.Load(layout.ConfigFile)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), cfg)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	layout, err := resolveLayout()
	if err != nil {
		return err
	}
	exists, err := paths.FileExists(layout.ConfigFile)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if exists && !configInitForce {
		return failure.New(failure.InvalidArgument, "%s already exists (use --force to overwrite)", layout.ConfigFile)
	}
	if err := layout.Ensure(); err != nil {
		return err
	}
	if err := config.Default().Save(layout.ConfigFile); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", layout.ConfigFile)
	return nil
}
