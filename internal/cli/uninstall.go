package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <version>",
		Short: "Remove an installed version and its dedicated runtime",
		Args:  cobra.ExactArgs(1),
		RunE:  runUninstall,
	}
}

func runUninstall(cmd *cobra.Command, args []string) error {
	version := args[0]
	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	removed, err := sess.manager.Uninstall(commandContext(cmd), version)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, map[string]any{"version": version, "removed": removed})
	}
	if removed {
		fmt.Fprintf(out, "Uninstalled %s\n", version)
	} else {
		fmt.Fprintf(out, "Version %s is not installed.\n", version)
	}
	return nil
}
