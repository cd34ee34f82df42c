package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateForce bool

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [version]",
		Short: "Install the newest published version, or the one given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runUpdate,
	}
	cmd.Flags().BoolVarP(&updateForce, "force", "f", false, "Reinstall even when the version is already installed")
	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	requested := ""
	if len(args) == 1 {
		requested = args[0]
	}

	sess, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	version, err := sess.manager.Resolve(commandContext(cmd), requested)
	if err != nil {
		return err
	}
	if !outputJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "Updating to %s\n", version)
	}
	return installVersion(cmd, sess, version, "", updateForce)
}
