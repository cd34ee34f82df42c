package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var startJVMArgs string

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <version>",
		Short: "Launch an installed version in the background",
		Args:  cobra.ExactArgs(1),
		RunE:  runStart,
	}
	cmd.Flags().StringVar(&startJVMArgs, "jvm-args", "", "Extra JVM arguments, space separated, added after the configured ones")
	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	rec, err := sess.manager.Start(commandContext(cmd), args[0], strings.Fields(startJVMArgs)...)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started %s (pid %d)\n", rec.Version, rec.PID)
	fmt.Fprintf(cmd.OutOrStdout(), "  log: %s\n", rec.LogFile)
	return nil
}
