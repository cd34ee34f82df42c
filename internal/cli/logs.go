package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"fg/internal/failure"
)

var (
	logsLines  int
	logsFollow bool
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <pid>",
		Short: "Print the output log of an instance",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogs,
	}
	cmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of trailing lines to print (0 for all)")
	cmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Keep printing new output until interrupted")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	pid, err := strconv.Atoi(args[0])
	if err != nil || pid <= 0 {
		return failure.New(failure.InvalidArgument, "invalid pid %q", args[0])
	}

	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	path, lines, err := sess.manager.Logs(pid, logsLines)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON && !logsFollow {
		if lines == nil {
			lines = []string{}
		}
		return writeJSON(out, map[string]any{"pid": pid, "path": path, "lines": lines})
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if !logsFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()
	if err := sess.manager.FollowLogs(ctx, pid, out); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
