package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fg/internal/failure"
	"fg/internal/tui"
)

var (
	stopAll     bool
	stopVersion string
)

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [pid]",
		Short: "Stop a running instance, or every instance with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStop,
	}
	cmd.Flags().BoolVar(&stopAll, "all", false, "Stop every running instance")
	cmd.Flags().StringVar(&stopVersion, "version", "", "With --all, only stop instances of this version")
	return cmd
}

type stopOutput struct {
	Stopped []int `json:"stopped"`
}

func runStop(cmd *cobra.Command, args []string) error {
	if stopAll == (len(args) == 1) {
		return failure.New(failure.InvalidArgument, "pass either a pid or --all")
	}
	if stopVersion != "" && !stopAll {
		return failure.New(failure.InvalidArgument, "--version requires --all")
	}

	var pid int
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return failure.New(failure.InvalidArgument, "invalid pid %q", args[0])
		}
		pid = n
	}

	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	var spinner *tui.Spinner
	if tui.DetectMode(stderrOf(cmd), noProgress, outputJSON) == tui.ModeTUI {
		label := fmt.Sprintf("Stopping pid %d", pid)
		if stopAll {
			label = "Stopping all instances"
		}
		spinner = tui.StartSpinner(stderrOf(cmd), label)
	}
	stopSpinner := func() {
		if spinner != nil {
			spinner.Stop()
		}
	}

	var stopped []int
	if stopAll {
		stopped, err = sess.manager.StopAll(ctx, stopVersion)
	} else {
		var ok bool
		ok, err = sess.manager.Stop(ctx, pid)
		if ok {
			stopped = []int{pid}
		}
	}
	stopSpinner()
	if err != nil {
		return err
	}

	if outputJSON {
		if stopped == nil {
			stopped = []int{}
		}
		return writeJSON(out, stopOutput{Stopped: stopped})
	}
	if len(stopped) == 0 {
		if stopAll {
			fmt.Fprintln(out, "No running instances.")
		} else {
			fmt.Fprintf(out, "No running instance with pid %d.\n", pid)
		}
		return nil
	}
	for _, p := range stopped {
		fmt.Fprintf(out, "Stopped pid %d\n", p)
	}
	return nil
}
