package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fg/internal/supervisor"
	"fg/internal/tui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show running instances with uptime, CPU and memory",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	instances, err := sess.manager.Status(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		if instances == nil {
			instances = []supervisor.Instance{}
		}
		return writeJSON(out, instances)
	}
	if len(instances) == 0 {
		fmt.Fprintln(out, "No running instances.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tVERSION\tUPTIME\tCPU%\tMEM MB\tLOG")
	for _, inst := range instances {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%s\n",
			inst.PID,
			inst.Version,
			formatUptime(inst.Uptime),
			inst.CPUPercent,
			float64(inst.MemoryBytes)/(1024*1024),
			tui.NonEmptyOrDash(inst.LogFile),
		)
	}
	return tw.Flush()
}

func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		return fmt.Sprintf("%dd%s", days, d)
	}
	return d.String()
}
