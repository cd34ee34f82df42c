package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fg/internal/install"
	"fg/internal/tui"
)

var (
	listRemote bool
	listAll    bool
	listLatest bool
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed versions, newest first",
		Long: `List installed versions, newest first.
--remote lists the versions published in the version index instead.
--all merges installed and published versions. --latest keeps only the newest row.`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
	cmd.Flags().BoolVarP(&listRemote, "remote", "r", false, "List published versions")
	cmd.Flags().BoolVarP(&listAll, "all", "a", false, "List installed and published versions together")
	cmd.Flags().BoolVarP(&listLatest, "latest", "l", false, "Show only the newest version")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	versions, err := sess.manager.List()
	if err != nil {
		return err
	}
	if listRemote || listAll {
		return listReleases(cmd, sess, versions)
	}

	if listLatest && len(versions) > 1 {
		versions = versions[:1]
	}
	out := cmd.OutOrStdout()
	if outputJSON {
		if versions == nil {
			versions = []install.InstalledVersion{}
		}
		return writeJSON(out, versions)
	}
	if len(versions) == 0 {
		fmt.Fprintln(out, "No versions installed.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tJDK\tDEPS\tINSTALLED")
	for _, v := range versions {
		installed := "-"
		if !v.InstalledAt.IsZero() {
			installed = v.InstalledAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			v.Version,
			tui.NonEmptyOrDash(v.Name),
			tui.NonEmptyOrDash(v.Runtime),
			v.Dependencies,
			installed,
		)
	}
	return tw.Flush()
}

func listReleases(cmd *cobra.Command, sess *session, installed []install.InstalledVersion) error {
	releases, err := sess.manager.Releases(commandContext(cmd))
	if err != nil {
		return err
	}
	if listAll {
		releases = install.MergeReleases(installed, releases)
	}
	if listLatest && len(releases) > 1 {
		releases = releases[:1]
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		if releases == nil {
			releases = []install.Release{}
		}
		return writeJSON(out, releases)
	}
	if len(releases) == 0 {
		fmt.Fprintln(out, "No published versions found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATUS\tSIZE\tDATE\tDEPENDENCIES")
	for _, r := range releases {
		var status []string
		if r.Installed {
			status = append(status, "installed")
		}
		if r.IsLatest {
			status = append(status, "latest")
		}
		size := "-"
		if r.Size > 0 {
			size = fmt.Sprintf("%.1f MB", float64(r.Size)/(1<<20))
		}
		date := "-"
		if !r.ReleaseDate.IsZero() {
			date = r.ReleaseDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Version,
			tui.NonEmptyOrDash(strings.Join(status, ",")),
			size,
			date,
			tui.NonEmptyOrDash(strings.Join(r.Dependencies, ", ")),
		)
	}
	return tw.Flush()
}
