package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fg/internal/failure"
)

var (
	homeDir    string
	outputJSON bool
	verbose    bool
	noProgress bool

	// settings resolves flag and environment overrides. It is rebuilt by
	// every newRootCmd call.
	settings = viper.New()
)

// BuildVersion is stamped by the linker.
var BuildVersion = "dev"

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fg",
		Short:         "Install and run versions of a Java application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&homeDir, "home", "", "Manager root directory (default $FG_HOME or ~/.fg)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr as well as the manager log")
	cmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable interactive progress output")

	settings = viper.New()
	_ = settings.BindEnv("home", "FG_HOME")
	_ = settings.BindPFlag("home", cmd.PersistentFlags().Lookup("home"))

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newUninstallCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// exitCode maps failures onto process exit statuses.
func exitCode(err error) int {
	switch kind, _ := failure.KindOf(err); kind {
	case failure.InvalidArgument:
		return 2
	case failure.NotInstalled, failure.MissingManifest:
		return 3
	case failure.VersionInUse:
		return 4
	default:
		return 1
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fg build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": BuildVersion})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "fg "+BuildVersion)
			return nil
		},
	}
}

func stderrOf(cmd *cobra.Command) io.Writer {
	return cmd.ErrOrStderr()
}
