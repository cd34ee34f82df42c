package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"fg/internal/install"
	"fg/internal/progress"
	"fg/internal/tui"
)

const installTimeout = 30 * time.Minute

var (
	installArchive string
	installForce   bool
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <version>",
		Short: "Install an application version with its dependencies and runtime",
		Args:  cobra.ExactArgs(1),
		RunE:  runInstall,
	}
	cmd.Flags().StringVar(&installArchive, "archive", "", "Install from a local .zip or .tar.gz instead of the published manifest")
	cmd.Flags().BoolVarP(&installForce, "force", "f", false, "Reinstall even when the version is already installed")
	return cmd
}

type installOutput struct {
	Version   string                    `json:"version"`
	Skipped   bool                      `json:"skipped,omitempty"`
	Installed *install.InstalledVersion `json:"installed,omitempty"`
	Steps     []progress.Event          `json:"steps,omitempty"`
}

func runInstall(cmd *cobra.Command, args []string) error {
	version := args[0]
	archivePath := installArchive
	if archivePath != "" {
		abs, err := filepath.Abs(archivePath)
		if err != nil {
			return fmt.Errorf("resolve archive path: %w", err)
		}
		archivePath = abs
	}

	sess, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	return installVersion(cmd, sess, version, archivePath, installForce)
}

// installVersion installs version unless it is already present and force
// is unset, rendering progress for the detected output mode.
func installVersion(cmd *cobra.Command, sess *session, version, archivePath string, force bool) error {
	out := cmd.OutOrStdout()
	if !force {
		present, err := sess.manager.IsInstalled(version)
		if err != nil {
			return err
		}
		if present {
			if outputJSON {
				return writeJSON(out, installOutput{Version: version, Skipped: true})
			}
			fmt.Fprintf(out, "Version %s is already installed. Use --force to reinstall.\n", version)
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), installTimeout)
	defer cancel()

	var (
		iv     install.InstalledVersion
		runErr error
	)

	switch tui.DetectMode(out, noProgress, outputJSON) {
	case tui.ModeJSON:
		var rec progress.Recorder
		iv, runErr = sess.manager.Install(ctx, version, archivePath, &rec)
		if runErr != nil {
			return runErr
		}
		return writeJSON(out, installOutput{Version: iv.Version, Installed: &iv, Steps: rec.Final()})

	case tui.ModeTUI:
		err := tui.RunInstall(ctx, out, "Installing "+version, func(ctx context.Context, rep progress.Reporter) error {
			iv, runErr = sess.manager.Install(ctx, version, archivePath, rep)
			return runErr
		})
		if err != nil {
			return err
		}

	default:
		iv, runErr = sess.manager.Install(ctx, version, archivePath, tui.NewLineReporter(out))
		if runErr != nil {
			return runErr
		}
	}

	name := tui.NonEmptyOrDash(iv.Name)
	fmt.Fprintf(out, "Installed %s %s into %s\n", name, iv.Version, iv.Dir)
	return nil
}
