package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"fg/internal/config"
	"fg/internal/jdk"
	"fg/internal/paths"
	"fg/internal/registry"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the manager root, configuration and host runtime",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	layout, err := resolveLayout()
	if err != nil {
		return err
	}

	var checks []healthCheck
	checks = append(checks, checkLayout(layout))

	cfg, cfgErr := config.Load(layout.ConfigFile)
	checks = append(checks, checkConfig(cfg, cfgErr))
	if cfgErr != nil {
		return writeDoctorResult(cmd, layout.Root, checks)
	}

	checks = append(checks, checkPlatform())
	checks = append(checks, checkJava(cfg))
	checks = append(checks, checkRegistry(layout))

	return writeDoctorResult(cmd, layout.Root, checks)
}

func checkLayout(layout paths.Layout) healthCheck {
	exists, err := paths.DirExists(layout.Root)
	if err != nil {
		return healthCheck{Name: "Root", Status: "error", Summary: err.Error()}
	}
	if !exists {
		return healthCheck{Name: "Root", Status: "warning", Summary: "not created yet; install creates it"}
	}
	entries, err := listDirNames(layout.VersionsDir)
	if err != nil {
		return healthCheck{Name: "Root", Status: "error", Summary: err.Error()}
	}
	return healthCheck{Name: "Root", Status: "ok", Summary: fmt.Sprintf("%d version directories", len(entries))}
}

func checkConfig(cfg config.Config, cfgErr error) healthCheck {
	if cfgErr != nil {
		return healthCheck{Name: "Config", Status: "error", Summary: cfgErr.Error()}
	}

	validations := cfg.Validate()
	var warnings, errors int
	var first string
	for _, v := range validations {
		switch v.Level {
		case "warning":
			warnings++
		case "error":
			errors++
		}
		if first == "" {
			first = v.Message
		}
	}

	summary := "maven " + cfg.MavenRepository
	if errors > 0 {
		return healthCheck{Name: "Config", Status: "error", Summary: fmt.Sprintf("%d errors; %s", errors, first)}
	}
	if warnings > 0 {
		return healthCheck{Name: "Config", Status: "warning", Summary: fmt.Sprintf("%d warnings; %s", warnings, first)}
	}
	return healthCheck{Name: "Config", Status: "ok", Summary: summary}
}

func checkPlatform() healthCheck {
	host, err := jdk.HostOS()
	if err != nil {
		return healthCheck{Name: "Platform", Status: "error", Summary: err.Error()}
	}
	return healthCheck{Name: "Platform", Status: "ok", Summary: host}
}

func checkJava(cfg config.Config) healthCheck {
	path, err := lookPath(cfg.DefaultJava)
	if err != nil {
		return healthCheck{
			Name:    "Java",
			Status:  "warning",
			Summary: fmt.Sprintf("%q not found; only versions with a provisioned JDK can start", cfg.DefaultJava),
		}
	}
	return healthCheck{Name: "Java", Status: "ok", Summary: path}
}

func checkRegistry(layout paths.Layout) healthCheck {
	table, err := registry.Open(layout.RegistryPath()).Load()
	if err != nil {
		return healthCheck{Name: "Registry", Status: "error", Summary: err.Error()}
	}
	return healthCheck{Name: "Registry", Status: "ok", Summary: fmt.Sprintf("%d recorded instances", len(table))}
}

func writeDoctorResult(cmd *cobra.Command, root string, checks []healthCheck) error {
	if outputJSON {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("FG HEALTH:")+" "+root)

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-12s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}

func listDirNames(dir string) ([]string, error) {
	exists, err := paths.DirExists(dir)
	if err != nil || !exists {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
