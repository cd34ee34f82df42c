package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fg/internal/archive"
	"fg/internal/config"
	"fg/internal/control"
	"fg/internal/failure"
	"fg/internal/install"
	"fg/internal/supervisor"
)

type fakeLauncher struct {
	mu   sync.Mutex
	pid  int
	args [][]string
}

func (l *fakeLauncher) Launch(command string, args []string, opts supervisor.LaunchOptions) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pid++
	l.args = append(l.args, args)
	if opts.Output != nil {
		_, _ = opts.Output.WriteString("Started FhirGuardApplication\n")
	}
	return l.pid, nil
}

type fakeProcesses struct {
	mu   sync.Mutex
	dead map[int]bool
}

func (p *fakeProcesses) Inspect(ctx context.Context, pid int) (supervisor.ProcessInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return supervisor.ProcessInfo{Running: !p.dead[pid], RSSBytes: 64 << 20, CPUPercent: 1.5}, nil
}

func (p *fakeProcesses) Terminate(ctx context.Context, pid int) error { return p.Kill(ctx, pid) }

func (p *fakeProcesses) Kill(ctx context.Context, pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead[pid] = true
	return nil
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func useFakes(t *testing.T) *fakeLauncher {
	t.Helper()
	prev := managerOptions
	launcher := &fakeLauncher{pid: 7000}
	managerOptions = []control.Option{
		control.WithLauncher(launcher),
		control.WithProcesses(&fakeProcesses{dead: map[int]bool{}}),
	}
	t.Cleanup(func() { managerOptions = prev })
	return launcher
}

const junitJarPath = "/maven2/org/junit/junit/4.13.2/junit-4.13.2.jar"

// seedHome writes a config pointing at a local release server and a java
// that exists on every host. The server publishes 1.0 and 2.0 in its
// version index; only 2.0 has a description.
func seedHome(t *testing.T) string {
	t.Helper()
	var base string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case junitJarPath:
			_, _ = w.Write([]byte("junit"))
		case "/descriptions/versions/index.json":
			_, _ = w.Write([]byte(`[{"version":"1.0"},{"version":"2.0","releaseDate":"2024-02-01T00:00:00Z","size":2097152}]`))
		case "/descriptions/version-2.0.json":
			_, _ = w.Write([]byte(`{"name":"fhir-guard","version":"2.0","entryArtifact":"app-2.0.jar",` +
				`"artifactUrl":"` + base + `/releases/app-2.0.jar",` +
				`"dependencies":{"test":{"dependencies":[{"groupId":"org.junit","artifactId":"junit","version":"4.13.2"}]}}}`))
		case "/releases/app-2.0.jar":
			_, _ = w.Write([]byte("app-2.0"))
		default:
			http.NotFound(w, r)
		}
	}))
	base = srv.URL
	t.Cleanup(srv.Close)

	home := filepath.Join(t.TempDir(), "fg")
	require.NoError(t, os.MkdirAll(home, 0o755))
	cfg := config.Default()
	cfg.MavenRepository = srv.URL + "/maven2"
	cfg.ManifestBaseURL = srv.URL + "/descriptions"
	cfg.DefaultJava = os.Args[0]
	require.NoError(t, cfg.Save(filepath.Join(home, "config.yaml")))
	return home
}

func appArchive(t *testing.T, version string) string {
	t.Helper()
	src := t.TempDir()
	jar := "app-" + version + ".jar"
	manifest := `{"name":"fhir-guard","version":"` + version + `",` +
		`"dependencies":[{"groupId":"org.junit","artifactId":"junit","version":"4.13.2"}],` +
		`"runCommand":"java -jar ` + jar + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(src, "fgmanifest.json"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, jar), []byte("app"), 0o644))
	dst := filepath.Join(t.TempDir(), "app.tar.gz")
	require.NoError(t, archive.CreateFromDir(archive.FormatTarGz, src, dst))
	return dst
}

func TestInstallStartStopFlow(t *testing.T) {
	useFakes(t)
	home := seedHome(t)

	out, err := run(t, "--home", home, "--no-progress", "install", "1.0", "--archive", appArchive(t, "1.0"))
	require.NoError(t, err)
	require.Contains(t, out, "Installed fhir-guard 1.0")
	require.FileExists(t, filepath.Join(home, "versions", "1.0", "libs", "junit-4.13.2.jar"))
	require.FileExists(t, filepath.Join(home, "versions", "1.0", "app-1.0.jar"))

	out, err = run(t, "--home", home, "list")
	require.NoError(t, err)
	require.Contains(t, out, "VERSION")
	require.Contains(t, out, "fhir-guard")

	out, err = run(t, "--home", home, "--json", "start", "1.0")
	require.NoError(t, err)
	var started struct {
		PID     int    `json:"pid"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &started))
	require.Equal(t, "1.0", started.Version)
	require.Equal(t, 7001, started.PID)

	out, err = run(t, "--home", home, "status")
	require.NoError(t, err)
	require.Contains(t, out, "7001")
	require.Contains(t, out, "64.0")

	out, err = run(t, "--home", home, "logs", "7001", "-n", "1")
	require.NoError(t, err)
	require.Equal(t, "Started FhirGuardApplication\n", out)

	_, err = run(t, "--home", home, "uninstall", "1.0")
	require.True(t, failure.Is(err, failure.VersionInUse))
	require.Equal(t, 4, exitCode(err))

	out, err = run(t, "--home", home, "stop", "7001")
	require.NoError(t, err)
	require.Contains(t, out, "Stopped pid 7001")

	out, err = run(t, "--home", home, "stop", "7001")
	require.NoError(t, err)
	require.Contains(t, out, "No running instance")

	out, err = run(t, "--home", home, "status")
	require.NoError(t, err)
	require.Contains(t, out, "No running instances.")

	out, err = run(t, "--home", home, "uninstall", "1.0")
	require.NoError(t, err)
	require.Contains(t, out, "Uninstalled 1.0")
}

func TestInstallSkipsInstalledVersionUnlessForced(t *testing.T) {
	useFakes(t)
	home := seedHome(t)
	src := appArchive(t, "1.0")

	_, err := run(t, "--home", home, "--no-progress", "install", "1.0", "--archive", src)
	require.NoError(t, err)

	out, err := run(t, "--home", home, "--no-progress", "install", "1.0", "--archive", src)
	require.NoError(t, err)
	require.Equal(t, "Version 1.0 is already installed. Use --force to reinstall.\n", out)

	out, err = run(t, "--home", home, "--json", "install", "1.0", "--archive", src)
	require.NoError(t, err)
	var skipped installOutput
	require.NoError(t, json.Unmarshal([]byte(out), &skipped))
	require.True(t, skipped.Skipped)
	require.Nil(t, skipped.Installed)

	out, err = run(t, "--home", home, "--no-progress", "install", "1.0", "--archive", src, "--force")
	require.NoError(t, err)
	require.Contains(t, out, "Installed fhir-guard 1.0")
}

func TestUpdateInstallsNewestPublishedVersion(t *testing.T) {
	useFakes(t)
	home := seedHome(t)

	out, err := run(t, "--home", home, "--no-progress", "update")
	require.NoError(t, err)
	require.Contains(t, out, "Updating to 2.0")
	require.Contains(t, out, "Installed fhir-guard 2.0")
	require.FileExists(t, filepath.Join(home, "versions", "2.0", "app-2.0.jar"))

	out, err = run(t, "--home", home, "--no-progress", "update")
	require.NoError(t, err)
	require.Contains(t, out, "Version 2.0 is already installed")

	_, err = run(t, "--home", home, "--no-progress", "update", "1.0")
	require.True(t, failure.Is(err, failure.MissingManifest), "got %v", err)
}

func TestListRemoteAndAll(t *testing.T) {
	useFakes(t)
	home := seedHome(t)
	_, err := run(t, "--home", home, "--no-progress", "install", "1.0", "--archive", appArchive(t, "1.0"))
	require.NoError(t, err)
	_, err = run(t, "--home", home, "--no-progress", "install", "0.9", "--archive", appArchive(t, "0.9"))
	require.NoError(t, err)

	out, err := run(t, "--home", home, "list", "--remote")
	require.NoError(t, err)
	require.Contains(t, out, "DEPENDENCIES")
	require.Contains(t, out, "2.0 ")
	require.Contains(t, out, "latest")
	require.Contains(t, out, "2.0 MB")
	require.NotContains(t, out, "0.9")

	out, err = run(t, "--home", home, "--json", "list", "--all")
	require.NoError(t, err)
	var all []install.Release
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	var got []string
	for _, r := range all {
		got = append(got, r.Version)
	}
	require.Equal(t, []string{"2.0", "1.0", "0.9"}, got)
	require.True(t, all[0].IsLatest)
	require.False(t, all[0].Installed)
	require.True(t, all[1].Installed)
	require.True(t, all[2].Installed)

	out, err = run(t, "--home", home, "--json", "list", "--remote", "--latest")
	require.NoError(t, err)
	var latest []install.Release
	require.NoError(t, json.Unmarshal([]byte(out), &latest))
	require.Len(t, latest, 1)
	require.Equal(t, "2.0", latest[0].Version)

	out, err = run(t, "--home", home, "list", "--latest")
	require.NoError(t, err)
	require.Contains(t, out, "1.0")
	require.NotContains(t, out, "0.9")
}

func TestStartPassesExtraJVMArgs(t *testing.T) {
	launcher := useFakes(t)
	home := seedHome(t)
	_, err := run(t, "--home", home, "--no-progress", "install", "1.0", "--archive", appArchive(t, "1.0"))
	require.NoError(t, err)

	_, err = run(t, "--home", home, "start", "1.0", "--jvm-args", "-Xmx512m  -Dfg.mode=dev")
	require.NoError(t, err)
	require.Len(t, launcher.args, 1)
	args := launcher.args[0]
	require.Equal(t, []string{"-Xmx512m", "-Dfg.mode=dev", "-jar"}, args[:3])
	require.Equal(t, filepath.Join(home, "versions", "1.0", "app-1.0.jar"), args[3])
}

func TestStopAllByVersion(t *testing.T) {
	useFakes(t)
	home := seedHome(t)

	for _, v := range []string{"1.0", "2.0"} {
		_, err := run(t, "--home", home, "--no-progress", "install", v, "--archive", appArchive(t, v))
		require.NoError(t, err)
		_, err = run(t, "--home", home, "start", v)
		require.NoError(t, err)
	}

	out, err := run(t, "--home", home, "--json", "stop", "--all", "--version", "2.0")
	require.NoError(t, err)
	var res stopOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, []int{7002}, res.Stopped)

	out, err = run(t, "--home", home, "status")
	require.NoError(t, err)
	require.Contains(t, out, "7001")
	require.NotContains(t, out, "7002")
}

func TestUninstallUnknownVersionLeavesRootAlone(t *testing.T) {
	home := filepath.Join(t.TempDir(), "fg")

	out, err := run(t, "--home", home, "uninstall", "nonexistent")
	require.NoError(t, err)
	require.Contains(t, out, "not installed")
	require.NoDirExists(t, home)
}

func TestHomeFromEnvironmentAndFlagPrecedence(t *testing.T) {
	envHome := filepath.Join(t.TempDir(), "env-home")
	flagHome := filepath.Join(t.TempDir(), "flag-home")
	t.Setenv("FG_HOME", envHome)

	_, err := run(t, "config", "init")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(envHome, "config.yaml"))

	_, err = run(t, "--home", flagHome, "config", "init")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(flagHome, "config.yaml"))

	_, err = run(t, "config", "init")
	require.True(t, failure.Is(err, failure.InvalidArgument))

	_, err = run(t, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigShowPrintsDefaults(t *testing.T) {
	home := filepath.Join(t.TempDir(), "fg")

	out, err := run(t, "--home", home, "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, "maven_repository: https://repo1.maven.org/maven2")
	require.NoDirExists(t, home)
}

func TestArgumentErrors(t *testing.T) {
	home := filepath.Join(t.TempDir(), "fg")

	cases := [][]string{
		{"stop"},
		{"stop", "12", "--all"},
		{"stop", "abc"},
		{"stop", "12", "--version", "1.0"},
		{"logs", "abc"},
		{"start", "../x"},
		{"install", "a/b"},
	}
	for _, args := range cases {
		t.Run(strings.Join(args, "_"), func(t *testing.T) {
			_, err := run(t, append([]string{"--home", home}, args...)...)
			require.Error(t, err)
			require.Equal(t, 2, exitCode(err))
		})
	}
}

func TestLogsUnknownPID(t *testing.T) {
	home := filepath.Join(t.TempDir(), "fg")
	_, err := run(t, "--home", home, "logs", "31337")
	require.Error(t, err)
}

func TestDoctorJSON(t *testing.T) {
	prev := lookPath
	lookPath = func(string) (string, error) { return "/usr/bin/java", nil }
	t.Cleanup(func() { lookPath = prev })

	home := filepath.Join(t.TempDir(), "fg")
	out, err := run(t, "--home", home, "--json", "doctor")
	require.NoError(t, err)

	var checks []healthCheck
	require.NoError(t, json.Unmarshal([]byte(out), &checks))
	byName := map[string]healthCheck{}
	for _, c := range checks {
		byName[c.Name] = c
	}
	require.Equal(t, "warning", byName["Root"].Status)
	require.Equal(t, "ok", byName["Config"].Status)
	require.Equal(t, "ok", byName["Java"].Status)
	require.Equal(t, "ok", byName["Registry"].Status)
}

func TestDoctorFlagsCorruptRegistry(t *testing.T) {
	home := seedHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "processes.json"), []byte("{not json"), 0o644))

	out, err := run(t, "--home", home, "doctor")
	require.NoError(t, err)
	require.Contains(t, out, "FG HEALTH:")
	require.Contains(t, out, "Registry:")
	require.Contains(t, out, "ERROR")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Equal(t, "fg dev\n", out)
}
