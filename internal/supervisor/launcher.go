package supervisor

import (
	"os"
	"os/exec"
)

// LaunchOptions describes a detached child process.
type LaunchOptions struct {
	Dir    string
	Env    []string
	Output *os.File
}

// Launcher starts a process that keeps running after fg exits.
type Launcher interface {
	Launch(command string, args []string, opts LaunchOptions) (int, error)
}

// ExecLauncher starts children with os/exec in their own process group.
type ExecLauncher struct{}

// Launch starts command and returns its pid without waiting for it.
func (ExecLauncher) Launch(command string, args []string, opts LaunchOptions) (int, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if opts.Output != nil {
		cmd.Stdout = opts.Output
		cmd.Stderr = opts.Output
	}
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Reap the child if it exits while this process is still alive.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

var _ Launcher = ExecLauncher{}
