package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo is a point-in-time view of an OS process.
type ProcessInfo struct {
	Running    bool
	CPUPercent float64
	RSSBytes   uint64
	CreatedAt  time.Time
}

// ProcessTable queries and signals OS processes.
type ProcessTable interface {
	Inspect(ctx context.Context, pid int) (ProcessInfo, error)
	Terminate(ctx context.Context, pid int) error
	Kill(ctx context.Context, pid int) error
}

// SystemProcesses implements ProcessTable with gopsutil.
type SystemProcesses struct{}

var _ ProcessTable = SystemProcesses{}

func lookup(ctx context.Context, pid int) (*process.Process, bool, error) {
	if pid <= 0 {
		return nil, false, nil
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup pid %d: %w", pid, err)
	}
	running, err := p.IsRunningWithContext(ctx)
	if err != nil || !running {
		return nil, false, nil
	}
	if status, err := p.StatusWithContext(ctx); err == nil {
		for _, s := range status {
			if s == process.Zombie {
				return nil, false, nil
			}
		}
	}
	return p, true, nil
}

// Inspect reports liveness and resource usage. Metrics that cannot be read
// are left zero.
func (SystemProcesses) Inspect(ctx context.Context, pid int) (ProcessInfo, error) {
	p, ok, err := lookup(ctx, pid)
	if err != nil || !ok {
		return ProcessInfo{}, err
	}
	info := ProcessInfo{Running: true}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		info.CreatedAt = time.UnixMilli(created)
	}
	return info, nil
}

// Terminate asks the process to exit.
func (SystemProcesses) Terminate(ctx context.Context, pid int) error {
	p, ok, err := lookup(ctx, pid)
	if err != nil || !ok {
		return err
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}
	return nil
}

// Kill forcibly ends the process.
func (SystemProcesses) Kill(ctx context.Context, pid int) error {
	p, ok, err := lookup(ctx, pid)
	if err != nil || !ok {
		return err
	}
	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}
