package supervise

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
)

// Runner launches the supervised daemon. Abstracted so tests can supervise a
// fake process instead of spawning one.
type Runner interface {
	// StartDaemon launches bin detached from the caller, with stdout and
	// stderr appended to logPath, and returns the process ID.
	StartDaemon(ctx context.Context, bin string, args []string, logPath string) (pid int, err error)
}

// ProcessTable answers liveness questions and delivers signals. The real
// implementation is backed by gopsutil; tests substitute a fake.
type ProcessTable interface {
	// Alive reports whether a process with the given pid exists.
	Alive(pid int) bool

	// FindByName scans the process table for a process whose executable
	// name matches, returning its pid. This is the fallback when the
	// liveness marker is absent or stale.
	FindByName(name string) (pid int, found bool)

	// Terminate sends the graceful termination signal.
	Terminate(pid int) error

	// Kill sends the forceful kill signal.
	Kill(pid int) error
}

// execRunner launches real processes in their own session.
type execRunner struct{}

var _ Runner = execRunner{}

func (execRunner) StartDaemon(ctx context.Context, bin string, args []string, logPath string) (int, error) {
	logf, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening log file: %w", err)
	}
	defer logf.Close()

	cmd := exec.Command(bin, args...)
	cmd.Stdout = logf
	cmd.Stderr = logf
	// New session so the daemon survives the supervisor and never holds the
	// controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid

	// Reap the child when it exits so it never lingers as a zombie.
	go func() { _ = cmd.Wait() }()

	return pid, nil
}

// psTable is the gopsutil-backed ProcessTable.
type psTable struct{}

var _ ProcessTable = psTable{}

func (psTable) Alive(pid int) bool {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	return err == nil && running
}

func (psTable) FindByName(name string) (int, bool) {
	procs, err := process.Processes()
	if err != nil {
		return 0, false
	}
	for _, p := range procs {
		n, err := p.Name()
		if err == nil && n == name {
			return int(p.Pid), true
		}
	}
	return 0, false
}

func (psTable) Terminate(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Terminate()
}

func (psTable) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}
