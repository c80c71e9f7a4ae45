// Package supervise tracks a single long-running mux server daemon: start,
// stop, restart, liveness queries, and boot-time activation. Liveness is
// derived from two sources that are individually best-effort: a pid marker
// file and a process-table scan by binary name. A marker pointing at a dead
// process is authoritative evidence of "not running" and is cleared on the
// next query, never surfaced as an error.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rgoodwin/muxgate/config"
)

// Handle reports the supervised daemon's liveness.
type Handle struct {
	Running bool `json:"running"`
	PID     int  `json:"pid,omitempty"`
}

// Supervisor manages the external mux server binary.
type Supervisor struct {
	bin        string
	pidPath    string
	logPath    string
	bootScript string
	cfg        *config.Store

	runner Runner
	procs  ProcessTable
	logger *slog.Logger

	stopTimeout  time.Duration
	killGrace    time.Duration
	startWindow  time.Duration
	pollInterval time.Duration
	settleDelay  time.Duration
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithRunner substitutes the daemon launcher, for tests.
func WithRunner(r Runner) Option {
	return func(s *Supervisor) { s.runner = r }
}

// WithProcessTable substitutes the process table, for tests.
func WithProcessTable(p ProcessTable) Option {
	return func(s *Supervisor) { s.procs = p }
}

// WithLogger sets the structured logger for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithStopTimeout bounds the graceful-stop wait before escalating to a kill.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.stopTimeout = d }
}

// WithTimings tightens the poll/settle intervals, for tests.
func WithTimings(startWindow, pollInterval, settleDelay, killGrace time.Duration) Option {
	return func(s *Supervisor) {
		s.startWindow = startWindow
		s.pollInterval = pollInterval
		s.settleDelay = settleDelay
		s.killGrace = killGrace
	}
}

// New returns a Supervisor for the binary at bin, keeping its liveness marker
// at pidPath and its output at logPath. bootScript is the boot-time script
// SetAutostart edits.
func New(bin, pidPath, logPath, bootScript string, cfg *config.Store, opts ...Option) *Supervisor {
	s := &Supervisor{
		bin:          bin,
		pidPath:      pidPath,
		logPath:      logPath,
		bootScript:   bootScript,
		cfg:          cfg,
		runner:       execRunner{},
		procs:        psTable{},
		logger:       slog.Default(),
		stopTimeout:  10 * time.Second,
		killGrace:    2 * time.Second,
		startWindow:  3 * time.Second,
		pollInterval: 200 * time.Millisecond,
		settleDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status derives liveness from the marker first, falling back to a
// process-table scan by binary name. Stale markers are cleared.
func (s *Supervisor) Status() Handle {
	if pid, ok := s.readMarker(); ok {
		if s.procs.Alive(pid) {
			return Handle{Running: true, PID: pid}
		}
		// Self-heal: the marker outlived its process.
		os.Remove(s.pidPath)
	}
	if pid, found := s.procs.FindByName(filepath.Base(s.bin)); found {
		return Handle{Running: true, PID: pid}
	}
	return Handle{}
}

// Start launches the daemon if it is not already running. A second Start is
// a no-op success returning the current handle.
func (s *Supervisor) Start(ctx context.Context) (Handle, error) {
	if h := s.Status(); h.Running {
		return h, nil
	}

	fi, err := os.Stat(s.bin)
	if err != nil || fi.IsDir() || fi.Mode()&0o111 == 0 {
		return Handle{}, fmt.Errorf("%w: %s", ErrBinaryMissing, s.bin)
	}

	// The daemon refuses to start without its configuration file; generate
	// a safe default when absent.
	if err := s.cfg.EnsureDerived(ctx); err != nil {
		return Handle{}, fmt.Errorf("preparing daemon configuration: %w", err)
	}

	pid, err := s.runner.StartDaemon(ctx, s.bin, []string{"--config", s.cfg.LuaPath()}, s.logPath)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	deadline := time.Now().Add(s.startWindow)
	for !s.procs.Alive(pid) {
		if time.Now().After(deadline) {
			return Handle{}, fmt.Errorf("%w: no process after %s: %s", ErrStartFailed, s.startWindow, s.capturedOutput())
		}
		select {
		case <-ctx.Done():
			return Handle{}, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}

	if err := s.writeMarker(pid); err != nil {
		s.logger.Warn("liveness marker not written", "error", err)
	}
	s.logger.Info("server started", "pid", pid)
	return Handle{Running: true, PID: pid}, nil
}

// Stop terminates the daemon, escalating from a graceful signal to a kill
// when the stop timeout elapses. Stopping an already-stopped daemon is a
// no-op success.
func (s *Supervisor) Stop(ctx context.Context) error {
	h := s.Status()
	if !h.Running {
		return nil
	}

	if err := s.procs.Terminate(h.PID); err != nil {
		s.logger.Warn("graceful signal failed", "pid", h.PID, "error", err)
	}

	graceful, cancel := context.WithTimeout(ctx, s.stopTimeout)
	defer cancel()
	if s.waitGone(graceful, h.PID) {
		os.Remove(s.pidPath)
		s.logger.Info("server stopped", "pid", h.PID)
		return nil
	}

	// Escalate.
	s.logger.Warn("graceful stop timed out, killing", "pid", h.PID)
	if err := s.procs.Kill(h.PID); err != nil {
		s.logger.Warn("kill signal failed", "pid", h.PID, "error", err)
	}
	forceful, cancel := context.WithTimeout(ctx, s.killGrace)
	defer cancel()
	if s.waitGone(forceful, h.PID) {
		os.Remove(s.pidPath)
		s.logger.Info("server killed", "pid", h.PID)
		return nil
	}
	return fmt.Errorf("%w: pid %d survived SIGKILL", ErrStopFailed, h.PID)
}

// Restart stops then starts the daemon, with a settling delay between,
// surfacing whichever sub-step failed first.
func (s *Supervisor) Restart(ctx context.Context) (Handle, error) {
	if err := s.Stop(ctx); err != nil {
		return Handle{}, err
	}
	select {
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	case <-time.After(s.settleDelay):
	}
	return s.Start(ctx)
}

// SetAutostart idempotently adds or removes the boot-time start invocation
// and mirrors the flag into the configuration store.
func (s *Supervisor) SetAutostart(ctx context.Context, enabled bool) error {
	line := fmt.Sprintf("%s --config %s >> %s 2>&1 &", s.bin, s.cfg.LuaPath(), s.logPath)
	if err := ensureBootLine(s.bootScript, line, enabled); err != nil {
		return fmt.Errorf("updating boot script: %w", err)
	}
	settings := s.cfg.Read()
	if settings.Service == enabled {
		return nil
	}
	settings.Service = enabled
	if err := s.cfg.Save(ctx, settings); err != nil {
		var verr *config.ValidationError
		// Stored settings predate this save; a validation failure here means
		// the store itself holds an invalid field and must not block the
		// boot-script change that already happened.
		if errors.As(err, &verr) {
			s.logger.Warn("autostart flag not mirrored", "error", err)
			return nil
		}
		return err
	}
	return nil
}

// waitGone polls until the process disappears or ctx is done, reporting
// whether it is gone.
func (s *Supervisor) waitGone(ctx context.Context, pid int) bool {
	for {
		if !s.procs.Alive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !s.procs.Alive(pid)
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *Supervisor) readMarker() (int, bool) {
	data, err := os.ReadFile(s.pidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Corrupt marker; treat as absent.
		os.Remove(s.pidPath)
		return 0, false
	}
	return pid, true
}

func (s *Supervisor) writeMarker(pid int) error {
	if err := os.MkdirAll(filepath.Dir(s.pidPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.pidPath, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// capturedOutput returns the tail of the daemon log for diagnostics.
func (s *Supervisor) capturedOutput() string {
	data, err := os.ReadFile(s.logPath)
	if err != nil {
		return "(no output captured)"
	}
	const tail = 2048
	if len(data) > tail {
		data = data[len(data)-tail:]
	}
	return strings.TrimSpace(string(data))
}
