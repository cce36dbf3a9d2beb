// Package process supervises the app server subprocess: launch, crash
// detection, graceful stop, and restart when the binary changed.
package process

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/loom-dev/loom/internal/errors"
	"github.com/loom-dev/loom/internal/metrics"
)

// State is the supervisor's view of the subprocess.
type State int

const (
	// Stopped means no subprocess exists, whether never started, stopped
	// on request, or exited on its own.
	Stopped State = iota

	// Running means the subprocess is alive.
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// ExitEvent reports a subprocess exit the supervisor did not ask for.
type ExitEvent struct {
	// Err carries the process error code and exit diagnostics.
	Err error

	// Time is when the exit was observed.
	Time time.Time
}

// Supervisor owns at most one server subprocess. All methods are safe for
// concurrent use; the supervisor never relaunches on its own.
type Supervisor struct {
	// Dir is the working directory for the subprocess.
	Dir string

	// Env is extra environment for the subprocess, appended to the
	// parent's environment.
	Env []string

	// Grace is how long a stopped process gets between the termination
	// request and the hard kill.
	Grace time.Duration

	mu         sync.Mutex
	handle     *handle
	binaryHash string
	stopping   bool

	exits chan ExitEvent
}

// NewSupervisor creates a supervisor. grace bounds the stop wait.
func NewSupervisor(dir string, env []string, grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Supervisor{
		Dir:   dir,
		Env:   env,
		Grace: grace,
		exits: make(chan ExitEvent, 4),
	}
}

// Exits returns the channel unexpected subprocess exits are reported on.
// The supervisor does not relaunch; reacting is the caller's decision.
func (s *Supervisor) Exits() <-chan ExitEvent {
	return s.exits
}

// State returns the current subprocess state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return Running
	}
	return Stopped
}

// Start launches binary. Any running subprocess is stopped first. The
// binary must exist and be executable; a launch failure leaves the
// supervisor Stopped.
func (s *Supervisor) Start(ctx context.Context, binary, binaryHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.stopLocked()
	}

	if fi, err := os.Stat(binary); err != nil {
		return errors.New("E401").
			WithDetail("missing binary " + binary).
			Wrap(err)
	} else if !executable(fi, runtime.GOOS) {
		return errors.New("E401").
			WithDetail(binary + " is not executable")
	}

	h, err := start(ctx, binary, s.Dir, append(os.Environ(), s.Env...))
	if err != nil {
		return errors.New("E401").Wrap(err)
	}

	s.handle = h
	s.binaryHash = binaryHash
	s.stopping = false
	slog.Info("server started", "binary", binary, "pid", h.pid())

	go s.watch(h)
	return nil
}

// executable reports whether fi can be launched on goos. Windows file
// modes carry no execute bits, so the permission check only applies
// elsewhere.
func executable(fi os.FileInfo, goos string) bool {
	if goos == "windows" {
		return true
	}
	return fi.Mode().Perm()&0111 != 0
}

// watch flags an exit the supervisor did not request.
func (s *Supervisor) watch(h *handle) {
	err := h.wait()

	s.mu.Lock()
	requested := s.stopping || s.handle != h
	if s.handle == h {
		s.handle = nil
	}
	s.mu.Unlock()

	if requested {
		return
	}

	ev := ExitEvent{
		Err:  errors.New("E402").Wrap(err),
		Time: time.Now(),
	}
	slog.Error("server exited unexpectedly", "error", err)
	select {
	case s.exits <- ev:
	default:
	}
}

// Stop terminates the subprocess, waiting up to Grace for a clean exit
// before killing the process group. A Stopped supervisor is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	if s.handle == nil {
		return
	}
	s.stopping = true
	stop(s.handle, s.Grace)
	s.handle = nil
	s.binaryHash = ""
	slog.Info("server stopped")
}

// RestartIfChanged restarts the subprocess when binaryHash differs from the
// hash it was started with, or when no subprocess is running (covering a
// crash between builds). A running process on an unchanged binary is left
// alone.
func (s *Supervisor) RestartIfChanged(ctx context.Context, binary, binaryHash string) error {
	s.mu.Lock()
	unchanged := s.handle != nil && s.binaryHash == binaryHash
	s.mu.Unlock()

	if unchanged {
		return nil
	}

	metrics.ServerRestarts.Inc()
	return s.Start(ctx, binary, binaryHash)
}
