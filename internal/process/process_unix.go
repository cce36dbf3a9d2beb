//go:build !windows

package process

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

type handle struct {
	cmd      *exec.Cmd
	waitOnce func() error
}

// start launches binary in its own process group so children die with it.
func start(ctx context.Context, binary, dir string, env []string) (*handle, error) {
	cmd := exec.CommandContext(ctx, binary)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	// Context cancellation asks the group to exit cleanly; the hard kill
	// belongs to stop's grace path.
	cmd.Cancel = func() error {
		if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
			return syscall.Kill(-pgid, syscall.SIGTERM)
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &handle{cmd: cmd}
	var once sync.Once
	var waitErr error
	h.waitOnce = func() error {
		once.Do(func() { waitErr = cmd.Wait() })
		return waitErr
	}
	return h, nil
}

func (h *handle) pid() int {
	return h.cmd.Process.Pid
}

func (h *handle) wait() error {
	return h.waitOnce()
}

// stop signals the process group for a clean exit, then kills it after the
// grace period.
func stop(h *handle, grace time.Duration) {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return
	}

	pgid, err := syscall.Getpgid(h.cmd.Process.Pid)
	if err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan struct{})
	go func() {
		h.waitOnce()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		if pgid > 0 {
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			_ = h.cmd.Process.Kill()
		}
		<-done
	}
}
