//go:build windows

package process

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

type handle struct {
	cmd      *exec.Cmd
	job      windows.Handle
	waitOnce func() error
}

// start launches binary inside a job object so children die with it.
func start(ctx context.Context, binary, dir string, env []string) (*handle, error) {
	job, err := createJobObject()
	if err != nil {
		job = 0
	}

	cmd := exec.CommandContext(ctx, binary)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}

	if err := cmd.Start(); err != nil {
		if job != 0 {
			windows.CloseHandle(job)
		}
		return nil, err
	}

	if job != 0 {
		if err := assignProcessToJob(job, cmd.Process.Pid); err != nil {
			windows.CloseHandle(job)
			job = 0
		}
	}

	h := &handle{cmd: cmd, job: job}
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

func stop(h *handle, grace time.Duration) {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return
	}

	if h.job != 0 {
		windows.CloseHandle(h.job)
		h.job = 0
	} else {
		_ = h.cmd.Process.Kill()
	}

	done := make(chan struct{})
	go func() {
		h.waitOnce()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		_ = h.cmd.Process.Kill()
		<-done
	}
}

func createJobObject() (windows.Handle, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0, err
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{}
	info.BasicLimitInformation.LimitFlags = windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
	_, err = windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err != nil {
		windows.CloseHandle(job)
		return 0, err
	}

	return job, nil
}

func assignProcessToJob(job windows.Handle, pid int) error {
	handle, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)

	return windows.AssignProcessToJobObject(job, handle)
}
