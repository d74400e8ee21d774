package launch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// Processes spawns every task as a new process running the current
// executable. The child is traced from birth, so the kernel stops it at its
// first instruction with a trap the tracer consumes; the child never sees a
// stop signal and runs nothing until it is detached.
//
// Spawn, Release and Kill of one child must happen on the same goroutine,
// which Launcher does. The goroutine stays locked to its thread in between.
type Processes struct {
	Path   string // executable, defaults to /proc/self/exe
	Stdout io.Writer
	Stderr io.Writer
}

type process struct {
	cmd    *exec.Cmd
	pid    int
	parked bool
}

// Spawn starts t in a new, parked process.
func (p *Processes) Spawn(t Task) (Child, error) {
	if _, ok := lookup(t.Name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBody, t.Name)
	}
	path := p.Path
	if path == "" {
		path = "/proc/self/exe"
	}

	cmd := exec.Command(path)
	cmd.Args = []string{os.Args[0]}
	cmd.Env = append(os.Environ(), envTask+"="+t.Name, envArg+"="+t.Arg)
	cmd.Stdout, cmd.Stderr = p.Stdout, p.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	// ptrace requests are only accepted from the thread that created the
	// tracee.
	runtime.LockOSThread()
	if err := cmd.Start(); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	pid := cmd.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, unix.WALL, nil); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("wait for parked task %d: %w", pid, err)
	}
	if !ws.Stopped() {
		_ = cmd.Wait()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("task %d did not park (status %#x)", pid, uint32(ws))
	}
	return &process{cmd: cmd, pid: pid, parked: true}, nil
}

func (c *process) ID() int { return c.pid }

func (c *process) Release() error {
	if !c.parked {
		return ErrNotParked
	}
	err := unix.PtraceDetach(c.pid)
	if err != nil {
		return err
	}
	c.parked = false
	runtime.UnlockOSThread()
	return nil
}

func (c *process) Kill() error {
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	_ = c.cmd.Wait()
	if c.parked {
		c.parked = false
		runtime.UnlockOSThread()
	}
	return nil
}

func (c *process) Wait() (int, error) {
	err := c.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return exit.ExitCode(), nil
	}
	return -1, err
}
