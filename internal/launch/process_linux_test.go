package launch

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"litmusrt/internal/rt"
)

// The test binary doubles as the task executable.
func TestMain(m *testing.M) {
	Register("exit-with-arg", func(_ context.Context, arg string) int {
		n, _ := strconv.Atoi(arg)
		return n
	})
	Main()
	os.Exit(m.Run())
}

func requireE2E(t *testing.T) {
	t.Helper()
	if os.Getenv("LITMUSRT_E2E") != "1" {
		t.Skip("set LITMUSRT_E2E=1 to spawn parked processes")
	}
}

func gone(pid int) bool {
	return errors.Is(unix.Kill(pid, 0), unix.ESRCH)
}

func TestProcessLaunch(t *testing.T) {
	requireE2E(t)
	l := New(newFakeKernel(), &Processes{})
	h, err := l.Launch(Task{Name: "exit-with-arg", Arg: "5"}, func(int) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	status, err := h.Wait()
	if err != nil || status != 5 {
		t.Fatalf("Wait() = %d, %v; want 5", status, err)
	}
}

func TestProcessKilledOnConfigurationFailure(t *testing.T) {
	requireE2E(t)
	l := New(newFakeKernel(), &Processes{})
	var pid int
	_, err := l.Launch(Task{Name: "exit-with-arg", Arg: "0"}, func(id int) error {
		pid = id
		return errors.New("refused")
	})
	if !errors.Is(err, rt.ErrConfigurationFailed) {
		t.Fatalf("Launch() error = %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !gone(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("task %d still exists", pid)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestProcessKilledOnPreparationFailure(t *testing.T) {
	requireE2E(t)
	k := newFakeKernel()
	k.prepareErr = unix.EINVAL
	l := New(k, &Processes{})
	var pid int
	_, err := l.Launch(Task{Name: "exit-with-arg", Arg: "0"}, func(id int) error {
		pid = id
		return nil
	})
	if !errors.Is(err, rt.ErrPreparationFailed) || !errors.Is(err, unix.EINVAL) {
		t.Fatalf("Launch() error = %v", err)
	}
	if pid <= 0 {
		t.Fatalf("configure saw pid %d", pid)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !gone(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("task %d still exists", pid)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !k.wasForgotten(pid) {
		t.Errorf("kernel not told to forget task %d", pid)
	}
}

func TestProcessUnknownBody(t *testing.T) {
	l := New(newFakeKernel(), &Processes{})
	_, err := l.Launch(Task{Name: "nope"}, func(int) error { return nil })
	if !errors.Is(err, rt.ErrDuplicationFailed) || !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("Launch() error = %v", err)
	}
}
