package launch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"litmusrt/internal/rt"
)

// fakeKernel records the calls of the launch protocol.
type fakeKernel struct {
	mu         sync.Mutex
	paramsErr  error
	prepareErr error
	params     map[int]rt.Params
	prepared   []int
	forgotten  []int
}

func newFakeKernel() *fakeKernel { return &fakeKernel{params: make(map[int]rt.Params)} }

func (k *fakeKernel) SetTaskParams(pid int, p rt.Params) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.paramsErr != nil {
		return k.paramsErr
	}
	k.params[pid] = p
	return nil
}

func (k *fakeKernel) TaskParams(pid int) (rt.Params, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.params[pid], nil
}

func (k *fakeKernel) PrepareTask(pid int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.prepareErr != nil {
		return k.prepareErr
	}
	k.prepared = append(k.prepared, pid)
	return nil
}

func (k *fakeKernel) Forget(pid int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.params, pid)
	k.forgotten = append(k.forgotten, pid)
}

func (k *fakeKernel) wasForgotten(pid int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, id := range k.forgotten {
		if id == pid {
			return true
		}
	}
	return false
}

type failingSpawner struct{ err error }

func (s failingSpawner) Spawn(Task) (Child, error) { return nil, s.err }

// markers is an ordered log shared by the controller and the task.
type markers struct {
	mu  sync.Mutex
	log []string
}

func (m *markers) add(s string) {
	m.mu.Lock()
	m.log = append(m.log, s)
	m.mu.Unlock()
}

func (m *markers) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

func TestConfigurePrecedesTaskStart(t *testing.T) {
	for i := 0; i < 200; i++ {
		m := &markers{}
		ws := NewWorkers(0)
		l := New(newFakeKernel(), ws)

		task := Task{Name: "mark", Body: func(ctx context.Context, arg string) int {
			m.add("start")
			return 0
		}}
		h, err := l.Launch(task, func(id int) error {
			// give a misbehaving task every chance to run first
			time.Sleep(50 * time.Microsecond)
			m.add("configured")
			return nil
		})
		if err != nil {
			t.Fatalf("Launch() = %v", err)
		}
		if _, err := h.Wait(); err != nil {
			t.Fatal(err)
		}
		got := m.snapshot()
		if len(got) != 2 || got[0] != "configured" || got[1] != "start" {
			t.Fatalf("iteration %d: markers = %v", i, got)
		}
	}
}

func TestLaunchReturnsExitStatusAndID(t *testing.T) {
	k := newFakeKernel()
	ws := NewWorkers(100)
	l := New(k, ws)

	var seen int
	task := Task{Name: "id", Arg: "x", Body: func(ctx context.Context, arg string) int {
		seen = TaskID(ctx)
		if arg != "x" {
			return 99
		}
		return 7
	}}
	p := rt.Params{ExecCost: time.Millisecond, Period: 10 * time.Millisecond, Class: rt.ClassSoft}
	h, err := l.CreateTask(task, p)
	if err != nil {
		t.Fatal(err)
	}
	status, err := h.Wait()
	if err != nil || status != 7 {
		t.Fatalf("Wait() = %d, %v; want 7", status, err)
	}
	if h.ID != 101 || seen != h.ID {
		t.Errorf("handle id %d, task saw %d", h.ID, seen)
	}
	if got, _ := k.TaskParams(h.ID); got != p {
		t.Errorf("kernel params = %+v, want %+v", got, p)
	}
	if len(k.prepared) != 1 || k.prepared[0] != h.ID {
		t.Errorf("prepared = %v", k.prepared)
	}
}

func TestLaunchFailures(t *testing.T) {
	cause := errors.New("EINVAL")
	tests := []struct {
		name      string
		configure error
		prepare   error
		kind      error
	}{
		{"configuration", cause, nil, rt.ErrConfigurationFailed},
		{"preparation", nil, cause, rt.ErrPreparationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newFakeKernel()
			k.prepareErr = tt.prepare
			ws := NewWorkers(0)
			l := New(k, ws)

			ran := make(chan struct{}, 1)
			task := Task{Name: "never", Body: func(context.Context, string) int {
				ran <- struct{}{}
				return 0
			}}
			var created int
			h, err := l.Launch(task, func(id int) error {
				created = id
				if !ws.Alive(id) {
					t.Errorf("task %d not alive while configuring", id)
				}
				return tt.configure
			})
			if h != nil {
				t.Fatalf("got handle %+v on failure", h)
			}
			if !errors.Is(err, tt.kind) || !errors.Is(err, cause) {
				t.Fatalf("Launch() error = %v, want %v wrapping %v", err, tt.kind, cause)
			}
			var le *rt.LaunchError
			if !errors.As(err, &le) || !le.Created() || le.ID != created {
				t.Errorf("LaunchError = %+v", le)
			}
			if ws.Alive(created) {
				t.Errorf("task %d still exists after failed launch", created)
			}
			if !k.wasForgotten(created) {
				t.Errorf("kernel not told to forget task %d", created)
			}
			select {
			case <-ran:
				t.Error("body of a failed launch ran")
			case <-time.After(20 * time.Millisecond):
			}
		})
	}
}

func TestDuplicationFailure(t *testing.T) {
	cause := errors.New("EAGAIN")
	l := New(newFakeKernel(), failingSpawner{cause})
	configured := false
	_, err := l.Launch(Task{Name: "x"}, func(int) error {
		configured = true
		return nil
	})
	if !errors.Is(err, rt.ErrDuplicationFailed) || !errors.Is(err, cause) {
		t.Fatalf("Launch() error = %v", err)
	}
	var le *rt.LaunchError
	if errors.As(err, &le) && le.Created() {
		t.Error("duplication failure reports a created task")
	}
	if configured {
		t.Error("configure ran without a task")
	}
}

func TestWorkerStates(t *testing.T) {
	ws := NewWorkers(0)
	c, err := ws.Spawn(Task{Body: func(context.Context, string) int { return 3 }})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Kill(); err != nil {
		t.Fatal(err)
	}
	if err := c.Release(); !errors.Is(err, ErrNotParked) {
		t.Errorf("Release after Kill = %v", err)
	}
	if _, err := c.Wait(); !errors.Is(err, ErrKilled) {
		t.Errorf("Wait after Kill = %v", err)
	}

	if _, err := ws.Spawn(Task{}); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("Spawn without body = %v", err)
	}
}

func TestKillReleasedWorker(t *testing.T) {
	k := newFakeKernel()
	ws := NewWorkers(0)
	l := New(k, ws)

	started := make(chan struct{})
	task := Task{Name: "block", Body: func(ctx context.Context, arg string) int {
		close(started)
		<-ctx.Done()
		return 9
	}}
	h, err := l.Launch(task, func(int) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	<-started
	if !ws.Alive(h.ID) {
		t.Fatalf("task %d not alive while running", h.ID)
	}
	if err := h.Kill(); err != nil {
		t.Fatalf("Kill() = %v", err)
	}
	if ws.Alive(h.ID) {
		t.Errorf("task %d still alive after Kill returned", h.ID)
	}
	if !k.wasForgotten(h.ID) {
		t.Errorf("kernel not told to forget killed task %d", h.ID)
	}
	if status, err := h.Wait(); err != nil || status != 9 {
		t.Errorf("Wait() = %d, %v; want 9", status, err)
	}
}
