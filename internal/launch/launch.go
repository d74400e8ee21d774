// Package launch turns a function and a set of real-time parameters into a
// running real-time task, or into nothing at all.
//
// A launch creates the task parked, configures it while it cannot run,
// asks the kernel to prepare it and only then lets it go. Any failure after
// the task exists kills it before the error is returned.
package launch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"litmusrt/internal/kernel"
	"litmusrt/internal/metrics"
	"litmusrt/internal/rt"
)

// Body is the code a launched task runs. Its return value becomes the
// task's exit status.
type Body func(ctx context.Context, arg string) int

// Task names a body and the argument it is started with. Name selects the
// registered body when the task runs in a separate process.
type Task struct {
	Name string
	Body Body
	Arg  string
}

// ConfigureFunc applies real-time parameters to the parked task id.
type ConfigureFunc func(id int) error

// Child is a task created by a Spawner. It starts parked: it runs no code
// of its own until Release.
type Child interface {
	ID() int
	// Release lets a parked child run.
	Release() error
	// Kill terminates the child forcefully and reaps it. Once Kill
	// returns the child no longer exists.
	Kill() error
	// Wait blocks until the child terminated and returns its exit status.
	Wait() (int, error)
}

// Spawner creates parked children.
type Spawner interface {
	Spawn(t Task) (Child, error)
}

// Forgetter is implemented by kernels that keep a record of every task
// they configured. Forget is called once a task no longer exists.
type Forgetter interface {
	Forget(id int)
}

// Launcher runs the launch protocol against one kernel.
type Launcher struct {
	kernel  kernel.TaskControl
	spawner Spawner
}

// New returns a launcher that configures tasks through k and creates them
// with sp.
func New(k kernel.TaskControl, sp Spawner) *Launcher {
	return &Launcher{kernel: k, spawner: sp}
}

// Handle refers to a successfully launched task.
type Handle struct {
	ID       int
	LaunchID uuid.UUID
	Started  time.Time

	child  Child
	forget func(id int)
}

// Wait blocks until the task exits and returns its exit status.
func (h *Handle) Wait() (int, error) {
	status, err := h.child.Wait()
	if err == nil {
		h.forget(h.ID)
		metrics.TaskExits.WithLabelValues(exitLabel(status)).Inc()
	}
	return status, err
}

// Kill terminates the task and returns once it no longer exists. A task
// running as a worker goroutine sees its context cancelled and is waited
// for, so its body must honour ctx.
func (h *Handle) Kill() error {
	if err := h.child.Kill(); err != nil {
		return err
	}
	h.forget(h.ID)
	return nil
}

// Launch creates t parked, hands its id to configure, prepares it with the
// kernel and releases it. The returned error is a *rt.LaunchError whose
// kind tells whether a task had been created at all. There are no retries.
func (l *Launcher) Launch(t Task, configure ConfigureFunc) (*Handle, error) {
	child, err := l.spawner.Spawn(t)
	if err != nil {
		metrics.Launches.WithLabelValues(metrics.OutcomeDuplicationFailed).Inc()
		return nil, &rt.LaunchError{Kind: rt.ErrDuplicationFailed, Err: err}
	}

	id := child.ID()
	if err := configure(id); err != nil {
		metrics.Launches.WithLabelValues(metrics.OutcomeConfigurationFailed).Inc()
		return nil, l.abort(child, rt.ErrConfigurationFailed, err)
	}
	if err := l.kernel.PrepareTask(id); err != nil {
		metrics.Launches.WithLabelValues(metrics.OutcomePreparationFailed).Inc()
		return nil, l.abort(child, rt.ErrPreparationFailed, err)
	}
	if err := child.Release(); err != nil {
		metrics.Launches.WithLabelValues(metrics.OutcomePreparationFailed).Inc()
		return nil, l.abort(child, rt.ErrPreparationFailed, err)
	}

	metrics.Launches.WithLabelValues(metrics.OutcomeOK).Inc()
	return &Handle{
		ID:       id,
		LaunchID: uuid.New(),
		Started:  time.Now(),
		child:    child,
		forget:   l.forget,
	}, nil
}

// CreateTask launches t with p applied through the kernel.
func (l *Launcher) CreateTask(t Task, p rt.Params) (*Handle, error) {
	return l.Launch(t, func(id int) error {
		return l.kernel.SetTaskParams(id, p)
	})
}

// CreateHardTask is CreateTask for the common hard real-time case.
func (l *Launcher) CreateHardTask(t Task, cpu int, cost, period time.Duration) (*Handle, error) {
	return l.CreateTask(t, rt.Params{ExecCost: cost, Period: period, CPU: cpu, Class: rt.ClassHard})
}

// abort kills a child that cannot become real-time. A task the caller
// believes to be real-time must never run best-effort instead.
func (l *Launcher) abort(child Child, kind, cause error) error {
	if err := child.Kill(); err != nil {
		cause = errors.Join(cause, err)
	} else {
		l.forget(child.ID())
	}
	return &rt.LaunchError{Kind: kind, ID: child.ID(), Err: cause}
}

func (l *Launcher) forget(id int) {
	if f, ok := l.kernel.(Forgetter); ok {
		f.Forget(id)
	}
}

func exitLabel(status int) string {
	switch {
	case status == 0:
		return "0"
	case status < 0:
		return "signaled"
	default:
		return "nonzero"
	}
}
