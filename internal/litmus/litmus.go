// Package litmus bootstraps a process for real-time operation.
package litmus

import (
	"fmt"

	"golang.org/x/sys/unix"

	"litmusrt/internal/kernel"
	"litmusrt/internal/metrics"
	"litmusrt/internal/np"
	"litmusrt/internal/rt"
	"litmusrt/internal/shutdown"
)

// Options control Init.
type Options struct {
	// LockMemory pins all current and future pages of the process.
	LockMemory bool
}

// Runtime is the per-task state set up by Init.
type Runtime struct {
	section *np.Section
}

// Init pins memory, registers a fresh non-preemption flag with k and routes
// termination signals to the shutdown flag. Any failure leaves the task
// without real-time guarantees and must be treated as fatal: task bodies
// exit with a non-zero status instead of running best-effort.
func Init(k kernel.NonPreemption, opts Options) (*Runtime, error) {
	if opts.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			return nil, fmt.Errorf("mlockall: %w", err)
		}
	}

	flag := rt.NewNPFlag()
	if err := k.RegisterNPFlag(flag); err != nil {
		return nil, fmt.Errorf("register_np_flag: %w", err)
	}
	shutdown.Install()

	s := np.New(flag, k)
	s.OnDeferredExit(metrics.DeferredExits.Inc)
	return &Runtime{section: s}, nil
}

// EnterNP opens a non-preemptive section.
func (r *Runtime) EnterNP() { r.section.Enter() }

// ExitNP closes the innermost non-preemptive section.
func (r *Runtime) ExitNP() error { return r.section.Exit() }

// Section returns the task's non-preemptive section.
func (r *Runtime) Section() *np.Section { return r.section }

// Active reports whether the process has not been asked to shut down.
func (r *Runtime) Active() bool { return shutdown.Active() }
