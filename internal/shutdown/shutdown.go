// Package shutdown turns termination signals into a flag the task loop
// polls, so a task finishes its current job instead of dying mid-way.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Signals that request a shutdown.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// Signal is a one-way switch: once requested it stays requested.
type Signal struct {
	requested atomic.Bool

	once sync.Once
	ch   chan os.Signal
}

// Trigger records a shutdown request. It does nothing else and may be
// called any number of times.
func (s *Signal) Trigger() { s.requested.Store(true) }

// Active reports whether no shutdown has been requested yet.
func (s *Signal) Active() bool { return !s.requested.Load() }

// Install routes SIGINT, SIGTERM and SIGHUP to Trigger. Only the first call
// has an effect.
func (s *Signal) Install() {
	s.once.Do(func() {
		s.ch = make(chan os.Signal, 1)
		signal.Notify(s.ch, Signals...)
		go func() {
			for range s.ch {
				s.Trigger()
			}
		}()
	})
}

var process Signal

// Install hooks the process-wide signal.
func Install() { process.Install() }

// Active reports the process-wide state.
func Active() bool { return process.Active() }

// Trigger requests shutdown of the whole process.
func Trigger() { process.Trigger() }
