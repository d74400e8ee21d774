// Package np implements non-preemptive sections. Entering and leaving a
// section costs no kernel call unless the kernel asked to preempt the task
// while it was inside.
package np

import "litmusrt/internal/rt"

// Notifier tells the kernel that a deferred preemption may now happen.
type Notifier interface {
	SignalExitNP() error
}

// Section wraps the flag a task shares with the kernel. A Section belongs to
// exactly one task and must not be used from several goroutines at once.
type Section struct {
	flag   *rt.NPFlag
	notify Notifier
	onExit func() // called after a deferred exit was signalled
}

// New binds a section to a flag that has been registered with the kernel.
func New(flag *rt.NPFlag, n Notifier) *Section {
	return &Section{flag: flag, notify: n}
}

// OnDeferredExit installs a hook that runs each time Exit signals the kernel.
func (s *Section) OnDeferredExit(fn func()) { s.onExit = fn }

// Flag exposes the shared record.
func (s *Section) Flag() *rt.NPFlag { return s.flag }

// Enter opens a (possibly nested) non-preemptive section. Only the outermost
// Enter touches the shared words: the stale request is cleared before the
// task declares itself non-preemptive.
func (s *Section) Enter() {
	if s.flag.Inc() == 1 {
		s.flag.SetRequest(rt.RequestNone)
		s.flag.SetPreemptivity(rt.NonPreemptive)
	}
}

// Exit closes the innermost section. The outermost Exit restores
// preemptivity and then checks whether the kernel wanted to preempt in the
// meantime. Exit without a matching Enter is a programming error.
func (s *Section) Exit() error {
	if s.flag.Dec() != 0 {
		return nil
	}
	s.flag.SetPreemptivity(rt.Preemptive)
	if s.flag.Request() != rt.ExitRequested {
		return nil
	}
	err := s.notify.SignalExitNP()
	if s.onExit != nil {
		s.onExit()
	}
	return err
}

// Do runs fn inside a non-preemptive section.
func (s *Section) Do(fn func()) error {
	s.Enter()
	fn()
	return s.Exit()
}
