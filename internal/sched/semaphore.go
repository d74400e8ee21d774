package sched

import (
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"golang.org/x/sys/unix"

	"litmusrt/internal/kernel"
)

// family separates the id spaces of the three semaphore kinds.
type family int

const (
	famPlain family = iota
	famPI
	famSRP
)

var famCalls = [...]struct{ init, down, up, free string }{
	famPlain: {"sema_init", "down", "up", "sema_free"},
	famPI:    {"pi_sema_init", "pi_down", "pi_up", "pi_sema_free"},
	famSRP:   {"srp_sema_init", "srp_down", "srp_up", "srp_sema_free"},
}

type semKey struct {
	fam family
	id  int32
}

// semaphore is a binary semaphore with FIFO hand-off. Priority inheritance
// and ceilings are not modelled; the simulator only keeps the call
// contracts.
type semaphore struct {
	count   int
	waiters *linkedlistqueue.Queue // of *waiter
	live    int                    // waiters that have not given up
	users   map[int]bool           // tasks registered for SRP use
}

// waiter is one blocked Down. An abandoned waiter stays queued and is
// skipped by the next Up.
type waiter struct {
	ch        chan struct{}
	abandoned bool
}

// up hands the semaphore to the first live waiter or increments the count.
// Caller holds k.mu.
func (s *semaphore) up() {
	for {
		v, ok := s.waiters.Dequeue()
		if !ok {
			break
		}
		w := v.(*waiter)
		if w.abandoned {
			continue
		}
		s.live--
		close(w.ch)
		return
	}
	s.count++
}

func (k *Kernel) semInit(fam family) (int32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	call := famCalls[fam].init
	if err := k.fault(call, 0); err != nil {
		return 0, err
	}
	k.nextSem++
	k.sems[semKey{fam, k.nextSem}] = &semaphore{
		count:   1,
		waiters: linkedlistqueue.New(),
		users:   make(map[int]bool),
	}
	return k.nextSem, nil
}

func (k *Kernel) semDown(fam family, id int32, pid int) error {
	call := famCalls[fam].down
	k.mu.Lock()
	if err := k.fault(call, pid); err != nil {
		k.mu.Unlock()
		return err
	}
	s, ok := k.sems[semKey{fam, id}]
	if !ok {
		k.mu.Unlock()
		return fail(call, unix.EINVAL)
	}
	if fam == famSRP && !s.users[pid] {
		k.mu.Unlock()
		return fail(call, unix.EPERM)
	}
	if s.count > 0 {
		s.count--
		k.mu.Unlock()
		return nil
	}
	w := &waiter{ch: make(chan struct{})}
	s.waiters.Enqueue(w)
	s.live++
	k.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-k.stop:
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	select {
	case <-w.ch:
		// handed over while the kernel shut down: pass it on
		s.up()
	default:
		w.abandoned = true
		s.live--
	}
	return fail(call, unix.EINTR)
}

func (k *Kernel) semUp(fam family, id int32, pid int) error {
	call := famCalls[fam].up
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault(call, pid); err != nil {
		return err
	}
	s, ok := k.sems[semKey{fam, id}]
	if !ok {
		return fail(call, unix.EINVAL)
	}
	s.up()
	return nil
}

func (k *Kernel) semFree(fam family, id int32) error {
	call := famCalls[fam].free
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault(call, 0); err != nil {
		return err
	}
	key := semKey{fam, id}
	s, ok := k.sems[key]
	if !ok {
		return fail(call, unix.EINVAL)
	}
	if s.live > 0 {
		return fail(call, unix.EBUSY)
	}
	delete(k.sems, key)
	return nil
}

func (k *Kernel) registerSRP(id int32, pid int) error {
	const call = "reg_task_srp_sem"
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault(call, pid); err != nil {
		return err
	}
	s, ok := k.sems[semKey{famSRP, id}]
	if !ok {
		return fail(call, unix.EINVAL)
	}
	if pid <= 0 {
		return fail(call, unix.ESRCH)
	}
	s.users[pid] = true
	return nil
}

func (k *Kernel) SemInit() (kernel.Sem, error) {
	id, err := k.semInit(famPlain)
	return kernel.Sem(id), err
}

func (k *Kernel) Down(s kernel.Sem) error { return k.semDown(famPlain, int32(s), 0) }

func (k *Kernel) Up(s kernel.Sem) error { return k.semUp(famPlain, int32(s), 0) }

func (k *Kernel) SemFree(s kernel.Sem) error { return k.semFree(famPlain, int32(s)) }

func (k *Kernel) PISemInit() (kernel.PISem, error) {
	id, err := k.semInit(famPI)
	return kernel.PISem(id), err
}

func (k *Kernel) PIDown(s kernel.PISem) error { return k.semDown(famPI, int32(s), 0) }

func (k *Kernel) PIUp(s kernel.PISem) error { return k.semUp(famPI, int32(s), 0) }

func (k *Kernel) PISemFree(s kernel.PISem) error { return k.semFree(famPI, int32(s)) }

func (k *Kernel) SRPSemInit() (kernel.SRPSem, error) {
	id, err := k.semInit(famSRP)
	return kernel.SRPSem(id), err
}

func (k *Kernel) SRPDown(s kernel.SRPSem) error { return k.semDown(famSRP, int32(s), 0) }

func (k *Kernel) SRPUp(s kernel.SRPSem) error { return k.semUp(famSRP, int32(s), 0) }

func (k *Kernel) SRPSemFree(s kernel.SRPSem) error { return k.semFree(famSRP, int32(s)) }

func (k *Kernel) RegisterSRP(s kernel.SRPSem, pid int) error {
	return k.registerSRP(int32(s), pid)
}
