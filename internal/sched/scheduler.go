// internal/sched/scheduler.go

// Package sched simulates the real-time scheduling extension in-process.
// It admits parameters, prepares tasks, releases their jobs on a tick clock
// and plays the kernel side of the non-preemption handshake, which makes
// the library usable and testable without a patched kernel.
package sched

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"golang.org/x/sys/unix"

	"litmusrt/internal/kernel"
	"litmusrt/internal/metrics"
	"litmusrt/internal/rt"
)

// Kernel is a simulated scheduling extension. Its own methods act on
// behalf of a controller that is not a real-time task; use Task to obtain
// the view of a specific task.
type Kernel struct {
	mu       sync.Mutex         // protects the kernel state
	tick     time.Duration      // length of one tick
	cpus     int                // cpus available for partitioning
	clock    *TickClock         // clock for generating ticks
	policy   rt.Policy          // active scheduler
	mode     kernel.Mode        // real-time mode
	tasks    map[int]*simTask   // every task the kernel has heard of
	releases *redblacktree.Tree // sleeping tasks ordered by release tick and pid
	sems     map[semKey]*semaphore
	nextSem  int32
	faults   map[string]error // one-shot injected failures by call name
	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once

	// logging-related
	csvFile   *os.File
	csvWriter *csv.Writer
}

var _ kernel.Kernel = (*Kernel)(nil)

// New creates a simulated kernel and starts its clock.
func New(cfg Config) *Kernel {
	policy, err := cfg.PolicyValue()
	if err != nil {
		policy = rt.PolicyLinux
	}
	cpus := cfg.CPUs
	if cpus <= 0 {
		cpus = HostCPUs()
	}
	tick := cfg.Tick()
	if tick <= 0 {
		tick = 5 * time.Millisecond
	}

	k := &Kernel{
		tick:     tick,
		cpus:     cpus,
		clock:    NewTickClock(256), // buffer size for tick events
		policy:   policy,
		tasks:    make(map[int]*simTask),
		releases: redblacktree.NewWith(cmp),
		sems:     make(map[semKey]*semaphore),
		faults:   make(map[string]error),
		events:   make(chan Event, 1024),
		stop:     make(chan struct{}),
	}
	k.clock.Start(tick)
	go k.loop()
	return k
}

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (k *Kernel) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"timestamp", "tick", "event", "task_id", "job", "detail"})
	w.Flush()
	k.csvFile = f
	k.csvWriter = w
	return nil
}

// Events exposes the read-only event stream (optional consumers).
func (k *Kernel) Events() <-chan Event { return k.events }

// Run prints events until ctx is done, then shuts the kernel down.
func (k *Kernel) Run(ctx context.Context) error {
	defer func() {
		k.Close()
		if k.csvFile != nil {
			k.csvWriter.Flush()
			k.csvFile.Close()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-k.events:
			k.handleEvent(ev)
		}
	}
}

// Close stops the clock and fails every blocked call with EINTR.
func (k *Kernel) Close() {
	k.stopOnce.Do(func() {
		close(k.stop)
		k.clock.Stop()
	})
}

// Inject makes the next call to the named entry point (e.g.
// "set_rt_task_param") fail with err.
func (k *Kernel) Inject(call string, err error) {
	k.mu.Lock()
	k.faults[call] = err
	k.mu.Unlock()
}

// Now is the current tick.
func (k *Kernel) Now() int64 { return k.clock.Count() }

// fault consumes an injected failure. Caller holds k.mu.
func (k *Kernel) fault(call string, pid int) error {
	err, ok := k.faults[call]
	if !ok {
		return nil
	}
	delete(k.faults, call)
	k.emit(Event{Kind: EventFault, TaskID: pid, Detail: call})
	return &rt.KernelError{Call: call, Err: err}
}

// emit never blocks; events are dropped when nobody keeps up.
func (k *Kernel) emit(ev Event) {
	ev.Time = time.Now()
	ev.Tick = k.clock.Count()
	select {
	case k.events <- ev:
	default:
	}
}

func fail(call string, errno unix.Errno) error {
	return &rt.KernelError{Call: call, Err: errno}
}

// loop releases due jobs on every tick.
func (k *Kernel) loop() {
	for now := range k.clock.Ch {
		k.mu.Lock()
		for {
			node := k.releases.Left()
			if node == nil {
				break
			}
			key := node.Key.(nodeKey)
			if key.tick > now {
				break
			}
			t := node.Value.(*simTask)
			k.releases.Remove(key)
			k.release(t)
		}
		k.mu.Unlock()
	}
}

// release starts the next job of t and wakes it. Caller holds k.mu.
func (k *Kernel) release(t *simTask) {
	t.job++
	t.nextRelease += t.periodTicks
	t.sleeping = false
	select {
	case t.wake <- struct{}{}:
	default:
	}
	metrics.JobReleases.WithLabelValues(strconv.Itoa(t.params.CPU)).Inc()
	k.emit(Event{Kind: EventRelease, TaskID: t.pid, Job: t.job})
}

func (k *Kernel) task(pid int) *simTask {
	t, ok := k.tasks[pid]
	if !ok {
		t = newSimTask(pid)
		k.tasks[pid] = t
	}
	return t
}

// Forget drops the record of a task that was killed or has exited, along
// with its pending release and SRP registrations. A call still sleeping on
// its behalf fails with ESRCH.
func (k *Kernel) Forget(pid int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.tasks[pid]
	if !ok {
		return
	}
	if t.sleeping {
		k.releases.Remove(nodeKey{tick: t.nextRelease, pid: pid})
	}
	for _, s := range k.sems {
		delete(s.users, pid)
	}
	close(t.gone)
	delete(k.tasks, pid)
}

// Tasks is the number of tasks the kernel keeps a record of.
func (k *Kernel) Tasks() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.tasks)
}

func (k *Kernel) Policy() (rt.Policy, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("sched_getpolicy", 0); err != nil {
		return 0, err
	}
	return k.policy, nil
}

// SetPolicy switches the scheduler. Switching is refused while the system
// runs in real-time mode.
func (k *Kernel) SetPolicy(p rt.Policy) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("sched_setpolicy", 0); err != nil {
		return err
	}
	if !p.Valid() {
		return fail("sched_setpolicy", unix.EINVAL)
	}
	if k.mode == kernel.ModeRTRun {
		return fail("sched_setpolicy", unix.EBUSY)
	}
	k.policy = p
	k.emit(Event{Kind: EventPolicy, Detail: p.String()})
	return nil
}

func (k *Kernel) SetRTMode(m kernel.Mode) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("set_rt_mode", 0); err != nil {
		return err
	}
	if m != kernel.ModeNonRT && m != kernel.ModeRTRun {
		return fail("set_rt_mode", unix.EINVAL)
	}
	k.mode = m
	return nil
}

// ResetStats clears the per-task deferred exit counters.
func (k *Kernel) ResetStats() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("reset_stat", 0); err != nil {
		return err
	}
	for _, t := range k.tasks {
		t.exitNP = 0
	}
	return nil
}

// SetTaskParams admits p for pid. Parameters are fixed once the task has
// been prepared.
func (k *Kernel) SetTaskParams(pid int, p rt.Params) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("set_rt_task_param", pid); err != nil {
		return err
	}
	if pid <= 0 {
		return fail("set_rt_task_param", unix.ESRCH)
	}
	if p.Validate() != nil || p.CPU >= k.cpus {
		return fail("set_rt_task_param", unix.EINVAL)
	}
	t := k.task(pid)
	if t.prepared {
		return fail("set_rt_task_param", unix.EBUSY)
	}
	t.params = p
	t.configured = true
	k.emit(Event{Kind: EventParams, TaskID: pid, Detail: p.String()})
	return nil
}

func (k *Kernel) TaskParams(pid int) (rt.Params, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("get_rt_task_param", pid); err != nil {
		return rt.Params{}, err
	}
	t, ok := k.tasks[pid]
	if !ok || !t.configured {
		return rt.Params{}, fail("get_rt_task_param", unix.ESRCH)
	}
	return t.params, nil
}

// PrepareTask makes a configured task real-time. Its first job is released
// one period from now.
func (k *Kernel) PrepareTask(pid int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("prepare_rt_task", pid); err != nil {
		return err
	}
	t, ok := k.tasks[pid]
	if !ok {
		return fail("prepare_rt_task", unix.ESRCH)
	}
	if !t.configured || t.prepared {
		return fail("prepare_rt_task", unix.EINVAL)
	}
	t.periodTicks = int64((t.params.Period + k.tick - 1) / k.tick)
	if t.periodTicks < 1 {
		t.periodTicks = 1
	}
	t.nextRelease = k.clock.Count() + t.periodTicks
	t.prepared = true
	k.emit(Event{Kind: EventPrepare, TaskID: pid})
	return nil
}

// sleep blocks pid until its next job is released.
func (k *Kernel) sleep(call string, pid int) error {
	k.mu.Lock()
	if err := k.fault(call, pid); err != nil {
		k.mu.Unlock()
		return err
	}
	t, ok := k.tasks[pid]
	if !ok || !t.prepared {
		k.mu.Unlock()
		return fail(call, unix.EINVAL)
	}
	t.sleeping = true
	k.releases.Put(nodeKey{tick: t.nextRelease, pid: pid}, t)
	k.emit(Event{Kind: EventSleep, TaskID: pid, Job: t.job})
	k.mu.Unlock()

	select {
	case <-t.wake:
		return nil
	case <-t.gone:
		return fail(call, unix.ESRCH)
	case <-k.stop:
		return fail(call, unix.EINTR)
	}
}

func (k *Kernel) jobNo(pid int) (uint32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("get_job_no", pid); err != nil {
		return 0, err
	}
	t, ok := k.tasks[pid]
	if !ok || !t.prepared {
		return 0, fail("get_job_no", unix.EINVAL)
	}
	return t.job, nil
}

func (k *Kernel) waitForJob(pid int, job uint32) error {
	const call = "wait_for_job_release"
	k.mu.Lock()
	if err := k.fault(call, pid); err != nil {
		k.mu.Unlock()
		return err
	}
	t, ok := k.tasks[pid]
	if !ok || !t.prepared {
		k.mu.Unlock()
		return fail(call, unix.EINVAL)
	}
	k.mu.Unlock()

	for {
		k.mu.Lock()
		released := t.job >= job
		k.mu.Unlock()
		if released {
			return nil
		}
		if err := k.sleep(call, pid); err != nil {
			return err
		}
	}
}

func (k *Kernel) registerNPFlag(pid int, f *rt.NPFlag) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("register_np_flag", pid); err != nil {
		return err
	}
	if f == nil {
		return fail("register_np_flag", unix.EFAULT)
	}
	if pid <= 0 {
		return fail("register_np_flag", unix.ESRCH)
	}
	k.task(pid).flag = f
	return nil
}

func (k *Kernel) signalExitNP(pid int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fault("signal_exit_np", pid); err != nil {
		return err
	}
	t, ok := k.tasks[pid]
	if !ok || t.flag == nil {
		return fail("signal_exit_np", unix.EINVAL)
	}
	t.exitNP++
	k.emit(Event{Kind: EventNPExit, TaskID: pid, Job: t.job})
	return nil
}

// RequestPreemption is the kernel wanting to preempt pid. If the task sits
// in a non-preemptive section the request is recorded in its flag and the
// call reports true.
func (k *Kernel) RequestPreemption(pid int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.tasks[pid]
	if !ok || t.flag == nil {
		return false
	}
	if !t.flag.RequestExit() {
		return false
	}
	k.emit(Event{Kind: EventNPRequest, TaskID: pid, Job: t.job})
	return true
}

// DeferredExits is the number of deferred exits pid signalled since the
// last ResetStats.
func (k *Kernel) DeferredExits(pid int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t, ok := k.tasks[pid]; ok {
		return t.exitNP
	}
	return 0
}

// The controller is not a real-time task: calls about the current task
// fail the way they do for a plain process.

func (k *Kernel) SleepNextPeriod() error { return fail("sleep_next_period", unix.EINVAL) }

func (k *Kernel) JobNo() (uint32, error) { return 0, fail("get_job_no", unix.EINVAL) }

func (k *Kernel) WaitForJobRelease(uint32) error {
	return fail("wait_for_job_release", unix.EINVAL)
}

func (k *Kernel) RegisterNPFlag(*rt.NPFlag) error { return fail("register_np_flag", unix.ESRCH) }

func (k *Kernel) SignalExitNP() error { return fail("signal_exit_np", unix.EINVAL) }

func (k *Kernel) handleEvent(ev Event) {
	log.Printf("tick %07d [%-10s] task %5d job %4d %s",
		ev.Tick, ev.Kind, ev.TaskID, ev.Job, ev.Detail)

	// CSV output
	if k.csvWriter != nil {
		rec := []string{
			ev.Time.Format(time.RFC3339Nano),
			strconv.FormatInt(ev.Tick, 10),
			ev.Kind.String(),
			strconv.Itoa(ev.TaskID),
			strconv.FormatUint(uint64(ev.Job), 10),
			ev.Detail,
		}
		k.csvWriter.Write(rec)
		k.csvWriter.Flush()
	}
}

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	tick int64
	pid  int
}

// cmp orders releases by tick, then by pid.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.tick < kb.tick:
		return -1
	case ka.tick > kb.tick:
		return 1
	case ka.pid < kb.pid:
		return -1
	case ka.pid > kb.pid:
		return 1
	default:
		return 0
	}
}

// String summarizes the kernel for diagnostics.
func (k *Kernel) String() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return fmt.Sprintf("sim kernel: policy=%s cpus=%d tasks=%d sleeping=%d",
		k.policy, k.cpus, len(k.tasks), k.releases.Size())
}
