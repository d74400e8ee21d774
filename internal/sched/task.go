package sched

import "litmusrt/internal/rt"

// simTask is the kernel-side record of one task.
type simTask struct {
	pid        int
	params     rt.Params
	configured bool
	prepared   bool

	periodTicks int64
	nextRelease int64  // tick at which the next job is released
	job         uint32 // number of released jobs
	sleeping    bool
	wake        chan struct{}
	gone        chan struct{} // closed by Forget

	flag   *rt.NPFlag
	exitNP int // deferred exits signalled by the task
}

func newSimTask(pid int) *simTask {
	return &simTask{pid: pid, wake: make(chan struct{}, 1), gone: make(chan struct{})}
}
