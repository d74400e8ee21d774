package sched

import (
	"litmusrt/internal/kernel"
	"litmusrt/internal/rt"
)

// TaskView is the kernel as seen from inside one task: calls about the
// current task act on its pid.
type TaskView struct {
	*Kernel
	pid int
}

var _ kernel.Kernel = TaskView{}

// Task returns the view of task pid.
func (k *Kernel) Task(pid int) TaskView { return TaskView{Kernel: k, pid: pid} }

// PID is the task the view belongs to.
func (v TaskView) PID() int { return v.pid }

func (v TaskView) SleepNextPeriod() error { return v.sleep("sleep_next_period", v.pid) }

func (v TaskView) JobNo() (uint32, error) { return v.jobNo(v.pid) }

func (v TaskView) WaitForJobRelease(job uint32) error { return v.waitForJob(v.pid, job) }

func (v TaskView) RegisterNPFlag(f *rt.NPFlag) error { return v.registerNPFlag(v.pid, f) }

func (v TaskView) SignalExitNP() error { return v.signalExitNP(v.pid) }

func (v TaskView) Down(s kernel.Sem) error { return v.semDown(famPlain, int32(s), v.pid) }

func (v TaskView) PIDown(s kernel.PISem) error { return v.semDown(famPI, int32(s), v.pid) }

func (v TaskView) SRPDown(s kernel.SRPSem) error { return v.semDown(famSRP, int32(s), v.pid) }
