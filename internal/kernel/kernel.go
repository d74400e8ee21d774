// Package kernel is the boundary to the real-time scheduling extension.
// Every method maps onto exactly one kernel entry point, keeps no state and
// returns the kernel's error code unchanged inside an *rt.KernelError.
package kernel

import "litmusrt/internal/rt"

// Semaphore handles. The kernel owns their state.
type (
	Sem    int32 // plain
	PISem  int32 // priority inheritance
	SRPSem int32 // stack resource policy
)

// Mode switches the whole system in and out of real-time operation.
type Mode int32

const (
	ModeNonRT Mode = 0
	ModeRTRun Mode = 1
)

// PolicyControl selects the active scheduler.
type PolicyControl interface {
	Policy() (rt.Policy, error)
	SetPolicy(p rt.Policy) error
	SetRTMode(m Mode) error
	ResetStats() error
}

// TaskControl configures tasks before they run.
type TaskControl interface {
	SetTaskParams(pid int, p rt.Params) error
	TaskParams(pid int) (rt.Params, error)
	PrepareTask(pid int) error
}

// Jobs synchronizes the calling task with its periodic releases. The
// blocking calls suspend the calling task only.
type Jobs interface {
	SleepNextPeriod() error
	JobNo() (uint32, error)
	WaitForJobRelease(job uint32) error
}

// NonPreemption is the kernel side of the non-preemptive section handshake.
type NonPreemption interface {
	RegisterNPFlag(f *rt.NPFlag) error
	SignalExitNP() error
}

// Semaphores forwards the three semaphore families.
type Semaphores interface {
	SemInit() (Sem, error)
	Down(s Sem) error
	Up(s Sem) error
	SemFree(s Sem) error

	PISemInit() (PISem, error)
	PIDown(s PISem) error
	PIUp(s PISem) error
	PISemFree(s PISem) error

	SRPSemInit() (SRPSem, error)
	SRPDown(s SRPSem) error
	SRPUp(s SRPSem) error
	SRPSemFree(s SRPSem) error
	RegisterSRP(s SRPSem, pid int) error
}

// Kernel is the full facade.
type Kernel interface {
	PolicyControl
	TaskControl
	Jobs
	NonPreemption
	Semaphores
}
