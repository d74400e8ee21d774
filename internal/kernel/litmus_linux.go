package kernel

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"litmusrt/internal/rt"
)

// Litmus talks to a running LITMUS^RT kernel through raw system calls.
// The syscall numbers are those of the extension, so calling these methods
// on a stock kernel reaches unrelated entry points.
type Litmus struct{}

var _ Kernel = Litmus{}

// result is anything a kernel entry point hands back in its return register.
type result interface {
	~int32 | ~uint32 | ~int
}

// invoke forwards one entry point taking only scalar arguments.
func invoke[T result](call string, nr uintptr, a1, a2 uintptr) (T, error) {
	r, _, errno := unix.Syscall(nr, a1, a2, 0)
	if errno != 0 {
		return 0, &rt.KernelError{Call: call, Err: errno}
	}
	return T(r), nil
}

// invoke0 is invoke for calls whose return value is only a status.
func invoke0(call string, nr uintptr, a1, a2 uintptr) error {
	_, err := invoke[int](call, nr, a1, a2)
	return err
}

func (Litmus) Policy() (rt.Policy, error) {
	return invoke[rt.Policy]("sched_getpolicy", sysSchedGetPolicy, 0, 0)
}

func (Litmus) SetPolicy(p rt.Policy) error {
	return invoke0("sched_setpolicy", sysSchedSetPolicy, uintptr(p), 0)
}

func (Litmus) SetRTMode(m Mode) error {
	return invoke0("set_rt_mode", sysSetRTMode, uintptr(m), 0)
}

func (Litmus) ResetStats() error {
	return invoke0("reset_stat", sysResetStat, 0, 0)
}

func (Litmus) SetTaskParams(pid int, p rt.Params) error {
	w := p.Wire()
	_, _, errno := unix.Syscall(sysSetRTTaskParam, uintptr(pid), uintptr(unsafe.Pointer(&w)), 0)
	if errno != 0 {
		return &rt.KernelError{Call: "set_rt_task_param", Err: errno}
	}
	return nil
}

func (Litmus) TaskParams(pid int) (rt.Params, error) {
	var w rt.WireParams
	_, _, errno := unix.Syscall(sysGetRTTaskParam, uintptr(pid), uintptr(unsafe.Pointer(&w)), 0)
	if errno != 0 {
		return rt.Params{}, &rt.KernelError{Call: "get_rt_task_param", Err: errno}
	}
	return rt.FromWire(w), nil
}

func (Litmus) PrepareTask(pid int) error {
	return invoke0("prepare_rt_task", sysPrepareRTTask, uintptr(pid), 0)
}

// SleepNextPeriod blocks in the kernel, so it goes through the blocking
// syscall path that lets the Go scheduler hand the P to another thread.
func (Litmus) SleepNextPeriod() error {
	_, _, errno := unix.Syscall(sysSleepNextPeriod, 0, 0, 0)
	if errno != 0 {
		return &rt.KernelError{Call: "sleep_next_period", Err: errno}
	}
	return nil
}

func (Litmus) JobNo() (uint32, error) {
	var job uint32
	_, _, errno := unix.Syscall(sysGetJobNo, uintptr(unsafe.Pointer(&job)), 0, 0)
	if errno != 0 {
		return 0, &rt.KernelError{Call: "get_job_no", Err: errno}
	}
	return job, nil
}

func (Litmus) WaitForJobRelease(job uint32) error {
	return invoke0("wait_for_job_release", sysWaitForJobRelease, uintptr(job), 0)
}

// RegisterNPFlag hands the address of f to the kernel. f must stay
// reachable for the lifetime of the task.
func (Litmus) RegisterNPFlag(f *rt.NPFlag) error {
	_, _, errno := unix.RawSyscall(sysRegisterNPFlag, uintptr(unsafe.Pointer(f)), 0, 0)
	if errno != 0 {
		return &rt.KernelError{Call: "register_np_flag", Err: errno}
	}
	return nil
}

func (Litmus) SignalExitNP() error {
	return invoke0("signal_exit_np", sysSignalExitNP, 0, 0)
}

func (Litmus) SemInit() (Sem, error) {
	return invoke[Sem]("sema_init", sysSemaInit, 0, 0)
}

func (Litmus) Down(s Sem) error { return invoke0("down", sysDown, uintptr(s), 0) }

func (Litmus) Up(s Sem) error { return invoke0("up", sysUp, uintptr(s), 0) }

func (Litmus) SemFree(s Sem) error { return invoke0("sema_free", sysSemaFree, uintptr(s), 0) }

func (Litmus) PISemInit() (PISem, error) {
	return invoke[PISem]("pi_sema_init", sysPISemaInit, 0, 0)
}

func (Litmus) PIDown(s PISem) error { return invoke0("pi_down", sysPIDown, uintptr(s), 0) }

func (Litmus) PIUp(s PISem) error { return invoke0("pi_up", sysPIUp, uintptr(s), 0) }

func (Litmus) PISemFree(s PISem) error {
	return invoke0("pi_sema_free", sysPISemaFree, uintptr(s), 0)
}

func (Litmus) SRPSemInit() (SRPSem, error) {
	return invoke[SRPSem]("srp_sema_init", sysSRPSemaInit, 0, 0)
}

func (Litmus) SRPDown(s SRPSem) error { return invoke0("srp_down", sysSRPDown, uintptr(s), 0) }

func (Litmus) SRPUp(s SRPSem) error { return invoke0("srp_up", sysSRPUp, uintptr(s), 0) }

func (Litmus) SRPSemFree(s SRPSem) error {
	return invoke0("srp_sema_free", sysSRPSemaFree, uintptr(s), 0)
}

func (Litmus) RegisterSRP(s SRPSem, pid int) error {
	return invoke0("reg_task_srp_sem", sysRegTaskSRPSem, uintptr(s), uintptr(pid))
}
