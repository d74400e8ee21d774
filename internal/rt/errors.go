// internal/rt/errors.go

package rt

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrDuplicationFailed: no task was created, nothing to clean up.
	ErrDuplicationFailed = errors.New("duplication failed")
	// ErrConfigurationFailed: the task was created but its parameters could
	// not be applied; it has been killed.
	ErrConfigurationFailed = errors.New("configuration failed")
	// ErrPreparationFailed: the kernel refused to make the configured task
	// real-time; it has been killed.
	ErrPreparationFailed = errors.New("preparation failed")
	// ErrKernelCall is matched by every *KernelError.
	ErrKernelCall = errors.New("kernel call failed")

	ErrUnknownClass  = errors.New("unknown task class")
	ErrUnknownPolicy = errors.New("unknown scheduler policy")
	ErrInvalidParams = errors.New("invalid real-time parameters")
)

// LaunchError reports a failed launch attempt. Kind is one of
// ErrDuplicationFailed, ErrConfigurationFailed or ErrPreparationFailed.
type LaunchError struct {
	Kind error
	ID   int // task id of the killed duplicate, 0 if none was created
	Err  error
}

func (e *LaunchError) Error() string {
	if e.ID > 0 {
		return fmt.Sprintf("launch: %v (task %d killed): %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("launch: %v: %v", e.Kind, e.Err)
}

// Is matches the error kind, so errors.Is(err, ErrConfigurationFailed) works.
func (e *LaunchError) Is(target error) bool { return target == e.Kind }

func (e *LaunchError) Unwrap() error { return e.Err }

// Created reports whether the failed attempt had already created a task,
// i.e. whether the caller should fix parameters or limits instead of
// simply retrying.
func (e *LaunchError) Created() bool { return e.Kind != ErrDuplicationFailed }

// KernelError carries the error code of a kernel entry point unchanged.
type KernelError struct {
	Call string
	Err  error // usually a unix.Errno
}

func (e *KernelError) Error() string { return e.Call + ": " + e.Err.Error() }

func (e *KernelError) Is(target error) bool { return target == ErrKernelCall }

func (e *KernelError) Unwrap() error { return e.Err }
