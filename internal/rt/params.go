// internal/rt/params.go

package rt

import (
	"fmt"
	"time"
)

// Params is the periodic workload contract of one task. It is handed to
// the kernel once and never changed afterwards.
type Params struct {
	ExecCost time.Duration // worst-case execution budget per job
	Period   time.Duration
	CPU      int
	Class    TaskClass
}

// Validate checks the contract locally. The kernel still has the final
// word on admission.
func (p Params) Validate() error {
	switch {
	case p.ExecCost <= 0:
		return fmt.Errorf("%w: execution cost must be positive", ErrInvalidParams)
	case p.Period <= 0:
		return fmt.Errorf("%w: period must be positive", ErrInvalidParams)
	case p.ExecCost > p.Period:
		return fmt.Errorf("%w: execution cost %v exceeds period %v", ErrInvalidParams, p.ExecCost, p.Period)
	case p.CPU < 0:
		return fmt.Errorf("%w: negative cpu %d", ErrInvalidParams, p.CPU)
	case !p.Class.Valid():
		return fmt.Errorf("%w: class %d", ErrInvalidParams, p.Class)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("rt params: exec_cost=%v period=%v cpu=%d class=%s",
		p.ExecCost, p.Period, p.CPU, p.Class)
}

// WireParams is the parameter block as the kernel reads it.
// Durations travel as nanoseconds.
type WireParams struct {
	ExecCost int64
	Period   int64
	CPU      int32
	Class    int32
}

// Wire converts p to its kernel layout.
func (p Params) Wire() WireParams {
	return WireParams{
		ExecCost: int64(p.ExecCost),
		Period:   int64(p.Period),
		CPU:      int32(p.CPU),
		Class:    int32(p.Class),
	}
}

// FromWire is the inverse of Params.Wire.
func FromWire(w WireParams) Params {
	return Params{
		ExecCost: time.Duration(w.ExecCost),
		Period:   time.Duration(w.Period),
		CPU:      int(w.CPU),
		Class:    TaskClass(w.Class),
	}
}
