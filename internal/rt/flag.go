// internal/rt/flag.go

package rt

import "sync/atomic"

// Preemptivity is the task-side half of the non-preemption handshake.
type Preemptivity uint16

// Request is the kernel-side half of the non-preemption handshake.
type Request uint16

// Marker values shared with the kernel.
const (
	Preemptive    Preemptivity = 0x2050 // "P "
	NonPreemptive Preemptivity = 0x4e50 // "NP"

	RequestNone   Request = 0
	ExitRequested Request = 0x5251 // "RQ"
)

func (p Preemptivity) String() string {
	switch p {
	case Preemptive:
		return "Preemptive"
	case NonPreemptive:
		return "NonPreemptive"
	default:
		return "Unknown"
	}
}

func (r Request) String() string {
	switch r {
	case RequestNone:
		return "None"
	case ExitRequested:
		return "ExitRequested"
	default:
		return "Unknown"
	}
}

// NPFlag is the record a task shares with the kernel. Its layout matches
// the kernel's struct np_flag on little-endian machines: a 16-bit
// preemptivity word, a 16-bit request word, then a 32-bit nesting counter.
// Both 16-bit words live in one 32-bit cell so they can be updated with
// sequentially consistent atomics, which provide the store barrier the
// handshake relies on.
//
// An NPFlag must not be copied or moved once registered with the kernel.
type NPFlag struct {
	word atomic.Uint32 // preemptivity | request<<16
	ctr  atomic.Uint32
}

// NewNPFlag returns a flag in the preemptive state with no nesting.
func NewNPFlag() *NPFlag {
	f := &NPFlag{}
	f.Reset()
	return f
}

// Reset puts the flag back into its initial state.
func (f *NPFlag) Reset() {
	f.word.Store(uint32(Preemptive))
	f.ctr.Store(0)
}

// Preemptivity loads the task-side word.
func (f *NPFlag) Preemptivity() Preemptivity {
	return Preemptivity(f.word.Load() & 0xffff)
}

// Request loads the kernel-side word.
func (f *NPFlag) Request() Request {
	return Request(f.word.Load() >> 16)
}

// SetPreemptivity stores the task-side word and leaves the request intact,
// even when the kernel writes it concurrently.
func (f *NPFlag) SetPreemptivity(p Preemptivity) {
	for {
		old := f.word.Load()
		if f.word.CompareAndSwap(old, old&^0xffff|uint32(p)) {
			return
		}
	}
}

// SetRequest stores the kernel-side word and leaves the preemptivity intact.
func (f *NPFlag) SetRequest(r Request) {
	for {
		old := f.word.Load()
		if f.word.CompareAndSwap(old, old&0xffff|uint32(r)<<16) {
			return
		}
	}
}

// RequestExit is what the kernel does when it wants to preempt a task that
// sits in a non-preemptive section. It only takes effect while the task is
// non-preemptive and reports whether the request was recorded.
func (f *NPFlag) RequestExit() bool {
	for {
		old := f.word.Load()
		if Preemptivity(old&0xffff) != NonPreemptive {
			return false
		}
		if f.word.CompareAndSwap(old, old&0xffff|uint32(ExitRequested)<<16) {
			return true
		}
	}
}

// Depth is the current nesting count.
func (f *NPFlag) Depth() uint32 { return f.ctr.Load() }

// Inc increments the nesting count and returns the new value.
func (f *NPFlag) Inc() uint32 { return f.ctr.Add(1) }

// Dec decrements the nesting count and returns the new value.
func (f *NPFlag) Dec() uint32 { return f.ctr.Add(^uint32(0)) }
