package np

import (
	"math/rand"
	"testing"

	"litmusrt/internal/rt"
)

// mockKernel counts deferred exit notifications.
type mockKernel struct {
	exits int
}

func (m *mockKernel) SignalExitNP() error {
	m.exits++
	return nil
}

func checkInvariant(t *testing.T, f *rt.NPFlag, step int) {
	t.Helper()
	np := f.Preemptivity() == rt.NonPreemptive
	if np != (f.Depth() > 0) {
		t.Fatalf("step %d: preemptivity %v with depth %d", step, f.Preemptivity(), f.Depth())
	}
	if !np && f.Preemptivity() != rt.Preemptive {
		t.Fatalf("step %d: preemptivity word %#x", step, uint16(f.Preemptivity()))
	}
}

func TestNestedSectionTransitions(t *testing.T) {
	k := &mockKernel{}
	s := New(rt.NewNPFlag(), k)

	var toNP, toP int
	last := s.Flag().Preemptivity()
	observe := func() {
		cur := s.Flag().Preemptivity()
		if cur != last {
			if cur == rt.NonPreemptive {
				toNP++
			} else {
				toP++
			}
			last = cur
		}
	}

	s.Enter()
	observe()
	s.Enter()
	observe()
	if err := s.Exit(); err != nil {
		t.Fatal(err)
	}
	observe()
	if s.Flag().Preemptivity() != rt.NonPreemptive {
		t.Fatal("inner Exit made the task preemptive")
	}
	if err := s.Exit(); err != nil {
		t.Fatal(err)
	}
	observe()

	if toNP != 1 || toP != 1 {
		t.Errorf("transitions = %d into NP, %d out of NP; want 1 and 1", toNP, toP)
	}
	if k.exits != 0 {
		t.Errorf("signalled %d deferred exits without a request", k.exits)
	}
}

func TestDeferredExitSignalledOnce(t *testing.T) {
	k := &mockKernel{}
	s := New(rt.NewNPFlag(), k)
	hooked := 0
	s.OnDeferredExit(func() { hooked++ })

	s.Enter()
	s.Enter()
	if !s.Flag().RequestExit() {
		t.Fatal("kernel request refused inside a section")
	}
	s.Exit()
	if k.exits != 0 {
		t.Fatal("inner Exit signalled the kernel")
	}
	s.Exit()
	if k.exits != 1 || hooked != 1 {
		t.Fatalf("exits = %d, hook = %d; want 1", k.exits, hooked)
	}

	// A new section starts from a clean request.
	s.Enter()
	if s.Flag().Request() != rt.RequestNone {
		t.Errorf("stale request %v after re-entering", s.Flag().Request())
	}
	s.Exit()
	if k.exits != 1 {
		t.Errorf("stale request signalled again, exits = %d", k.exits)
	}
}

func TestSectionInvariantRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	k := &mockKernel{}
	s := New(rt.NewNPFlag(), k)
	f := s.Flag()

	wantExits := 0
	requested := false
	for step := 0; step < 20000; step++ {
		switch op := rng.Intn(3); {
		case op == 0:
			s.Enter()
		case op == 1 && f.Depth() > 0:
			outer := f.Depth() == 1
			if err := s.Exit(); err != nil {
				t.Fatal(err)
			}
			if outer {
				if requested {
					wantExits++
				}
				requested = false
			}
		default:
			// the kernel wants to preempt
			if f.RequestExit() {
				requested = true
			} else if f.Depth() > 0 {
				t.Fatalf("step %d: request refused at depth %d", step, f.Depth())
			}
		}
		checkInvariant(t, f, step)
		if k.exits != wantExits {
			t.Fatalf("step %d: exits = %d, want %d", step, k.exits, wantExits)
		}
	}
}

func TestDo(t *testing.T) {
	s := New(rt.NewNPFlag(), &mockKernel{})
	ran := false
	err := s.Do(func() {
		ran = true
		if s.Flag().Preemptivity() != rt.NonPreemptive {
			t.Error("Do body ran preemptively")
		}
	})
	if err != nil || !ran {
		t.Fatalf("Do() = %v, ran = %v", err, ran)
	}
	if s.Flag().Preemptivity() != rt.Preemptive || s.Flag().Depth() != 0 {
		t.Error("Do left the section open")
	}
}
