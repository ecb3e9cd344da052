package main

import "testing"

func TestSchedulerOrdersByTstatesThenType(t *testing.T) {
	s := NewScheduler()
	var fired []EventTypeID
	a := s.Register("a", func(_ uint32, typ EventTypeID, _ any) { fired = append(fired, typ) })
	b := s.Register("b", func(_ uint32, typ EventTypeID, _ any) { fired = append(fired, typ) })

	s.Add(100, b, nil)
	s.Add(100, a, nil)
	s.Add(50, a, nil)

	if got := s.NextEventTime(); got != 50 {
		t.Fatalf("NextEventTime = %d, want 50", got)
	}

	s.SetTstates(200)
	s.DoEvents()

	want := []EventTypeID{a, a, b}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired[%d] = %d, want %d", i, fired[i], want[i])
		}
	}
}

func TestSchedulerNoEventScheduledWhenEmpty(t *testing.T) {
	s := NewScheduler()
	if got := s.NextEventTime(); got != NoEventScheduled {
		t.Fatalf("NextEventTime = %#x, want NoEventScheduled", got)
	}
}

func TestSchedulerRemoveTypeIsSilentNoOpWhenEmpty(t *testing.T) {
	s := NewScheduler()
	typ := s.Register("x", func(uint32, EventTypeID, any) {})
	s.RemoveType(typ) // must not panic
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestSchedulerRemoveTypeRewritesToNull(t *testing.T) {
	s := NewScheduler()
	fired := false
	typ := s.Register("x", func(uint32, EventTypeID, any) { fired = true })
	s.Add(10, typ, nil)
	s.RemoveType(typ)

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (null-rewritten, not removed)", s.Len())
	}

	s.SetTstates(10)
	s.DoEvents()
	if fired {
		t.Fatal("null-rewritten event callback fired")
	}
}

func TestSchedulerRemoveTypeUserDataNarrowsToOwner(t *testing.T) {
	s := NewScheduler()
	var firedFor []any
	typ := s.Register("x", func(_ uint32, _ EventTypeID, ud any) { firedFor = append(firedFor, ud) })

	drive0, drive1 := "drive0", "drive1"
	s.Add(10, typ, drive0)
	s.Add(10, typ, drive1)
	s.RemoveTypeUserData(typ, drive0)

	s.SetTstates(10)
	s.DoEvents()

	if len(firedFor) != 1 || firedFor[0] != drive1 {
		t.Fatalf("firedFor = %v, want [%q]", firedFor, drive1)
	}
}

func TestSchedulerAddUnregisteredTypePanics(t *testing.T) {
	s := NewScheduler()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unregistered event type")
		}
	}()
	s.Add(0, EventTypeID(99), nil)
}

func TestSchedulerFrameRebasesQueueAndCounter(t *testing.T) {
	s := NewScheduler()
	typ := s.Register("x", func(uint32, EventTypeID, any) {})
	s.Add(69888+100, typ, nil)
	s.SetTstates(69888 + 50)

	s.Frame(69888)

	if s.Tstates() != 50 {
		t.Fatalf("Tstates() = %d, want 50", s.Tstates())
	}
	if got := s.NextEventTime(); got != 100 {
		t.Fatalf("NextEventTime() = %d, want 100", got)
	}
}

func TestSchedulerFrameClampsUnderflowToZero(t *testing.T) {
	s := NewScheduler()
	typ := s.Register("x", func(uint32, EventTypeID, any) {})
	s.Add(10, typ, nil)
	s.Frame(69888)

	s.Foreach(func(tstates uint32, _ EventTypeID, _ any) {
		if tstates != 0 {
			t.Fatalf("tstates = %d, want 0 after underflowing Frame", tstates)
		}
	})
}

func TestSchedulerResetClearsQueueAndCounter(t *testing.T) {
	s := NewScheduler()
	typ := s.Register("x", func(uint32, EventTypeID, any) {})
	s.Add(10, typ, nil)
	s.SetTstates(5)

	s.Reset()

	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
	if s.Tstates() != 0 {
		t.Fatalf("Tstates() = %d, want 0", s.Tstates())
	}
	if got := s.NextEventTime(); got != NoEventScheduled {
		t.Fatalf("NextEventTime() = %#x, want NoEventScheduled", got)
	}
}
