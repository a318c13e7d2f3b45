package timer

import (
	"testing"
	"time"
)

func TestTickFiresExpiredInOrder(t *testing.T) {
	h := New()
	var order []int
	h.Add(1, 0, func() { order = append(order, 1) })
	h.Add(2, 0, func() { order = append(order, 2) })
	h.Add(3, time.Hour, func() { order = append(order, 3) })

	time.Sleep(time.Millisecond)
	h.Tick()

	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
	if len(order) != 2 {
		t.Fatalf("fired %d callbacks, want 2", len(order))
	}
}

func TestDoWorkRunsAndRemoves(t *testing.T) {
	h := New()
	ran := false
	h.Add(1, time.Hour, func() { ran = true })
	h.DoWork(1)

	if !ran {
		t.Fatal("DoWork did not run the callback")
	}
	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Len())
	}
}

func TestAdjustExtendsDeadline(t *testing.T) {
	h := New()
	fired := false
	h.Add(1, 5*time.Millisecond, func() { fired = true })
	h.Adjust(1, time.Hour)

	time.Sleep(10 * time.Millisecond)
	h.Tick()

	if fired {
		t.Fatal("callback fired after deadline was extended")
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
}

func TestAddUpdatesExistingID(t *testing.T) {
	h := New()
	count := 0
	h.Add(1, time.Hour, func() { count++ })
	h.Add(1, 0, func() { count += 10 })

	time.Sleep(time.Millisecond)
	h.Tick()

	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Len())
	}
	if count != 10 {
		t.Fatalf("count = %d, want 10 (second Add should replace callback)", count)
	}
}

func TestPopRemovesEarliestWithoutRunning(t *testing.T) {
	h := New()
	ran := false
	h.Add(1, 0, func() { ran = true })
	h.Pop()

	if ran {
		t.Fatal("Pop ran the callback")
	}
	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Len())
	}
}

func TestRemoveDropsWithoutRunningCallback(t *testing.T) {
	h := New()
	ran := false
	h.Add(1, 0, func() { ran = true })
	h.Remove(1)

	time.Sleep(time.Millisecond)
	h.Tick()

	if ran {
		t.Fatal("Remove ran the callback")
	}
	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Len())
	}
}

func TestClearDropsEverything(t *testing.T) {
	h := New()
	h.Add(1, time.Hour, nil)
	h.Add(2, time.Hour, nil)
	h.Clear()

	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Len())
	}
}

func TestHeapInvariantUnderManyInserts(t *testing.T) {
	h := New()
	deadlines := []time.Duration{
		50 * time.Millisecond, 10 * time.Millisecond, 30 * time.Millisecond,
		5 * time.Millisecond, 40 * time.Millisecond, 20 * time.Millisecond,
	}
	for i, d := range deadlines {
		h.Add(i, d, nil)
	}

	var prev time.Time
	for h.Len() > 0 {
		earliest := h.nodes[0].expires
		if !prev.IsZero() && earliest.Before(prev) {
			t.Fatal("Pop order violated min-heap invariant")
		}
		prev = earliest
		h.Pop()
	}
}

func TestGetNextTickSentinelWhenEmpty(t *testing.T) {
	h := New()
	if got := h.GetNextTick(); got != -1 {
		t.Fatalf("GetNextTick() on empty heap = %v, want -1", got)
	}
}

func TestGetNextTickReturnsRemainingDuration(t *testing.T) {
	h := New()
	h.Add(1, 50*time.Millisecond, nil)
	d := h.GetNextTick()
	if d <= 0 || d > 50*time.Millisecond {
		t.Fatalf("GetNextTick() = %v, want in (0, 50ms]", d)
	}
}
