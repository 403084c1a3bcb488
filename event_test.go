package event

import (
	"sync"
	"testing"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

// isNotified polls l with a throwaway waker, consuming the notification if
// one arrived.
func isNotified[T any](l *Listener[T]) bool {
	_, ok := l.Poll(WakerFunc(func() {}))
	return ok
}

// notifiedCount reads the running notified count through the primary lock.
func notifiedCount[T any](e *Event[T]) int {
	in := e.getInner()
	in.lock()
	in.drainLocked()
	n := in.list.notified
	in.release()
	return n
}

// listLen reads the number of live waiters through the primary lock.
func listLen[T any](e *Event[T]) int {
	in := e.getInner()
	in.lock()
	in.drainLocked()
	n := in.list.len
	in.release()
	return n
}

func TestEventSize(t *testing.T) {
	var e Event[struct{}]
	// One pointer word.
	if size := unsafe.Sizeof(e); size > 8 {
		t.Errorf("Event size = %d, expected <= 8", size)
	}
}

func TestNotifyNoListenersIsFree(t *testing.T) {
	var e Event[struct{}]
	allocs := testing.AllocsPerRun(100, func() {
		e.Notify(1)
		e.NotifyAdditional(3)
		e.NotifyRelaxed(7)
	})
	if allocs != 0 {
		t.Errorf("notify on idle event allocated %v times per run", allocs)
	}
	if e.inner.Load() != nil {
		t.Error("notify on idle event created shared state")
	}
}

func TestNotifyFIFO(t *testing.T) {
	e := New[struct{}]()
	l1 := e.Listen()
	l2 := e.Listen()
	l3 := e.Listen()
	defer l3.Close()

	e.Notify(2)
	// Limit 1 is already below the running count of 2: no effect.
	e.Notify(1)

	if !isNotified(l1) {
		t.Error("l1 not notified")
	}
	if !isNotified(l2) {
		t.Error("l2 not notified")
	}
	if isNotified(l3) {
		t.Error("l3 notified, want only the two earliest waiters")
	}
}

func TestNotifyAdditionalIsCumulative(t *testing.T) {
	e := New[struct{}]()
	l1 := e.Listen()
	l2 := e.Listen()
	l3 := e.Listen()

	e.NotifyAdditional(1)
	e.NotifyAdditional(1)

	if !isNotified(l1) {
		t.Error("first additional call missed l1")
	}
	if !isNotified(l2) {
		t.Error("second additional call missed l2")
	}
	if isNotified(l3) {
		t.Error("l3 notified after only two additional calls")
	}
	e.NotifyAdditional(1)
	if !isNotified(l3) {
		t.Error("third additional call missed l3")
	}
}

func TestNotifyIdempotentBelowLimit(t *testing.T) {
	e := New[struct{}]()
	ls := []*Listener[struct{}]{e.Listen(), e.Listen(), e.Listen()}

	for i := 0; i < 3; i++ {
		e.Notify(2)
	}
	if n := notifiedCount(e); n != 2 {
		t.Fatalf("notified count = %d after repeated Notify(2), want 2", n)
	}
	for _, l := range ls {
		l.Close()
	}
}

func TestNotifyZeroAndNegative(t *testing.T) {
	e := New[struct{}]()
	l := e.Listen()
	defer l.Close()

	e.Notify(0)
	e.Notify(-1)
	e.NotifyAdditional(0)
	if n := notifiedCount(e); n != 0 {
		t.Fatalf("notified count = %d, want 0", n)
	}
}

func TestNotifyRelaxed(t *testing.T) {
	e := New[struct{}]()
	l := e.Listen()

	// The caller supplies its own ordering here; delivery itself must
	// still happen.
	fullFence()
	e.NotifyRelaxed(1)
	if !isNotified(l) {
		t.Error("relaxed notify did not deliver")
	}
}

func TestTagDelivery(t *testing.T) {
	e := New[string]()
	l := e.Listen()

	e.NotifyWith(NewNotification[string](1).Tag("hello"))
	if got := l.Wait(); got != "hello" {
		t.Errorf("tag = %q, want %q", got, "hello")
	}
}

func TestTagWithPerWaiter(t *testing.T) {
	e := New[int]()
	l1 := e.Listen()
	l2 := e.Listen()

	seq := 0
	e.NotifyWith(NewNotification[int](2).TagWith(func() int {
		seq++
		return seq
	}))

	if got := l1.Wait(); got != 1 {
		t.Errorf("l1 tag = %d, want 1", got)
	}
	if got := l2.Wait(); got != 2 {
		t.Errorf("l2 tag = %d, want 2", got)
	}
}

func TestZeroTagDefault(t *testing.T) {
	e := New[int]()
	l := e.Listen()
	e.Notify(1)
	if got := l.Wait(); got != 0 {
		t.Errorf("untagged notify delivered %d, want zero value", got)
	}
}

func TestLazyInitRace(t *testing.T) {
	var e Event[struct{}]
	const n = 16

	var mu sync.Mutex
	listeners := make([]*Listener[struct{}], 0, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			l := e.Listen()
			mu.Lock()
			listeners = append(listeners, l)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for i, l := range listeners {
		if !l.ListensTo(&e) {
			t.Fatalf("listener %d does not listen to the event", i)
		}
		if !l.SameEvent(listeners[0]) {
			t.Fatalf("listener %d landed on a different shared state", i)
		}
		l.Close()
	}
}

func TestListensToDistinguishesEvents(t *testing.T) {
	e1 := New[struct{}]()
	e2 := New[struct{}]()
	l1 := e1.Listen()
	l2 := e2.Listen()
	defer l1.Close()
	defer l2.Close()

	if !l1.ListensTo(e1) || l1.ListensTo(e2) {
		t.Error("ListensTo confused two events")
	}
	if l1.SameEvent(l2) {
		t.Error("SameEvent reported listeners of different events as equal")
	}
	if !l1.SameEvent(l1) {
		t.Error("SameEvent is not reflexive")
	}
}

func BenchmarkNotifyNoListeners(b *testing.B) {
	var e Event[struct{}]
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			e.Notify(1)
		}
	})
}

func BenchmarkListenClose(b *testing.B) {
	e := New[struct{}]()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		e.Listen().Close()
	}
}

func BenchmarkNotifyConsume(b *testing.B) {
	e := New[struct{}]()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l := e.Listen()
		e.Notify(1)
		l.Wait()
	}
}
