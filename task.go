package event

// Waker schedules the task that owns a Listener to be polled again.
// Implementations must be safe for concurrent use and must not block:
// Wake may be invoked from any goroutine, including one that is in the
// middle of a notify call.
type Waker interface {
	Wake()
}

// WakerFunc adapts a plain function to the Waker interface.
type WakerFunc func()

// Wake calls f.
func (f WakerFunc) Wake() { f() }

// wakeTask unifies the two ways a waiter can be resumed: unparking a
// blocked goroutine or waking a suspended task. At most one of the two
// fields is set.
type wakeTask struct {
	waker Waker
	park  *parker
}

func (t wakeTask) isZero() bool {
	return t.waker == nil && t.park == nil
}

// wake resumes the waiter. Invoking a zero wakeTask is a no-op.
func (t wakeTask) wake() {
	if t.park != nil {
		t.park.unpark()
		return
	}
	if t.waker != nil {
		t.waker.Wake()
	}
}

// willWake reports whether t would definitely resume the same waiter as o.
// The comparison is best-effort: false negatives are fine, false positives
// are not. Wakers are never assumed equal (comparing arbitrary interface
// values can panic on incomparable dynamic types), so only parker identity
// is checked.
func (t wakeTask) willWake(o wakeTask) bool {
	return t.park != nil && t.park == o.park
}
