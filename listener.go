package event

import (
	"context"
	"time"
)

// Listener is a guard waiting for one notification from an [Event].
//
// A Listener can be consumed exactly once, either blocking (Wait and its
// timed variants), polling (Poll), or by giving up on the notification
// (Discard). A Listener that is abandoned without being consumed must be
// released with Close, which re-delivers an unconsumed notification to the
// next waiter in line so cancellation never loses a delivery. Close after
// consumption is a no-op, so `defer l.Close()` is always safe.
//
// A Listener is owned by a single goroutine: its methods must not be
// called concurrently with each other. (Notifiers on other goroutines are,
// of course, fine.)
type Listener[T any] struct {
	_ noCopy

	in  *inner[T]
	key slotKey
	// op is set instead of key when the insert was parked in the
	// fallback queue; resolve exchanges it for the key once drained.
	op   *pendingOp[T]
	done bool
}

// resolve picks up the key a drainer assigned to a queued insert.
// Caller owns the primary-store lock.
func (l *Listener[T]) resolve() {
	if l.key == 0 && l.op != nil {
		l.key = l.op.key
		l.op = nil
	}
}

func (l *Listener[T]) check() {
	if l.in == nil {
		panic("event: use of uninitialized Listener")
	}
	if l.done {
		panic("event: listener already consumed")
	}
}

// registerWith attaches the wake handle, consuming the notification if one
// already arrived.
func (l *Listener[T]) registerWith(t wakeTask) (T, bool) {
	res, tag := l.in.register(l, t)
	switch res {
	case regNotified:
		// Tag taken; retire the slot. No cascade: the notification was
		// consumed, not lost.
		l.in.remove(l, false)
		l.done = true
		return tag, true
	case regNeverInserted:
		panic("event: listener was never inserted into the list")
	}
	var zero T
	return zero, false
}

// Wait blocks the calling goroutine until a notification is received and
// returns its tag.
func (l *Listener[T]) Wait() T {
	tag, _ := l.waitInternal(time.Time{}, false)
	return tag
}

// WaitTimeout is Wait with a timeout. It reports false if d elapsed with
// no notification; the listener is consumed either way.
func (l *Listener[T]) WaitTimeout(d time.Duration) (T, bool) {
	return l.waitInternal(time.Now().Add(d), true)
}

// WaitDeadline is Wait with an absolute deadline.
func (l *Listener[T]) WaitDeadline(deadline time.Time) (T, bool) {
	return l.waitInternal(deadline, true)
}

func (l *Listener[T]) waitInternal(deadline time.Time, timed bool) (T, bool) {
	l.check()

	p := getParker()
	defer putParker(p)
	t := wakeTask{park: p}

	if tag, ok := l.registerWith(t); ok {
		return tag, true
	}
	for {
		if timed {
			if !p.parkTimeout(time.Until(deadline)) {
				// Timed out. A notification that raced in exactly at
				// the boundary is still consumed (and not cascaded:
				// this waiter takes it).
				state, tag, ok := l.in.remove(l, false)
				l.done = true
				if ok && state == stateNotified {
					return tag, true
				}
				var zero T
				return zero, false
			}
		} else {
			p.park()
		}
		// Pooled parkers can deliver stale tokens; treat every wakeup as
		// possibly spurious and re-register.
		if tag, ok := l.registerWith(t); ok {
			return tag, true
		}
	}
}

// WaitContext is Wait bounded by a context. On cancellation the listener
// is consumed and ctx.Err() is returned, unless a notification raced in at
// the boundary, in which case the tag wins.
func (l *Listener[T]) WaitContext(ctx context.Context) (T, error) {
	l.check()

	p := getParker()
	defer putParker(p)
	t := wakeTask{park: p}

	if tag, ok := l.registerWith(t); ok {
		return tag, nil
	}
	for {
		if !p.parkContext(ctx) {
			state, tag, ok := l.in.remove(l, false)
			l.done = true
			if ok && state == stateNotified {
				return tag, nil
			}
			var zero T
			return zero, ctx.Err()
		}
		if tag, ok := l.registerWith(t); ok {
			return tag, nil
		}
	}
}

// Poll is the non-blocking analogue of Wait. It registers w and reports
// whether a notification had already arrived; if so the tag is consumed.
// Otherwise w.Wake is invoked when one does, after which Poll returns the
// tag. Poll never blocks the calling goroutine.
func (l *Listener[T]) Poll(w Waker) (T, bool) {
	l.check()
	return l.registerWith(wakeTask{waker: w})
}

// Discard consumes the listener without taking a notification, reporting
// whether one was pending. Unlike Close, a pending notification is
// deliberately dropped, not re-delivered. Discarding an already consumed
// listener panics, like Wait and Poll.
func (l *Listener[T]) Discard() bool {
	l.check()
	state, _, ok := l.in.remove(l, false)
	l.done = true
	return ok && state == stateNotified
}

// Close releases an unconsumed listener, re-delivering a pending
// notification to the next waiter in line. Closing a consumed listener is
// a no-op.
func (l *Listener[T]) Close() {
	if l.in == nil || l.done {
		return
	}
	l.in.remove(l, true)
	l.done = true
}

// ListensTo reports whether l waits on e.
func (l *Listener[T]) ListensTo(e *Event[T]) bool {
	return l.in != nil && l.in == e.inner.Load()
}

// SameEvent reports whether both listeners wait on the same Event.
func (l *Listener[T]) SameEvent(other *Listener[T]) bool {
	return l.in != nil && other != nil && l.in == other.in
}
