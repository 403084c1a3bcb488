// Package event provides a notification primitive for blocking goroutines
// and cooperatively-scheduled tasks.
//
// It is a synchronization building block in the spirit of eventcounts:
// waiters register interest through [Event.Listen] and a producer wakes
// them through [Event.Notify]. The primitive carries no protected state of
// its own (beyond an optional per-notification tag), which makes it the
// missing piece for turning non-blocking data structures into blocking or
// asynchronous ones: pair a try-lock with an Event and a full blocking
// mutex falls out.
//
// Waiters are satisfied in the order they started listening. The classic
// "check the condition, then miss the concurrent signal" race is closed by
// the full fences Listen and Notify emit by default:
//
//	var flag atomic.Bool
//	var ev event.Event[struct{}]
//
//	for !flag.Load() {
//		l := ev.Listen()
//		if flag.Load() {
//			l.Close()
//			break
//		}
//		l.Wait()
//	}
package event

import (
	"math"
	"sync/atomic"
)

// Event is a handle for notifying waiters. T is the tag type delivered
// alongside each notification; use struct{} for untagged events.
//
// The zero Event is ready to use. If nobody has ever listened, notifying
// is a no-op that performs no allocation.
//
// Size: 8 bytes (one lazily-installed pointer to the shared state).
type Event[T any] struct {
	_ noCopy

	// inner is nil until the first Listen. Losing the install race
	// discards the speculative allocation, so exactly one shared state
	// ever serves a handle.
	inner atomic.Pointer[inner[T]]
}

// New creates an Event. Equivalent to new(Event[T]); the zero value works
// just as well.
func New[T any]() *Event[T] {
	return new(Event[T])
}

// Listen returns a Listener waiting for the next notification on e.
//
// This is the cold path: an Event is typically notified far more often
// than it is listened to. A full fence is emitted after the listener is
// registered, so a condition checked after Listen cannot miss a
// notification sent by whoever made the condition true.
//
// The Listener must be consumed (Wait/Poll/Discard) or released with
// Close; see [Listener].
func (e *Event[T]) Listen() *Listener[T] {
	in := e.getInner()
	l := &Listener[T]{in: in}
	l.key, l.op = in.insert()
	// The insertion must be visible before the caller re-checks whatever
	// condition it is about to wait on.
	fullFence()
	return l
}

// NotifyWith delivers n to the event. Unless n is relaxed, a full fence is
// emitted first so the notification is ordered after the writes that
// triggered it. NotifyWith never blocks and wakes zero or more waiters.
func (e *Event[T]) NotifyWith(n Notification[T]) {
	if !n.relaxed {
		// Make sure the notification comes after whatever triggered it.
		fullFence()
	}

	in := e.inner.Load()
	if in == nil {
		// Nobody has ever listened; the notification is simply lost.
		return
	}

	limit := uint64(math.MaxUint64)
	if !n.additional {
		if n.count <= 0 {
			return
		}
		limit = uint64(n.count)
	}
	if v := in.notified.Load(); v >= limit {
		// The sentinel means no waiters, but it can be momentarily stale
		// while an insert sits in the fallback queue; trust it only when
		// the queue is empty too.
		if v != math.MaxUint64 || in.queue.empty() {
			return
		}
	}
	in.notify(n)
}

// Notify makes sure at least count waiters have been satisfied, counted
// cumulatively across calls. Tagged events deliver the zero tag; use
// NotifyWith for anything else.
func (e *Event[T]) Notify(count int) {
	e.NotifyWith(NewNotification[T](count))
}

// NotifyRelaxed is Notify without the automatic full fence.
func (e *Event[T]) NotifyRelaxed(count int) {
	e.NotifyWith(NewNotification[T](count).Relaxed())
}

// NotifyAdditional satisfies count more waiters, beyond whatever was
// already notified.
func (e *Event[T]) NotifyAdditional(count int) {
	e.NotifyWith(NewNotification[T](count).Additional())
}

// NotifyAdditionalRelaxed is NotifyAdditional without the automatic full
// fence.
func (e *Event[T]) NotifyAdditionalRelaxed(count int) {
	e.NotifyWith(NewNotification[T](count).Additional().Relaxed())
}

// getInner returns the shared state, installing it on first use.
func (e *Event[T]) getInner() *inner[T] {
	if in := e.inner.Load(); in != nil {
		return in
	}
	// Allocate speculatively and race to install; the loser's allocation
	// is garbage.
	in := newInner[T]()
	if e.inner.CompareAndSwap(nil, in) {
		return in
	}
	return e.inner.Load()
}
