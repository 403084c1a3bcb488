package event

// Notification describes how a single notify call selects and wakes
// waiters. The zero count notifies nobody; a count larger than the number
// of waiters notifies everyone.
//
// Notifications are plain values: the chainable methods return modified
// copies and all combinations commute, e.g.
//
//	ev.NotifyWith(event.NewNotification[string](1).Additional().Tag("done"))
type Notification[T any] struct {
	count      int
	additional bool
	relaxed    bool
	tag        func() T
}

// NewNotification returns a notification that makes sure at least count
// waiters have been satisfied. The count is cumulative across calls: once
// count waiters are already notified, delivering it again is a no-op.
func NewNotification[T any](count int) Notification[T] {
	return Notification[T]{count: count}
}

// Additional switches counting to "count more": every delivery satisfies
// count previously-unsatisfied waiters regardless of the running total.
func (n Notification[T]) Additional() Notification[T] {
	n.additional = true
	return n
}

// Relaxed suppresses the full memory fence normally emitted before the
// waiter scan. The caller takes over responsibility for ordering the
// notification after the writes that triggered it.
func (n Notification[T]) Relaxed() Notification[T] {
	n.relaxed = true
	return n
}

// Tag attaches a value that each satisfied waiter receives alongside the
// notification.
func (n Notification[T]) Tag(tag T) Notification[T] {
	n.tag = func() T { return tag }
	return n
}

// TagWith is like Tag but computes the value lazily, once per satisfied
// waiter.
func (n Notification[T]) TagWith(fn func() T) Notification[T] {
	n.tag = fn
	return n
}

// nextTag produces the tag for the next satisfied waiter.
func (n Notification[T]) nextTag() T {
	if n.tag != nil {
		return n.tag()
	}
	var zero T
	return zero
}
