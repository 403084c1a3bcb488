package event

import (
	"math"
	"sync/atomic"

	"github.com/lockfreed/event/internal/opt"
)

// slotKey addresses one waiter slot in the arena.
//
// Layout:
//
//	High 32: slot generation (bumped on free, so a stale key never
//	         aliases a recycled slot)
//	Low 32:  slot index + 1 (zero means "no slot")
type slotKey uint64

func makeKey(idx, gen uint32) slotKey {
	return slotKey(gen)<<32 | slotKey(idx+1)
}

func (k slotKey) index() uint32 { return uint32(k) - 1 }
func (k slotKey) gen() uint32   { return uint32(k >> 32) }

// Waiter slot states. Transitions:
//
//	created --register--> task
//	created/task --notify--> notified
//	notified --consume--> notifiedTaken
//
// Any state can leave the list via remove.
const (
	stateCreated uint8 = iota
	stateTask
	stateNotified
	stateNotifiedTaken
)

// Register results.
const (
	regRegistered uint8 = iota
	regNotified
	regNeverInserted
)

type slot[T any] struct {
	gen        uint32
	state      uint8
	additional bool
	tag        T
	task       wakeTask
	prev, next slotKey
}

// Fallback op kinds.
const (
	opInsert uint8 = iota
	opNotify
)

// pendingOp is one operation parked in the fallback queue while the
// primary store is contended.
type pendingOp[T any] struct {
	next  *pendingOp[T]
	kind  uint8
	notif Notification[T] // opNotify
	key   slotKey         // opInsert: assigned by the drainer, read under the primary lock
}

// opStack is the secondary append-only queue: a lock-free LIFO that the
// drainer reverses so ops apply in push order. Ops parked here are
// included eventually, in approximately insertion order; synchronous FIFO
// holds only on the uncontended path.
type opStack[T any] struct {
	top atomic.Pointer[pendingOp[T]]
}

func (s *opStack[T]) push(op *pendingOp[T]) {
	for {
		top := s.top.Load()
		op.next = top
		if s.top.CompareAndSwap(top, op) {
			return
		}
	}
}

func (s *opStack[T]) empty() bool {
	return s.top.Load() == nil
}

// popAll detaches every queued op and returns them oldest first.
func (s *opStack[T]) popAll() *pendingOp[T] {
	top := s.top.Swap(nil)
	var rev *pendingOp[T]
	for top != nil {
		next := top.next
		top.next = rev
		rev = top
		top = next
	}
	return rev
}

// inner is the lazily-created shared state of an Event, owned jointly by
// the Event handle and every live Listener registered against it (the GC
// collects it once the last owner is gone).
type inner[T any] struct {
	// notified mirrors list.notified for the lock-free notify fast path.
	// math.MaxUint64 while the list is empty, so notifying an event
	// nobody listens to costs one atomic load.
	notified atomic.Uint64

	_ [opt.CacheLineSize_]byte

	// held guards the primary store below. Acquired with a single CAS;
	// insert and notify fall back to the op queue instead of waiting.
	held  atomic.Uint32
	queue opStack[T]

	// list is the primary store; touched only while held is owned.
	list waiterList[T]
}

func newInner[T any]() *inner[T] {
	in := &inner[T]{}
	in.notified.Store(math.MaxUint64)
	return in
}

func (in *inner[T]) tryLock() bool {
	return in.held.CompareAndSwap(0, 1)
}

// lock spin-acquires the primary store. Used by operations that must
// return a synchronous answer (register, remove); critical sections are a
// few pointer updates, so adaptive spinning beats parking.
func (in *inner[T]) lock() {
	if in.tryLock() {
		return
	}
	var spins int
	for {
		delay(&spins)
		if in.held.Load() == 0 && in.tryLock() {
			return
		}
	}
}

// drainLocked applies fallback ops in push order. Caller owns held.
func (in *inner[T]) drainLocked() {
	if in.queue.empty() {
		return
	}
	// Drop the sentinel before the ops leave the queue. Once popAll runs
	// the queue looks empty, and "sentinel plus empty queue" is the state
	// the notify fast path trusts to mean no waiters exist.
	in.notified.CompareAndSwap(math.MaxUint64, 0)
	op := in.queue.popAll()
	for op != nil {
		next := op.next
		op.next = nil // insert ops outlive the drain; don't retain the chain
		switch op.kind {
		case opInsert:
			op.key = in.list.insert()
		case opNotify:
			in.list.notify(op.notif)
		}
		op = next
	}
}

// release publishes the notified count, hands out pending wakeups, and
// drops the lock. Ops that raced into the queue while the lock was owned
// are drained before returning, so a contender that failed its tryLock is
// never stranded: either it re-acquires, or we see its op.
//
// Wake handles run strictly after the lock is dropped; a Waker is allowed
// to call straight back into the event.
func (in *inner[T]) release() {
	var wakes []wakeTask
	for {
		in.syncNotified()
		if len(in.list.wakes) > 0 {
			wakes = append(wakes, in.list.wakes...)
			in.list.wakes = in.list.wakes[:0]
		}
		in.held.Store(0)
		if in.queue.empty() || !in.tryLock() {
			break
		}
		in.drainLocked()
	}
	for i := range wakes {
		wakes[i].wake()
	}
}

// syncNotified publishes the notified count. The sentinel goes out only
// when the list is empty AND nothing is parked in the fallback queue: a
// queued insert is a live waiter the list cannot see yet, and publishing
// the sentinel over it would let the notify fast path skip a notification
// sent after that waiter's Listen returned.
func (in *inner[T]) syncNotified() {
	if in.list.len == 0 {
		if in.queue.empty() {
			in.notified.Store(math.MaxUint64)
		} else {
			in.notified.Store(0)
		}
	} else {
		in.notified.Store(uint64(in.list.notified))
	}
}

// flush opportunistically drains the fallback queue. Called after a push
// that followed a failed tryLock: of the pusher and the lock owner, at
// least one observes the other, so the op cannot be stranded.
func (in *inner[T]) flush() {
	if !in.queue.empty() && in.tryLock() {
		in.drainLocked()
		in.release()
	}
}

// insert adds a waiter in the created state. It returns the waiter's key,
// or nil key plus the queued op that the next drainer will assign it
// through.
func (in *inner[T]) insert() (slotKey, *pendingOp[T]) {
	if in.tryLock() {
		in.drainLocked()
		key := in.list.insert()
		in.release()
		return key, nil
	}
	op := &pendingOp[T]{kind: opInsert}
	in.queue.push(op)
	// A queued waiter exists now even though the list looks empty; clear
	// the sentinel so a concurrent notify cannot fast-path past it.
	in.notified.CompareAndSwap(math.MaxUint64, 0)
	in.flush()
	return 0, op
}

// notify promotes waiters per n, or parks the request in the fallback
// queue when the primary store is contended. Never blocks.
func (in *inner[T]) notify(n Notification[T]) {
	if in.tryLock() {
		in.drainLocked()
		in.list.notify(n)
		in.release()
		return
	}
	in.queue.push(&pendingOp[T]{kind: opNotify, notif: n})
	in.flush()
}

// register attaches l's wake handle, reporting regNotified (with the tag)
// if a notification already arrived.
func (in *inner[T]) register(l *Listener[T], t wakeTask) (uint8, T) {
	in.lock()
	in.drainLocked()
	l.resolve()
	res, tag := in.list.register(l.key, t)
	in.release()
	return res, tag
}

// remove detaches l from the registry. ok is false if l was never
// inserted. propagate re-delivers an unconsumed notification to the next
// waiter in line.
func (in *inner[T]) remove(l *Listener[T], propagate bool) (state uint8, tag T, ok bool) {
	in.lock()
	in.drainLocked()
	l.resolve()
	if l.key == 0 {
		in.release()
		return 0, tag, false
	}
	state, tag = in.list.remove(l.key, propagate)
	in.release()
	return state, tag, true
}

// waiterList is the primary store: an arena of recyclable slots linked in
// insertion order. Insertion order is the fairness contract; notify
// satisfies the earliest-inserted unsatisfied waiters first.
type waiterList[T any] struct {
	slots []slot[T]
	free  []uint32

	head, tail slotKey
	// start is the earliest slot not yet notified; zero when every slot
	// (or no slot) awaits notification.
	start slotKey

	len      int
	notified int

	// wakes collects handles promoted while the lock is owned; release
	// invokes them after dropping it.
	wakes []wakeTask
}

func (l *waiterList[T]) at(k slotKey) *slot[T] {
	s := &l.slots[k.index()]
	if s.gen != k.gen() {
		panic("event: stale waiter key")
	}
	return s
}

// insert appends a created slot at the logical tail and returns its key.
func (l *waiterList[T]) insert() slotKey {
	var idx uint32
	if n := len(l.free); n > 0 {
		idx = l.free[n-1]
		l.free = l.free[:n-1]
	} else {
		l.slots = append(l.slots, slot[T]{})
		idx = uint32(len(l.slots) - 1)
	}
	s := &l.slots[idx]
	key := makeKey(idx, s.gen)
	s.state = stateCreated
	s.prev, s.next = l.tail, 0
	if l.tail != 0 {
		l.at(l.tail).next = key
	} else {
		l.head = key
	}
	l.tail = key
	if l.start == 0 {
		l.start = key
	}
	l.len++
	return key
}

// notifyNext promotes the earliest unsatisfied waiter and queues its wake
// handle. Reports false when every waiter is already satisfied.
func (l *waiterList[T]) notifyNext(n Notification[T]) bool {
	key := l.start
	if key == 0 {
		return false
	}
	s := l.at(key)
	l.start = s.next
	s.state = stateNotified
	s.additional = n.additional
	s.tag = n.nextTag()
	if !s.task.isZero() {
		l.wakes = append(l.wakes, s.task)
		s.task = wakeTask{}
	}
	l.notified++
	return true
}

// notify applies one notification. Non-additional counts are cumulative:
// waiters are promoted only until the running notified count reaches
// n.count. Additional counts always promote n.count more.
func (l *waiterList[T]) notify(n Notification[T]) {
	if n.additional {
		for i := 0; i < n.count; i++ {
			if !l.notifyNext(n) {
				break
			}
		}
		return
	}
	for l.notified < n.count {
		if !l.notifyNext(n) {
			break
		}
	}
}

// register attaches (or replaces) the wake handle on k. If k was already
// notified, the tag is consumed and the slot moves to notifiedTaken.
func (l *waiterList[T]) register(k slotKey, t wakeTask) (uint8, T) {
	var zero T
	if k == 0 {
		return regNeverInserted, zero
	}
	s := l.at(k)
	switch s.state {
	case stateCreated:
		s.state = stateTask
		s.task = t
	case stateTask:
		if !s.task.willWake(t) {
			s.task = t
		}
	case stateNotified:
		s.state = stateNotifiedTaken
		tag := s.tag
		s.tag = zero
		return regNotified, tag
	case stateNotifiedTaken:
		panic("event: notification taken twice")
	}
	return regRegistered, zero
}

// remove unlinks slot k and recycles it, returning its final state and
// tag. If propagate is set and k held a notification that was never
// consumed, that notification is handed to the next unsatisfied waiter in
// line instead of being lost.
func (l *waiterList[T]) remove(k slotKey, propagate bool) (uint8, T) {
	s := l.at(k)
	state, tag, additional := s.state, s.tag, s.additional

	if s.prev != 0 {
		l.at(s.prev).next = s.next
	} else {
		l.head = s.next
	}
	if s.next != 0 {
		l.at(s.next).prev = s.prev
	} else {
		l.tail = s.prev
	}
	if l.start == k {
		l.start = s.next
	}

	// Recycle under a new generation so the outgoing key goes stale.
	var zero T
	s.gen++
	s.state = stateCreated
	s.additional = false
	s.tag = zero
	s.task = wakeTask{}
	s.prev, s.next = 0, 0
	l.free = append(l.free, k.index())
	l.len--

	switch state {
	case stateNotified:
		l.notified--
		if propagate {
			// Cascade: exactly one more waiter receives the departed
			// notification, carrying the same tag and accounting kind.
			l.notifyNext(Notification[T]{
				additional: additional,
				tag:        func() T { return tag },
			})
		}
	case stateNotifiedTaken:
		l.notified--
	}
	return state, tag
}
