package event

import (
	"context"
	"sync"
	"time"
)

// parker blocks one goroutine until another unparks it. The capacity-1
// channel carries a wakeup token, so an unpark that arrives before the
// park is not lost, and repeated unparks coalesce into one token.
type parker struct {
	ch chan struct{}
}

var parkerPool = sync.Pool{
	New: func() any {
		return &parker{ch: make(chan struct{}, 1)}
	},
}

func getParker() *parker {
	p := parkerPool.Get().(*parker)
	// Drop a token a previous owner left behind. A late unpark racing
	// with this drain surfaces as a spurious wakeup for the next owner,
	// which wait loops absorb by re-checking their state.
	select {
	case <-p.ch:
	default:
	}
	return p
}

func putParker(p *parker) {
	parkerPool.Put(p)
}

// park blocks until unparked.
func (p *parker) park() {
	<-p.ch
}

// parkTimeout blocks until unparked or until d elapses, and reports
// whether it was unparked.
func (p *parker) parkTimeout(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-p.ch:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.ch:
		return true
	case <-t.C:
		return false
	}
}

// parkContext blocks until unparked or until ctx is done, and reports
// whether it was unparked.
func (p *parker) parkContext(ctx context.Context) bool {
	select {
	case <-p.ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// unpark deposits the wakeup token without blocking.
func (p *parker) unpark() {
	select {
	case p.ch <- struct{}{}:
	default:
	}
}
