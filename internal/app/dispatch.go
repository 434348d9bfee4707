package app

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Dispatcher serializes session work onto one goroutine. Signaling
// events, media events, probe results and user commands all go through
// it, so no two handlers ever run concurrently and each closure is one
// atomic reconciliation step.
type Dispatcher struct {
	queue    chan func()
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(size int) *Dispatcher {
	return &Dispatcher{
		queue:    make(chan func(), size),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Run drains the queue until Stop. Each closure executes to completion
// before the next is taken.
func (d *Dispatcher) Run() {
	defer close(d.finished)
	for {
		select {
		case <-d.done:
			return
		case fn := <-d.queue:
			fn()
		}
	}
}

// Post enqueues fn without blocking. It reports false when the
// dispatcher is stopped or the queue is full; the closure is dropped
// in that case, never run late. Post must not block: the loop itself
// may be waiting on the caller, as teardown does on the probe.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.queue <- fn:
		return true
	default:
		log.Debug().Str("module", "app.dispatch").Msg("queue full, closure dropped")
		return false
	}
}

// Stop ends the loop. Queued closures that were not yet taken are
// dropped; no closure runs after Wait returns.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		log.Debug().Str("module", "app.dispatch").Msg("dispatcher stopped")
	})
}

// Wait blocks until the Run loop has exited.
func (d *Dispatcher) Wait() {
	<-d.finished
}
