// Package dispatch provides the single execution context that owns UI state.
//
// Every continuation that touches a map surface, a screen readout or an alert
// overlay is posted to a Queue and runs on its one goroutine in FIFO order.
package dispatch

import (
	"sync"
	"time"
)

// Executor runs functions on a designated goroutine.
type Executor interface {
	// Post schedules fn to run after everything already posted.
	Post(fn func())
	// After schedules fn to run once d has elapsed.
	After(d time.Duration, fn func())
}

// Queue is an Executor backed by one goroutine. The zero value is not usable;
// call NewQueue.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
	timers map[*time.Timer]struct{}
}

// NewQueue starts the queue goroutine.
func NewQueue() *Queue {
	q := &Queue{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		timers: map[*time.Timer]struct{}{},
	}
	go q.loop()
	return q
}

func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) After(d time.Duration, fn func()) {
	if d <= 0 {
		q.Post(fn)
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		q.mu.Lock()
		delete(q.timers, t)
		q.mu.Unlock()
		q.Post(fn)
	})
	q.timers[t] = struct{}{}
}

// Sync posts fn and waits until it has run. It returns false when the queue
// is closed before fn could run. Must not be called from the queue goroutine.
func (q *Queue) Sync(fn func()) bool {
	ran := make(chan struct{})
	q.Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return true
	case <-q.done:
		return false
	}
}

// Close stops pending timers, drops queued work and waits for the running
// task to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = nil
	q.tasks = nil
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)
	for range q.wake {
		for {
			q.mu.Lock()
			if q.closed {
				q.mu.Unlock()
				return
			}
			if len(q.tasks) == 0 {
				q.mu.Unlock()
				break
			}
			fn := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			fn()
		}
	}
}
