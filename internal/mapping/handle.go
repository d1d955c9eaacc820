package mapping

import (
	"context"
	"sync"
)

// Handle tracks one in-flight coordinator operation.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	canceled func() // terminal callback reporting ErrCanceled
	release  func()
}

func newHandle() *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Cancel asks the operation to stop. Its terminal callback then reports
// ErrCanceled unless it already ran.
func (h *Handle) Cancel() { h.cancel() }

// Canceled reports whether Cancel was called.
func (h *Handle) Canceled() bool { return h.ctx.Err() != nil }

// Done is closed after the terminal callback has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// finish runs the terminal callback exactly once.
func (h *Handle) finish(fn func()) {
	h.once.Do(func() {
		if fn != nil {
			fn()
		}
		h.cancel()
		if h.release != nil {
			h.release()
		}
		close(h.done)
	})
}

// abort cancels h and ends it with its ErrCanceled callback unless it
// already finished.
func (h *Handle) abort() {
	h.cancel()
	h.finish(h.canceled)
}
