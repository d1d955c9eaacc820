package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"myplaces/internal/mapping"
	"myplaces/internal/metrics"
	"myplaces/internal/model"
)

// Registry tracks open sessions by id.
type Registry struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{opts: opts, sessions: map[string]*Session{}}
}

// Open starts a session.
func (r *Registry) Open(mode mapping.Mode, place model.Place) (*Session, error) {
	s, err := New(mode, place, r.opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()
	r.opts.Logger.Info("map session opened", zap.String("session", s.ID), zap.String("mode", string(s.Mode)), zap.String("place", place.ID))
	return s, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close closes and forgets the session. It reports whether it existed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	metrics.ActiveSessions.Dec()
	r.opts.Logger.Info("map session closed", zap.String("session", id))
	return true
}

// Reap closes sessions idle for longer than idle and returns how many.
func (r *Registry) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	var stale []string
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.IdleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()
	n := 0
	for _, id := range stale {
		if r.Close(id) {
			n++
		}
	}
	return n
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Close(id)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
