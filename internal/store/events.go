package store

import (
	"context"
	"sync"

	"myplaces/internal/model"
)

// ChangeKind names a store mutation.
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// Change describes one successful mutation.
type Change struct {
	Kind  ChangeKind
	Place model.Place // for Deleted only ID is set
}

// Notifying wraps a Store and fans out a Change to every subscriber after
// each successful mutation. Slow subscribers miss changes rather than block
// writers.
type Notifying struct {
	Store
	mu   sync.Mutex
	subs map[chan Change]struct{}
}

// WithEvents wraps s.
func WithEvents(s Store) *Notifying {
	return &Notifying{Store: s, subs: map[chan Change]struct{}{}}
}

// Subscribe returns a channel of changes and a function that cancels the
// subscription and closes the channel.
func (n *Notifying) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 16)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			n.mu.Unlock()
			close(ch)
		})
	}
}

func (n *Notifying) publish(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (n *Notifying) CreatePlace(ctx context.Context, in model.PlaceInput) (model.Place, error) {
	p, err := n.Store.CreatePlace(ctx, in)
	if err == nil {
		n.publish(Change{Kind: Created, Place: p})
	}
	return p, err
}

func (n *Notifying) UpdatePlace(ctx context.Context, id string, in model.PlaceInput) (model.Place, error) {
	p, err := n.Store.UpdatePlace(ctx, id, in)
	if err == nil {
		n.publish(Change{Kind: Updated, Place: p})
	}
	return p, err
}

func (n *Notifying) DeletePlace(ctx context.Context, id string) error {
	err := n.Store.DeletePlace(ctx, id)
	if err == nil {
		n.publish(Change{Kind: Deleted, Place: model.Place{ID: id}})
	}
	return err
}
