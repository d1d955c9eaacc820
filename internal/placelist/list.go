// Package placelist is the list controller over persisted places: one sort
// key with a direction toggle, a search filter over the sorted set, and
// delete by visible index.
package placelist

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"myplaces/internal/model"
	"myplaces/internal/store"
)

// Watcher delivers store mutations. *store.Notifying implements it.
type Watcher interface {
	Subscribe() (<-chan store.Change, func())
}

// List holds the sorted set and the visible projection.
type List struct {
	store store.Store
	log   *zap.Logger

	mu        sync.Mutex
	places    []model.Place
	sort      model.Sort
	searching bool
	query     string
}

// New returns a List sorted by name, ascending. Call Reload to populate it.
func New(s store.Store, log *zap.Logger) *List {
	if log == nil {
		log = zap.NewNop()
	}
	return &List{store: s, log: log, sort: model.Sort{Key: model.SortByName, Ascending: true}}
}

// Reload re-reads the full set from the store in the current order.
func (l *List) Reload(ctx context.Context) error {
	l.mu.Lock()
	s := l.sort
	l.mu.Unlock()
	places, err := l.store.ListPlaces(ctx, s)
	if err != nil {
		return fmt.Errorf("list places: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// a sort change may have raced the read
	if l.sort != s {
		store.SortPlaces(places, l.sort)
	}
	l.places = places
	return nil
}

// Sort returns the current key and direction.
func (l *List) Sort() model.Sort {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sort
}

// SetSortKey re-sorts by key, keeping the current direction.
func (l *List) SetSortKey(key model.SortKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sort.Key = key
	store.SortPlaces(l.places, l.sort)
}

// ToggleDirection flips ascending and descending and re-sorts.
func (l *List) ToggleDirection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sort.Ascending = !l.sort.Ascending
	store.SortPlaces(l.places, l.sort)
}

// Search engages a search session with query. The query is matched as
// given, whitespace included.
func (l *List) Search(query string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searching = true
	l.query = query
}

// EndSearch leaves the search session; the full set becomes visible again.
func (l *List) EndSearch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searching = false
	l.query = ""
}

// Filtering reports whether a non-empty search is active.
func (l *List) Filtering() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filtering()
}

func (l *List) filtering() bool {
	return l.searching && l.query != ""
}

// Visible returns a copy of the visible projection.
func (l *List) Visible() []model.Place {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visible()
}

func (l *List) visible() []model.Place {
	if l.filtering() {
		return Filter(l.places, l.query)
	}
	return append([]model.Place(nil), l.places...)
}

// Len is the number of visible rows.
func (l *List) Len() int {
	return len(l.Visible())
}

// At returns the place shown at visible index i, for handing to the
// detail form.
func (l *List) At(i int) (model.Place, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.visible()
	if i < 0 || i >= len(v) {
		return model.Place{}, fmt.Errorf("row %d: %w", i, store.ErrNotFound)
	}
	return v[i], nil
}

// DeleteAt deletes the place at visible index i from the store and drops
// exactly that row.
func (l *List) DeleteAt(ctx context.Context, i int) error {
	p, err := l.At(i)
	if err != nil {
		return err
	}
	if err := l.store.DeletePlace(ctx, p.ID); err != nil {
		return fmt.Errorf("delete place %s: %w", p.ID, err)
	}
	l.mu.Lock()
	l.remove(p.ID)
	l.mu.Unlock()
	l.log.Debug("place deleted", zap.String("id", p.ID), zap.Int("row", i))
	return nil
}

func (l *List) remove(id string) {
	for j, q := range l.places {
		if q.ID == id {
			l.places = append(l.places[:j], l.places[j+1:]...)
			return
		}
	}
}

// Save persists a place coming back from the detail form and reloads.
func (l *List) Save(ctx context.Context, p model.Place) (model.Place, error) {
	saved, err := store.Save(ctx, l.store, p)
	if err != nil {
		return model.Place{}, err
	}
	return saved, l.Reload(ctx)
}

// Watch reloads the list after every store change until ctx is done.
func (l *List) Watch(ctx context.Context, w Watcher) {
	changes, cancel := w.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := l.Reload(ctx); err != nil && ctx.Err() == nil {
				l.log.Warn("reload after change failed", zap.String("kind", string(c.Kind)), zap.Error(err))
			}
		}
	}
}

// Filter returns the places whose name, location or type contains query,
// ignoring case. An empty query returns every place. places is not
// modified.
func Filter(places []model.Place, query string) []model.Place {
	q := strings.ToLower(query)
	out := make([]model.Place, 0, len(places))
	for _, p := range places {
		if q == "" || contains(p.Name, q) || contains(p.Location, q) || contains(p.Type, q) {
			out = append(out, p)
		}
	}
	return out
}

func contains(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}
