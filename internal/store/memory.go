package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"myplaces/internal/model"
)

// Memory is a simple in-memory store used when no database DSN is set.
type Memory struct {
	mu     sync.Mutex
	places map[string]model.Place // id -> place
	order  []string               // insertion order
}

func NewMemory() *Memory {
	return &Memory{places: map[string]model.Place{}}
}

func (m *Memory) CreatePlace(ctx context.Context, in model.PlaceInput) (model.Place, error) {
	in, err := validate(in)
	if err != nil {
		return model.Place{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := model.Place{ID: uuid.New().String()}
	in.Apply(&p)
	m.places[p.ID] = p
	m.order = append(m.order, p.ID)
	return p, nil
}

func (m *Memory) UpdatePlace(ctx context.Context, id string, in model.PlaceInput) (model.Place, error) {
	in, err := validate(in)
	if err != nil {
		return model.Place{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[id]
	if !ok {
		return model.Place{}, ErrNotFound
	}
	in.Apply(&p)
	m.places[id] = p
	return p, nil
}

func (m *Memory) DeletePlace(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.places[id]; !ok {
		return ErrNotFound
	}
	delete(m.places, id)
	out := m.order[:0]
	for _, x := range m.order {
		if x != id {
			out = append(out, x)
		}
	}
	m.order = out
	return nil
}

func (m *Memory) GetPlace(ctx context.Context, id string) (model.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[id]
	if !ok {
		return model.Place{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlaces(ctx context.Context, s model.Sort) ([]model.Place, error) {
	m.mu.Lock()
	out := make([]model.Place, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.places[id])
	}
	m.mu.Unlock()
	SortPlaces(out, s)
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
