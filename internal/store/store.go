package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"myplaces/internal/model"
)

// Store is the persistence interface for places. Implementations are
// constructed explicitly and must be closed by their owner.
type Store interface {
	CreatePlace(ctx context.Context, in model.PlaceInput) (model.Place, error)
	UpdatePlace(ctx context.Context, id string, in model.PlaceInput) (model.Place, error)
	DeletePlace(ctx context.Context, id string) error
	GetPlace(ctx context.Context, id string) (model.Place, error)
	// ListPlaces returns every persisted place ordered by s.
	ListPlaces(ctx context.Context, s model.Sort) ([]model.Place, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidPlace = errors.New("invalid place")
)

// Save persists p: unsaved places are created, persisted ones are updated in
// place.
func Save(ctx context.Context, s Store, p model.Place) (model.Place, error) {
	if p.Persisted() {
		return s.UpdatePlace(ctx, p.ID, p.Input())
	}
	return s.CreatePlace(ctx, p.Input())
}

func validate(in model.PlaceInput) (model.PlaceInput, error) {
	in = in.Normalize()
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", ErrInvalidPlace)
	}
	return in, nil
}

// SortPlaces orders places in place by s. Ties fall back to name and then id
// so the order is total.
func SortPlaces(places []model.Place, s model.Sort) {
	less := func(a, b model.Place) bool {
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if s.Key == model.SortByRating && a.Rating != b.Rating {
			return a.Rating < b.Rating
		}
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	}
	sort.SliceStable(places, func(i, j int) bool {
		if s.Ascending {
			return less(places[i], places[j])
		}
		return less(places[j], places[i])
	})
}
