package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myplaces/internal/model"
)

// backends returns the stores that run without external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	lite, err := NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]Store{"memory": NewMemory(), "sqlite": lite}
}

func names(ps []model.Place) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestStoreCRUD(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p, err := s.CreatePlace(ctx, model.PlaceInput{Name: "Oskar", Location: "Main St", Type: "cafe", Rating: 4, ImageData: []byte{1, 2}})
			require.NoError(t, err)
			assert.True(t, p.Persisted())

			got, err := s.GetPlace(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, p, got)

			up, err := s.UpdatePlace(ctx, p.ID, model.PlaceInput{Name: "Oskar Bar", Rating: 9})
			require.NoError(t, err)
			assert.Equal(t, model.MaxRating, up.Rating)
			assert.Empty(t, up.Location)

			got, err = s.GetPlace(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Oskar Bar", got.Name)
			assert.Nil(t, got.ImageData)

			require.NoError(t, s.DeletePlace(ctx, p.ID))
			_, err = s.GetPlace(ctx, p.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.DeletePlace(ctx, p.ID), ErrNotFound)
			_, err = s.UpdatePlace(ctx, p.ID, model.PlaceInput{Name: "x"})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRejectsNamelessPlace(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreatePlace(context.Background(), model.PlaceInput{Name: "   "})
			assert.ErrorIs(t, err, ErrInvalidPlace)
		})
	}
}

func TestStoreListSorted(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, in := range []model.PlaceInput{{Name: "B", Rating: 3}, {Name: "a", Rating: 4.5}, {Name: "C", Rating: 1}} {
				_, err := s.CreatePlace(ctx, in)
				require.NoError(t, err)
			}
			ps, err := s.ListPlaces(ctx, model.Sort{Key: model.SortByRating, Ascending: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"C", "B", "a"}, names(ps))

			ps, err = s.ListPlaces(ctx, model.Sort{Key: model.SortByRating})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "B", "C"}, names(ps))

			ps, err = s.ListPlaces(ctx, model.Sort{Key: model.SortByName, Ascending: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "B", "C"}, names(ps))
		})
	}
}

func TestStoreListSortsNonASCIINames(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, n := range []string{"Ёлки-Палки", "Едем", "Victoria Garden", "БУБА Хінкальна", "Servant еда & люди"} {
				_, err := s.CreatePlace(ctx, model.PlaceInput{Name: n})
				require.NoError(t, err)
			}
			want := []string{"Servant еда & люди", "Victoria Garden", "БУБА Хінкальна", "Едем", "Ёлки-Палки"}

			ps, err := s.ListPlaces(ctx, model.Sort{Key: model.SortByName, Ascending: true})
			require.NoError(t, err)
			assert.Equal(t, want, names(ps))

			ps, err = s.ListPlaces(ctx, model.Sort{Key: model.SortByName})
			require.NoError(t, err)
			reversed := make([]string, len(want))
			for i, n := range want {
				reversed[len(want)-1-i] = n
			}
			assert.Equal(t, reversed, names(ps))
		})
	}
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	p, err := Save(ctx, s, model.Place{Name: "Vano"})
	require.NoError(t, err)
	require.True(t, p.Persisted())
	p.Rating = 2
	p2, err := Save(ctx, s, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, p2.ID)
	ps, _ := s.ListPlaces(ctx, model.Sort{Key: model.SortByName, Ascending: true})
	assert.Len(t, ps, 1)
	assert.Equal(t, 2.0, ps[0].Rating)
}

func TestNotifyingPublishesChanges(t *testing.T) {
	ctx := context.Background()
	n := WithEvents(NewMemory())
	ch, cancel := n.Subscribe()
	defer cancel()

	p, err := n.CreatePlace(ctx, model.PlaceInput{Name: "Presto"})
	require.NoError(t, err)
	_, err = n.UpdatePlace(ctx, p.ID, model.PlaceInput{Name: "Presto 2"})
	require.NoError(t, err)
	require.NoError(t, n.DeletePlace(ctx, p.ID))
	_, err = n.CreatePlace(ctx, model.PlaceInput{})
	require.Error(t, err)

	var kinds []ChangeKind
	for i := 0; i < 3; i++ {
		c := <-ch
		assert.Equal(t, p.ID, c.Place.ID)
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []ChangeKind{Created, Updated, Deleted}, kinds)
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %+v", c)
	default:
	}

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(context.Background(), "", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(context.Background(), "sqlite::memory:", "")
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLite{}, s)
}
