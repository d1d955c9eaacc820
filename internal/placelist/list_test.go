package placelist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"myplaces/internal/model"
	"myplaces/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seed(t *testing.T, s store.Store, in ...model.PlaceInput) {
	t.Helper()
	for _, p := range in {
		_, err := s.CreatePlace(context.Background(), p)
		require.NoError(t, err)
	}
}

func names(ps []model.Place) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func ratings(ps []model.Place) []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Rating
	}
	return out
}

func TestSortByRatingAndToggle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s,
		model.PlaceInput{Name: "B", Rating: 3.0},
		model.PlaceInput{Name: "A", Rating: 4.5},
		model.PlaceInput{Name: "C", Rating: 1.0},
	)
	l := New(s, nil)
	require.NoError(t, l.Reload(ctx))

	l.SetSortKey(model.SortByRating)
	assert.Equal(t, []float64{1.0, 3.0, 4.5}, ratings(l.Visible()))

	l.ToggleDirection()
	assert.Equal(t, []float64{4.5, 3.0, 1.0}, ratings(l.Visible()))

	// switching key keeps the direction and re-sorts from scratch
	l.SetSortKey(model.SortByName)
	assert.Equal(t, []string{"C", "B", "A"}, names(l.Visible()))
	l.ToggleDirection()
	assert.Equal(t, []string{"A", "B", "C"}, names(l.Visible()))
	assert.Equal(t, model.Sort{Key: model.SortByName, Ascending: true}, l.Sort())
}

func TestFilter(t *testing.T) {
	places := []model.Place{
		{Name: "Cafe A", Location: "Main St", Type: "cafe"},
		{Name: "Diner B", Location: "Side Rd", Type: "diner"},
	}
	assert.Equal(t, []string{"Cafe A"}, names(Filter(places, "main")))
	assert.Equal(t, []string{"Diner B"}, names(Filter(places, "DINER")))
	assert.Equal(t, []string{"Cafe A", "Diner B"}, names(Filter(places, "")))
	assert.Empty(t, Filter(places, "pizza"))
	// whitespace is part of the query
	assert.Equal(t, []string{"Cafe A"}, names(Filter(places, "main ")))
	assert.Empty(t, Filter(places, " main"))
	assert.Empty(t, Filter(places, "   "))
	assert.Equal(t, "Cafe A", places[0].Name)
}

func TestSearchSession(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s,
		model.PlaceInput{Name: "Cafe A", Location: "Main St", Type: "cafe"},
		model.PlaceInput{Name: "Diner B", Location: "Side Rd", Type: "diner"},
	)
	l := New(s, nil)
	require.NoError(t, l.Reload(ctx))

	l.Search("")
	assert.False(t, l.Filtering())
	assert.Equal(t, 2, l.Len())

	l.Search("main")
	assert.True(t, l.Filtering())
	assert.Equal(t, []string{"Cafe A"}, names(l.Visible()))

	l.Search("   ")
	assert.True(t, l.Filtering())
	assert.Zero(t, l.Len())

	l.Search("main  ")
	assert.True(t, l.Filtering())
	assert.Empty(t, l.Visible())

	l.EndSearch()
	assert.Equal(t, []string{"Cafe A", "Diner B"}, names(l.Visible()))
}

func TestDeleteAt(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s,
		model.PlaceInput{Name: "A"},
		model.PlaceInput{Name: "B"},
		model.PlaceInput{Name: "C"},
		model.PlaceInput{Name: "D"},
	)
	l := New(s, nil)
	require.NoError(t, l.Reload(ctx))

	victim, err := l.At(1)
	require.NoError(t, err)
	require.NoError(t, l.DeleteAt(ctx, 1))

	assert.Equal(t, []string{"A", "C", "D"}, names(l.Visible()))
	_, err = s.GetPlace(ctx, victim.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	left, err := s.ListPlaces(ctx, model.Sort{Key: model.SortByName, Ascending: true})
	require.NoError(t, err)
	assert.Len(t, left, 3)

	assert.ErrorIs(t, l.DeleteAt(ctx, 9), store.ErrNotFound)
}

func TestDeleteAtUsesVisibleIndex(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s,
		model.PlaceInput{Name: "Cafe A", Location: "Main St"},
		model.PlaceInput{Name: "Cafe B", Location: "Main St"},
		model.PlaceInput{Name: "Diner C", Location: "Side Rd"},
	)
	l := New(s, nil)
	require.NoError(t, l.Reload(ctx))
	l.Search("main")
	require.NoError(t, l.DeleteAt(ctx, 1))
	assert.Equal(t, []string{"Cafe A"}, names(l.Visible()))
	l.EndSearch()
	assert.Equal(t, []string{"Cafe A", "Diner C"}, names(l.Visible()))
}

func TestSaveReloads(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	l := New(s, nil)
	require.NoError(t, l.Reload(ctx))

	p, err := l.Save(ctx, model.Place{Name: "New", Rating: 4})
	require.NoError(t, err)
	require.True(t, p.Persisted())
	assert.Equal(t, 1, l.Len())

	p.Name = "Renamed"
	_, err = l.Save(ctx, p)
	require.NoError(t, err)
	got, err := l.At(0)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestWatchReloadsOnExternalChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := store.WithEvents(store.NewMemory())
	l := New(n, nil)
	require.NoError(t, l.Reload(ctx))

	done := make(chan struct{})
	go func() {
		l.Watch(ctx, n)
		close(done)
	}()
	// Subscribe happens inside Watch; retry the write until it is seen.
	require.Eventually(t, func() bool {
		if l.Len() == 0 {
			_, _ = n.CreatePlace(ctx, model.PlaceInput{Name: "External"})
		}
		time.Sleep(5 * time.Millisecond)
		return l.Len() > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
