package mapping

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"myplaces/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRequiresProviders(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestCheckAuthorizationIsIdempotent(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.m.CheckAuthorization(ModeGetAddress))
	h.flush(t)
	first := h.surface.snapshot()
	require.Equal(t, []string{"showsUser true", "region 52.52000,13.40500 1000"}, first)

	require.NoError(t, h.m.CheckAuthorization(ModeGetAddress))
	h.flush(t)
	all := h.surface.snapshot()
	assert.Equal(t, first, all[len(first):])
}

func TestShowPlaceModeDoesNotCenter(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.CheckAuthorization(ModeShowPlace))
	h.flush(t)
	assert.Equal(t, []string{"showsUser true"}, h.surface.snapshot())
}

func TestAuthorizedAlwaysBehavesLikeWhenInUse(t *testing.T) {
	h := newHarness(t)
	h.loc.set(AuthorizedAlways)
	require.NoError(t, h.m.CheckAuthorization(ModeGetAddress))
	h.flush(t)
	assert.Len(t, h.surface.snapshot(), 2)
}

func TestNotDeterminedRequestsPermission(t *testing.T) {
	h := newHarness(t)
	h.loc.set(NotDetermined)
	require.NoError(t, h.m.CheckAuthorization(ModeShowPlace))
	h.flush(t)
	assert.Equal(t, 1, h.loc.requested)
	assert.Empty(t, h.surface.snapshot())
}

func TestRestrictedDoesNothing(t *testing.T) {
	h := newHarness(t)
	h.loc.set(Restricted)
	require.NoError(t, h.m.CheckAuthorization(ModeShowPlace))
	time.Sleep(20 * time.Millisecond)
	h.flush(t)
	assert.Empty(t, h.surface.snapshot())
	assert.Empty(t, h.alerts.all())
}

func TestDeniedAlertsOncePerEpisode(t *testing.T) {
	h := newHarness(t)
	h.loc.set(Denied)
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, h.m.CheckAuthorization(ModeShowPlace), ErrAuthorizationDenied)
	}
	require.Eventually(t, func() bool { return len(h.alerts.all()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	alerts := h.alerts.all()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Your Location is not available", alerts[0].Title)
	assert.Equal(t, "To give permission Go to: Settings -> MyPlaces -> Location", alerts[0].Message)

	// a new denial after an authorized spell is a new episode
	h.loc.set(AuthorizedWhenInUse)
	require.NoError(t, h.m.AuthorizationChanged(ModeShowPlace))
	h.loc.set(Denied)
	assert.ErrorIs(t, h.m.AuthorizationChanged(ModeShowPlace), ErrAuthorizationDenied)
	require.Eventually(t, func() bool { return len(h.alerts.all()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestLocationServicesDisabled(t *testing.T) {
	h := newHarness(t)
	h.loc.enabled = false
	assert.ErrorIs(t, h.m.CheckLocationServices(ModeGetAddress), ErrLocationServicesDisabled)
	assert.ErrorIs(t, h.m.CheckLocationServices(ModeGetAddress), ErrLocationServicesDisabled)
	require.Eventually(t, func() bool { return len(h.alerts.all()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	alerts := h.alerts.all()
	require.Len(t, alerts, 1)
	assert.Equal(t, LocationServicesDisabled, alerts[0].Kind)
	assert.Equal(t, "Location Services are Disabled", alerts[0].Title)
	h.flush(t)
	assert.Empty(t, h.surface.snapshot())
}

func TestLocationServicesEnabledChecksAuthorization(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.CheckLocationServices(ModeShowPlace))
	h.flush(t)
	assert.Equal(t, []string{"showsUser true"}, h.surface.snapshot())
}

func TestShowUserLocation(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.m.ShowUserLocation())
	h.flush(t)
	assert.Equal(t, []string{"region 52.52000,13.40500 1000"}, h.surface.snapshot())

	h.loc.mu.Lock()
	h.loc.current = nil
	h.loc.mu.Unlock()
	assert.False(t, h.m.ShowUserLocation())
}

func TestMarkPlace(t *testing.T) {
	h := newHarness(t)
	dest := model.Coordinate{Lat: 48.8584, Lng: 2.2945}
	h.geo.forward["Champ de Mars, Paris"] = []Placemark{{Coordinate: &dest, Name: "Eiffel Tower"}}

	var got model.Coordinate
	var gotErr error
	place := model.Place{Name: "Tower", Location: "Champ de Mars, Paris", Type: "Landmark", ImageData: []byte{1}}
	hd := h.m.MarkPlace(place, func(c model.Coordinate, err error) { got, gotErr = c, err })
	waitDone(t, hd)

	require.NoError(t, gotErr)
	assert.Equal(t, dest, got)
	d, ok := h.m.Destination()
	require.True(t, ok)
	assert.Equal(t, dest, d)
	h.surface.mu.Lock()
	defer h.surface.mu.Unlock()
	require.Len(t, h.surface.annotations, 1)
	assert.Equal(t, Annotation{Title: "Tower", Subtitle: "Landmark", Coordinate: dest, Image: []byte{1}}, h.surface.annotations[0])
	require.NotNil(t, h.surface.selected)
	assert.Equal(t, "Tower", h.surface.selected.Title)
}

func TestMarkPlaceFailures(t *testing.T) {
	cases := []struct {
		name  string
		place model.Place
		setup func(*fakeGeocoder)
	}{
		{"empty address", model.Place{Name: "x"}, nil},
		{"no results", model.Place{Name: "x", Location: "nowhere"}, nil},
		{"no coordinate", model.Place{Name: "x", Location: "vague"}, func(g *fakeGeocoder) {
			g.forward["vague"] = []Placemark{{Name: "somewhere"}}
		}},
		{"provider error", model.Place{Name: "x", Location: "a"}, func(g *fakeGeocoder) {
			g.err = errors.New("boom")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if tc.setup != nil {
				tc.setup(h.geo)
			}
			calls := 0
			var gotErr error
			hd := h.m.MarkPlace(tc.place, func(_ model.Coordinate, err error) { calls++; gotErr = err })
			waitDone(t, hd)
			assert.Equal(t, 1, calls)
			assert.ErrorIs(t, gotErr, ErrGeocode)
			_, ok := h.m.Destination()
			assert.False(t, ok)
			assert.Empty(t, h.surface.snapshot())
			assert.Empty(t, h.alerts.all())
		})
	}
}

func TestReverseGeocodeCancelsPrevious(t *testing.T) {
	h := newHarness(t)
	slow := model.Coordinate{Lat: 1, Lng: 1}
	fast := model.Coordinate{Lat: 2, Lng: 2}
	h.geo.block[slow] = true
	h.geo.reverse[fast] = []Placemark{{Street: "Main St", Number: "7"}}

	var firstErr error
	var second Placemark
	var secondErr error
	first := h.m.ReverseGeocode(slow, func(_ Placemark, err error) { firstErr = err })
	next := h.m.ReverseGeocode(fast, func(p Placemark, err error) { second, secondErr = p, err })
	waitDone(t, first)
	waitDone(t, next)

	assert.ErrorIs(t, firstErr, ErrCanceled)
	require.NoError(t, secondErr)
	assert.Equal(t, "Main St, 7", FormatAddress(second))
}

func TestReverseGeocodeFailure(t *testing.T) {
	h := newHarness(t)
	h.geo.err = errors.New("offline")
	var gotErr error
	hd := h.m.ReverseGeocode(home, func(_ Placemark, err error) { gotErr = err })
	waitDone(t, hd)
	assert.ErrorIs(t, gotErr, ErrReverseGeocode)
	assert.Empty(t, h.alerts.all())
}

func TestReverseGeocodeEmptyResult(t *testing.T) {
	h := newHarness(t)
	var got Placemark
	var gotErr error
	hd := h.m.ReverseGeocode(home, func(p Placemark, err error) { got, gotErr = p, err })
	waitDone(t, hd)
	require.NoError(t, gotErr)
	assert.Equal(t, "", FormatAddress(got))
}

func TestHandleFinishesOnce(t *testing.T) {
	hd := newHandle()
	calls := 0
	hd.finish(func() { calls++ })
	hd.finish(func() { calls++ })
	hd.Cancel()
	assert.Equal(t, 1, calls)
	select {
	case <-hd.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestFailureMatching(t *testing.T) {
	err := fail(RouteUnavailable, errors.New("503"))
	assert.ErrorIs(t, err, ErrRouteUnavailable)
	assert.NotErrorIs(t, err, ErrCanceled)
	assert.Equal(t, "routeUnavailable: 503", err.Error())

	_, ok := AlertFor(GeocodeFailure)
	assert.False(t, ok)
	a, ok := AlertFor(NoDestination)
	require.True(t, ok)
	assert.Equal(t, Alert{Kind: NoDestination, Title: "Error", Message: "Destination is not found"}, a)
}

func TestAuthorizationStatusNames(t *testing.T) {
	for _, s := range []AuthorizationStatus{NotDetermined, Restricted, Denied, AuthorizedAlways, AuthorizedWhenInUse} {
		got, ok := ParseAuthorizationStatus(s.String())
		require.True(t, ok)
		assert.Equal(t, s, got)
	}
	_, ok := ParseAuthorizationStatus("maybe")
	assert.False(t, ok)
}
