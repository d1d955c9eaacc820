package mapping

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"myplaces/internal/dispatch"
	"myplaces/internal/model"
)

type fakeLocation struct {
	mu        sync.Mutex
	enabled   bool
	status    AuthorizationStatus
	current   *model.Coordinate
	requested int
	updating  int
}

func (f *fakeLocation) ServicesEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeLocation) AuthorizationStatus() AuthorizationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeLocation) RequestWhenInUseAuthorization() {
	f.mu.Lock()
	f.requested++
	f.mu.Unlock()
}

func (f *fakeLocation) CurrentLocation() (model.Coordinate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return model.Coordinate{}, false
	}
	return *f.current, true
}

func (f *fakeLocation) StartUpdatingLocation() {
	f.mu.Lock()
	f.updating++
	f.mu.Unlock()
}

func (f *fakeLocation) set(status AuthorizationStatus) {
	f.mu.Lock()
	f.status = status
	f.mu.Unlock()
}

// fakeGeocoder answers from fixed tables. Reverse blocks until ctx is
// canceled when block is set for the coordinate.
type fakeGeocoder struct {
	forward map[string][]Placemark
	reverse map[model.Coordinate][]Placemark
	block   map[model.Coordinate]bool
	err     error
}

func (g *fakeGeocoder) Forward(ctx context.Context, address string) ([]Placemark, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.forward[address], nil
}

func (g *fakeGeocoder) Reverse(ctx context.Context, c model.Coordinate) ([]Placemark, error) {
	if g.block[c] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.reverse[c], nil
}

// blockingRouter parks each request until it is canceled or handed routes.
type blockingRouter struct {
	mu      sync.Mutex
	calls   []RouteRequest
	release chan []Route
	err     error
}

func newBlockingRouter() *blockingRouter {
	return &blockingRouter{release: make(chan []Route)}
}

func (r *blockingRouter) Directions(ctx context.Context, req RouteRequest) ([]Route, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case routes := <-r.release:
		return routes, nil
	}
}

type recordingSurface struct {
	mu          sync.Mutex
	events      []string
	annotations []Annotation
	selected    *Annotation
	overlays    [][]model.Coordinate
	center      model.Coordinate
}

func (s *recordingSurface) record(format string, args ...any) {
	s.events = append(s.events, fmt.Sprintf(format, args...))
}

func (s *recordingSurface) ShowAnnotations(a ...Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations = append(s.annotations, a...)
	s.record("annotations %d", len(a))
}

func (s *recordingSurface) SelectAnnotation(a Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &a
	s.record("select %s", a.Title)
}

func (s *recordingSurface) SetShowsUserLocation(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("showsUser %t", show)
}

func (s *recordingSurface) SetRegion(r model.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("region %.5f,%.5f %.0f", r.Center.Lat, r.Center.Lng, r.LatitudeMeters)
}

func (s *recordingSurface) AddOverlay(path []model.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays = append(s.overlays, path)
	s.record("overlay %d", len(path))
}

func (s *recordingSurface) RemoveOverlays() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays = nil
	s.record("clear")
}

func (s *recordingSurface) SetVisibleRect(b model.BoundingBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("rect")
}

func (s *recordingSurface) CenterCoordinate() model.Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

func (s *recordingSurface) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (a *recordingAlerter) Present(al Alert) {
	a.mu.Lock()
	a.alerts = append(a.alerts, al)
	a.mu.Unlock()
}

func (a *recordingAlerter) all() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Alert(nil), a.alerts...)
}

type harness struct {
	m       *Manager
	loc     *fakeLocation
	geo     *fakeGeocoder
	router  *blockingRouter
	surface *recordingSurface
	alerts  *recordingAlerter
	q       *dispatch.Queue
}

var home = model.Coordinate{Lat: 52.5200, Lng: 13.4050}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loc:     &fakeLocation{enabled: true, status: AuthorizedWhenInUse, current: &home},
		geo:     &fakeGeocoder{forward: map[string][]Placemark{}, reverse: map[model.Coordinate][]Placemark{}, block: map[model.Coordinate]bool{}},
		router:  newBlockingRouter(),
		surface: &recordingSurface{},
		alerts:  &recordingAlerter{},
		q:       dispatch.NewQueue(),
	}
	m, err := New(Config{
		Location:   h.loc,
		Geocoder:   h.geo,
		Router:     h.router,
		Surface:    h.surface,
		Alerter:    h.alerts,
		Executor:   h.q,
		AlertDelay: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	h.m = m
	t.Cleanup(func() {
		h.q.Close()
		m.Close()
	})
	return h
}

// flush waits until everything posted so far has run.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.True(t, h.q.Sync(func() {}))
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for terminal callback")
	}
}
