// Package session hosts map screens for remote clients. A Session owns one
// map screen with its coordinator, a headless surface, a client-fed
// location service and the UI queue they share; everything they draw or
// alert is published as events.
package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"myplaces/internal/dispatch"
	"myplaces/internal/mapping"
	"myplaces/internal/mapscreen"
	"myplaces/internal/model"
)

// Event is one outward notification.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Publisher fans events out to subscribers of a session.
type Publisher interface {
	Publish(sessionID string, evt Event)
}

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Options are the shared dependencies and tuning for sessions.
type Options struct {
	Geocoder  mapping.Geocoder
	Router    mapping.Router
	Publisher Publisher
	Logger    *zap.Logger

	RegionMeters      float64
	RecenterThreshold float64
	AlertDelay        time.Duration
	RecenterDelay     time.Duration
}

// Snapshot is the full session state.
type Snapshot struct {
	ID       string          `json:"id"`
	Mode     mapping.Mode    `json:"mode"`
	PlaceID  string          `json:"placeId,omitempty"`
	Created  time.Time       `json:"createdAt"`
	Screen   mapscreen.State `json:"screen"`
	Surface  SurfaceState    `json:"surface"`
	Location LocationState   `json:"location"`
	Alerts   []mapping.Alert `json:"alerts"`
	Pending  int             `json:"pendingRoutes"`
	Picked   *string         `json:"pickedAddress,omitempty"`
}

// Session is one open map screen.
type Session struct {
	ID      string
	Mode    mapping.Mode
	PlaceID string
	Created time.Time

	pub      Publisher
	log      *zap.Logger
	queue    *dispatch.Queue
	surface  *Surface
	location *Location
	manager  *mapping.Manager
	screen   *mapscreen.Screen

	mu         sync.Mutex
	closed     bool
	lastActive time.Time
	alerts     []mapping.Alert
	last       mapscreen.State
	picked     *string
}

// New opens a session for mode, showing place when mode is showPlace. The
// screen is loaded before New returns.
func New(mode mapping.Mode, place model.Place, opts Options) (*Session, error) {
	s := &Session{
		ID:         uuid.NewString(),
		Mode:       mode,
		PlaceID:    place.ID,
		Created:    time.Now().UTC(),
		pub:        opts.Publisher,
		log:        opts.Logger,
		queue:      dispatch.NewQueue(),
		lastActive: time.Now(),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.With(zap.String("session", s.ID))
	s.surface = newSurface(s.emit)
	s.location = newLocation(s.emit)

	m, err := mapping.New(mapping.Config{
		Location:          s.location,
		Geocoder:          opts.Geocoder,
		Router:            opts.Router,
		Surface:           s.surface,
		Alerter:           alerter{s},
		Executor:          s.queue,
		Logger:            s.log,
		RegionMeters:      opts.RegionMeters,
		AlertDelay:        opts.AlertDelay,
		RecenterThreshold: opts.RecenterThreshold,
	})
	if err != nil {
		s.queue.Close()
		return nil, err
	}
	s.manager = m
	s.screen, err = mapscreen.New(mapscreen.Config{
		Mode:          mode,
		Place:         place,
		Manager:       m,
		Surface:       s.surface,
		Executor:      s.queue,
		Delegate:      s,
		Logger:        s.log,
		RecenterDelay: opts.RecenterDelay,
		OnChange:      s.screenChanged,
	})
	if err != nil {
		s.queue.Close()
		return nil, err
	}
	s.Mode = s.screen.Mode()
	if err := s.screen.Load(); err != nil {
		s.log.Debug("location not available at load", zap.Error(err))
	}
	return s, nil
}

func (s *Session) emit(typ string, data map[string]any) {
	if s.pub != nil {
		s.pub.Publish(s.ID, Event{Type: typ, Data: data})
	}
}

func (s *Session) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lastActive = time.Now()
	return nil
}

// IdleSince is the time of the last client call.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// screenChanged runs on the queue after each screen readout change.
func (s *Session) screenChanged(st mapscreen.State) {
	s.mu.Lock()
	prev := s.last
	s.last = st
	s.mu.Unlock()
	if st.Address != prev.Address {
		s.emit("address.changed", map[string]any{"address": st.Address})
	}
	if !reflect.DeepEqual(st.Routes, prev.Routes) && len(st.Routes) > 0 {
		s.emit("route.metrics", map[string]any{"routes": st.Routes, "distance": st.Distance, "duration": st.Duration})
	}
	s.emit("screen.state", map[string]any{"state": st})
}

// AddressPicked implements mapscreen.AddressDelegate.
func (s *Session) AddressPicked(address string) {
	s.mu.Lock()
	s.picked = &address
	s.mu.Unlock()
	s.emit("address.picked", map[string]any{"address": address})
}

// SetAuthorization records a permission change reported by the client.
func (s *Session) SetAuthorization(status mapping.AuthorizationStatus) error {
	if err := s.touch(); err != nil {
		return err
	}
	s.location.setStatus(status)
	return s.screen.AuthorizationChanged()
}

// SetServicesEnabled records the device-wide location switch.
func (s *Session) SetServicesEnabled(on bool) error {
	if err := s.touch(); err != nil {
		return err
	}
	s.location.setEnabled(on)
	return s.screen.LocationServicesChanged()
}

// UpdateLocation records a device fix.
func (s *Session) UpdateLocation(c model.Coordinate) error {
	if err := s.touch(); err != nil {
		return err
	}
	s.location.setCurrent(c)
	s.emit("location.changed", map[string]any{"location": c})
	return nil
}

// Pan moves the map center as the user dragged it and resolves the
// address under it.
func (s *Session) Pan(center model.Coordinate) (*mapping.Handle, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	s.queue.Post(func() { s.surface.setCenter(center) })
	return s.screen.RegionDidChange(center), nil
}

// CenterOnUser recenters on the device location. It reports false when no
// fix is known.
func (s *Session) CenterOnUser() (bool, error) {
	if err := s.touch(); err != nil {
		return false, err
	}
	return s.screen.CenterOnUser(), nil
}

// Route requests directions to the session place.
func (s *Session) Route() (*mapping.Handle, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	return s.screen.Go()
}

// Done confirms the captured address.
func (s *Session) Done() (string, error) {
	if err := s.touch(); err != nil {
		return "", err
	}
	return s.screen.Done(), nil
}

// Sync waits until every queued continuation posted so far has run.
func (s *Session) Sync(ctx context.Context) error {
	done := make(chan bool, 1)
	go func() { done <- s.queue.Sync(func() {}) }()
	select {
	case ok := <-done:
		if !ok {
			return ErrClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	alerts := append([]mapping.Alert(nil), s.alerts...)
	picked := s.picked
	s.mu.Unlock()
	return Snapshot{
		ID:       s.ID,
		Mode:     s.Mode,
		PlaceID:  s.PlaceID,
		Created:  s.Created,
		Screen:   s.screen.State(),
		Surface:  s.surface.State(),
		Location: s.location.State(),
		Alerts:   alerts,
		Pending:  s.manager.PendingRoutes(),
		Picked:   picked,
	}
}

// Close stops the queue and ends in-flight work with ErrCanceled.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	// stop the queue first so callbacks of unfinished requests run here
	// and not alongside queued work
	s.queue.Close()
	s.screen.Close()
	s.emit("session.closed", nil)
}

type alerter struct{ s *Session }

func (a alerter) Present(al mapping.Alert) {
	a.s.mu.Lock()
	a.s.alerts = append(a.s.alerts, al)
	a.s.mu.Unlock()
	a.s.emit("alert", map[string]any{"kind": al.Kind, "title": al.Title, "message": al.Message})
}
