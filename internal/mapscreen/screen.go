// Package mapscreen binds a mapping.Manager to a map surface and keeps the
// readouts a map screen shows: the address under the map center, route
// distance and time, and which controls are visible for the screen mode.
package mapscreen

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"myplaces/internal/dispatch"
	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

const DefaultRecenterDelay = 3 * time.Second

// ErrNoRouteControls is returned when directions are requested on a screen
// opened to capture an address.
var ErrNoRouteControls = errors.New("route controls are not shown in this mode")

// AddressDelegate receives the captured address when the user confirms it.
type AddressDelegate interface {
	AddressPicked(address string)
}

// Config wires a Screen.
type Config struct {
	Mode     mapping.Mode
	Place    model.Place
	Manager  *mapping.Manager
	Surface  mapping.Surface
	Executor dispatch.Executor
	Delegate AddressDelegate
	Logger   *zap.Logger

	RecenterDelay time.Duration
	// OnChange runs on the executor after every readout change.
	OnChange func(State)
}

// State is the visible readout of a screen.
type State struct {
	Mode               mapping.Mode           `json:"mode"`
	Place              string                 `json:"place,omitempty"`
	Address            string                 `json:"address"`
	Routes             []mapping.RouteMetrics `json:"routes,omitempty"`
	Distance           string                 `json:"distance,omitempty"`
	Duration           string                 `json:"duration,omitempty"`
	ShowsRouteControls bool                   `json:"showsRouteControls"`
	ShowsAddressPicker bool                   `json:"showsAddressPicker"`
	PreviousLocation   *model.Coordinate      `json:"previousLocation,omitempty"`
	Destination        *model.Coordinate      `json:"destination,omitempty"`
	Done               bool                   `json:"done"`
}

// Screen is one open map screen.
type Screen struct {
	mode     mapping.Mode
	place    model.Place
	manager  *mapping.Manager
	surface  mapping.Surface
	exec     dispatch.Executor
	delegate AddressDelegate
	log      *zap.Logger
	delay    time.Duration
	onChange func(State)

	mu          sync.Mutex
	address     string
	routes      []mapping.RouteMetrics
	previous    *model.Coordinate
	destination *model.Coordinate
	done        bool
}

// New returns a Screen. Mode defaults to ModeShowPlace.
func New(cfg Config) (*Screen, error) {
	if cfg.Manager == nil || cfg.Surface == nil || cfg.Executor == nil {
		return nil, errors.New("mapscreen: manager, surface and executor are required")
	}
	s := &Screen{
		mode:     cfg.Mode,
		place:    cfg.Place,
		manager:  cfg.Manager,
		surface:  cfg.Surface,
		exec:     cfg.Executor,
		delegate: cfg.Delegate,
		log:      cfg.Logger,
		delay:    cfg.RecenterDelay,
		onChange: cfg.OnChange,
	}
	if s.mode == "" {
		s.mode = mapping.ModeShowPlace
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.delay <= 0 {
		s.delay = DefaultRecenterDelay
	}
	return s, nil
}

func (s *Screen) Mode() mapping.Mode { return s.mode }

// Load sets the screen up: a saved place is geocoded and marked, then
// location services and authorization are checked. The returned error is
// the authorization outcome; the alert has already been scheduled.
func (s *Screen) Load() error {
	if s.mode == mapping.ModeShowPlace {
		s.manager.MarkPlace(s.place, func(c model.Coordinate, err error) {
			if err != nil {
				s.log.Debug("place not marked", zap.String("place", s.place.Name), zap.Error(err))
				return
			}
			s.mu.Lock()
			s.destination = &c
			s.mu.Unlock()
			s.changed()
		})
	}
	s.changed()
	return s.manager.CheckLocationServices(s.mode)
}

// AuthorizationChanged forwards a platform authorization change.
func (s *Screen) AuthorizationChanged() error {
	return s.manager.AuthorizationChanged(s.mode)
}

// LocationServicesChanged re-runs the services and authorization check after
// the device-wide location switch flipped.
func (s *Screen) LocationServicesChanged() error {
	return s.manager.CheckLocationServices(s.mode)
}

// RegionDidChange is called after the user pans the map to center. The
// address under the new center is resolved; on a showPlace screen that is
// following the user the map recenters after the recenter delay.
func (s *Screen) RegionDidChange(center model.Coordinate) *mapping.Handle {
	s.mu.Lock()
	following := s.previous != nil
	s.mu.Unlock()
	if s.mode == mapping.ModeShowPlace && following {
		s.exec.After(s.delay, func() { s.manager.ShowUserLocation() })
	}
	return s.manager.ReverseGeocode(center, func(p mapping.Placemark, err error) {
		if err != nil {
			// label keeps its last value; the next pan retries
			return
		}
		s.mu.Lock()
		s.address = mapping.FormatAddress(p)
		s.mu.Unlock()
		s.changed()
	})
}

// Go requests directions from the user to the marked place.
func (s *Screen) Go() (*mapping.Handle, error) {
	if s.mode != mapping.ModeShowPlace {
		return nil, ErrNoRouteControls
	}
	return s.manager.ComputeRoute(s.setPrevious, func(routes []mapping.RouteMetrics, err error) {
		if err != nil {
			return
		}
		s.mu.Lock()
		s.routes = routes
		s.mu.Unlock()
		s.changed()
	}), nil
}

// CenterOnUser recenters the map on the user.
func (s *Screen) CenterOnUser() bool {
	return s.manager.ShowUserLocation()
}

// Done confirms the captured address and hands it to the delegate.
func (s *Screen) Done() string {
	s.mu.Lock()
	addr := s.address
	s.done = true
	s.mu.Unlock()
	if s.delegate != nil {
		s.delegate.AddressPicked(addr)
	}
	s.changed()
	return addr
}

// Close cancels in-flight work.
func (s *Screen) Close() {
	s.manager.Close()
}

// State returns the current readout.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Mode:               s.mode,
		Place:              s.place.Name,
		Address:            s.address,
		Routes:             append([]mapping.RouteMetrics(nil), s.routes...),
		ShowsRouteControls: s.mode == mapping.ModeShowPlace,
		ShowsAddressPicker: s.mode == mapping.ModeGetAddress,
		Done:               s.done,
	}
	if len(s.routes) > 0 {
		st.Distance = s.routes[0].Distance
		st.Duration = s.routes[0].Duration
	}
	if s.previous != nil {
		c := *s.previous
		st.PreviousLocation = &c
	}
	if s.destination != nil {
		c := *s.destination
		st.Destination = &c
	}
	return st
}

// setPrevious records the location the user is followed from and runs the
// hysteresis check against the map center. Runs on the executor.
func (s *Screen) setPrevious(c model.Coordinate) {
	s.mu.Lock()
	s.previous = &c
	s.mu.Unlock()
	s.changed()

	s.manager.TrackUserLocation(s.surface.CenterCoordinate(), &c, func(center model.Coordinate) {
		s.setPrevious(center)
		s.exec.After(s.delay, func() { s.manager.ShowUserLocation() })
	})
}

func (s *Screen) changed() {
	if s.onChange == nil {
		return
	}
	s.exec.Post(func() { s.onChange(s.State()) })
}
