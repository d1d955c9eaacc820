package mapping

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"myplaces/internal/dispatch"
	"myplaces/internal/metrics"
	"myplaces/internal/model"
)

const (
	DefaultRegionMeters      = 1000.0
	DefaultAlertDelay        = time.Second
	DefaultRecenterThreshold = 50.0
)

var (
	errEmptyAddress = errors.New("place has no address")
	errNoPlacemark  = errors.New("no placemark with a location")
)

// Config wires a Manager to its providers. Zero tuning values take the
// package defaults.
type Config struct {
	Location LocationService
	Geocoder Geocoder
	Router   Router
	Surface  Surface
	Alerter  Alerter
	Executor dispatch.Executor
	Logger   *zap.Logger

	RegionMeters      float64
	AlertDelay        time.Duration
	RecenterThreshold float64
}

// Manager is the map coordinator for one map view.
type Manager struct {
	loc     LocationService
	geo     Geocoder
	router  Router
	surface Surface
	alerts  Alerter
	exec    dispatch.Executor
	log     *zap.Logger

	regionMeters float64
	alertDelay   time.Duration
	threshold    float64

	mu              sync.Mutex
	destination     *model.Coordinate
	routes          map[*Handle]struct{}
	live            map[*Handle]struct{}
	reverse         *Handle
	servicesAlerted bool
	deniedAlerted   bool
}

// New validates cfg and returns a Manager.
func New(cfg Config) (*Manager, error) {
	switch {
	case cfg.Location == nil:
		return nil, errors.New("mapping: location service required")
	case cfg.Geocoder == nil:
		return nil, errors.New("mapping: geocoder required")
	case cfg.Router == nil:
		return nil, errors.New("mapping: router required")
	case cfg.Surface == nil:
		return nil, errors.New("mapping: surface required")
	case cfg.Alerter == nil:
		return nil, errors.New("mapping: alerter required")
	case cfg.Executor == nil:
		return nil, errors.New("mapping: executor required")
	}
	m := &Manager{
		loc:          cfg.Location,
		geo:          cfg.Geocoder,
		router:       cfg.Router,
		surface:      cfg.Surface,
		alerts:       cfg.Alerter,
		exec:         cfg.Executor,
		log:          cfg.Logger,
		regionMeters: cfg.RegionMeters,
		alertDelay:   cfg.AlertDelay,
		threshold:    cfg.RecenterThreshold,
		routes:       map[*Handle]struct{}{},
		live:         map[*Handle]struct{}{},
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.regionMeters <= 0 {
		m.regionMeters = DefaultRegionMeters
	}
	if m.alertDelay <= 0 {
		m.alertDelay = DefaultAlertDelay
	}
	if m.threshold <= 0 {
		m.threshold = DefaultRecenterThreshold
	}
	return m, nil
}

// CheckLocationServices verifies that device location is enabled and then
// runs CheckAuthorization. A disabled service schedules one delayed alert
// per disabled episode.
func (m *Manager) CheckLocationServices(mode Mode) error {
	if !m.loc.ServicesEnabled() {
		m.mu.Lock()
		first := !m.servicesAlerted
		m.servicesAlerted = true
		m.mu.Unlock()
		if first {
			m.alertAfter(LocationServicesDisabled)
		}
		return ErrLocationServicesDisabled
	}
	m.mu.Lock()
	m.servicesAlerted = false
	m.mu.Unlock()
	return m.CheckAuthorization(mode)
}

// CheckAuthorization reacts to the current authorization status. It is
// idempotent; a denial alert is scheduled at most once per denial episode.
func (m *Manager) CheckAuthorization(mode Mode) error {
	status := m.loc.AuthorizationStatus()
	m.mu.Lock()
	first := status == Denied && !m.deniedAlerted
	m.deniedAlerted = status == Denied
	m.mu.Unlock()

	m.log.Debug("authorization", zap.Stringer("status", status), zap.String("mode", string(mode)))
	switch status {
	case AuthorizedWhenInUse, AuthorizedAlways:
		m.exec.Post(func() {
			m.surface.SetShowsUserLocation(true)
			if mode == ModeGetAddress {
				m.showUserLocation()
			}
		})
	case Denied:
		if first {
			m.alertAfter(AuthorizationDenied)
		}
		return ErrAuthorizationDenied
	case NotDetermined:
		m.loc.RequestWhenInUseAuthorization()
	case Restricted:
		// parental controls or MDM; nothing the user can change here
	}
	return nil
}

// AuthorizationChanged is the platform callback for a status change.
func (m *Manager) AuthorizationChanged(mode Mode) error {
	return m.CheckAuthorization(mode)
}

// ShowUserLocation centers the surface on the current location with the
// configured region span. It reports whether a location was known.
func (m *Manager) ShowUserLocation() bool {
	if _, ok := m.loc.CurrentLocation(); !ok {
		return false
	}
	m.exec.Post(m.showUserLocation)
	return true
}

func (m *Manager) showUserLocation() {
	c, ok := m.loc.CurrentLocation()
	if !ok {
		return
	}
	m.surface.SetRegion(model.Region{Center: c, LatitudeMeters: m.regionMeters, LongitudeMeters: m.regionMeters})
}

// MarkPlace geocodes the place address. On success the coordinate becomes
// the route destination and an annotation is shown and selected.
func (m *Manager) MarkPlace(place model.Place, done func(model.Coordinate, error)) *Handle {
	h := m.track(func() {
		if done != nil {
			done(model.Coordinate{}, ErrCanceled)
		}
	})
	address := strings.TrimSpace(place.Location)
	if address == "" {
		m.exec.Post(func() {
			h.finish(func() {
				if done != nil {
					done(model.Coordinate{}, fail(GeocodeFailure, errEmptyAddress))
				}
			})
		})
		return h
	}
	go func() {
		started := time.Now()
		pms, err := m.geo.Forward(h.ctx, address)
		m.exec.Post(func() {
			var coord model.Coordinate
			var ferr error
			switch {
			case h.Canceled():
				ferr = ErrCanceled
			case err != nil:
				ferr = fail(GeocodeFailure, err)
			case len(pms) == 0 || pms[0].Coordinate == nil:
				ferr = fail(GeocodeFailure, errNoPlacemark)
			}
			metrics.ObserveProvider("geocode", outcome(ferr), started)
			if ferr == nil {
				coord = *pms[0].Coordinate
				m.mu.Lock()
				m.destination = &coord
				m.mu.Unlock()
				a := Annotation{Title: place.Name, Subtitle: place.Type, Coordinate: coord, Image: place.ImageData}
				m.surface.ShowAnnotations(a)
				m.surface.SelectAnnotation(a)
			} else if !errors.Is(ferr, ErrCanceled) {
				m.log.Warn("geocode failed", zap.String("address", address), zap.Error(ferr))
			}
			h.finish(func() {
				if done != nil {
					done(coord, ferr)
				}
			})
		})
	}()
	return h
}

// Destination returns the coordinate resolved by the last successful
// MarkPlace.
func (m *Manager) Destination() (model.Coordinate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destination == nil {
		return model.Coordinate{}, false
	}
	return *m.destination, true
}

// ReverseGeocode resolves c to a placemark. Starting a new reverse geocode
// cancels the previous one, so only the latest result reaches done with a
// nil error. An empty result yields the zero Placemark.
func (m *Manager) ReverseGeocode(c model.Coordinate, done func(Placemark, error)) *Handle {
	h := m.track(func() {
		if done != nil {
			done(Placemark{}, ErrCanceled)
		}
	})
	m.mu.Lock()
	prev := m.reverse
	m.reverse = h
	m.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
	go func() {
		started := time.Now()
		pms, err := m.geo.Reverse(h.ctx, c)
		m.exec.Post(func() {
			m.mu.Lock()
			if m.reverse == h {
				m.reverse = nil
			}
			m.mu.Unlock()
			var pm Placemark
			var ferr error
			switch {
			case h.Canceled():
				ferr = ErrCanceled
			case err != nil:
				ferr = fail(ReverseGeocodeFailure, err)
				m.log.Warn("reverse geocode failed", zap.Float64("lat", c.Lat), zap.Float64("lng", c.Lng), zap.Error(err))
			case len(pms) > 0:
				pm = pms[0]
			}
			metrics.ObserveProvider("reverse_geocode", outcome(ferr), started)
			h.finish(func() {
				if done != nil {
					done(pm, ferr)
				}
			})
		})
	}()
	return h
}

// track returns a new handle registered as live until it finishes.
// canceled is its terminal callback when Close ends it early.
func (m *Manager) track(canceled func()) *Handle {
	h := newHandle()
	h.canceled = canceled
	h.release = func() {
		m.mu.Lock()
		delete(m.live, h)
		m.mu.Unlock()
	}
	m.mu.Lock()
	m.live[h] = struct{}{}
	m.mu.Unlock()
	return h
}

// Close cancels every in-flight operation and ends each unfinished handle
// with ErrCanceled. Those callbacks run on the calling goroutine, so call
// Close after the executor has stopped or from the executor itself.
func (m *Manager) Close() {
	m.mu.Lock()
	for h := range m.routes {
		h.Cancel()
	}
	m.routes = map[*Handle]struct{}{}
	if m.reverse != nil {
		m.reverse.Cancel()
		m.reverse = nil
	}
	live := make([]*Handle, 0, len(m.live))
	for h := range m.live {
		live = append(live, h)
	}
	m.mu.Unlock()
	for _, h := range live {
		h.abort()
	}
}

// alert presents the alert for kind. Must run on the executor.
func (m *Manager) alert(kind FailureKind) {
	a, ok := AlertFor(kind)
	if !ok {
		return
	}
	metrics.Alerts.WithLabelValues(string(kind)).Inc()
	m.alerts.Present(a)
}

func (m *Manager) alertAfter(kind FailureKind) {
	m.exec.After(m.alertDelay, func() { m.alert(kind) })
}

func outcome(err error) string {
	var f *Failure
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &f) && f.Kind == Canceled:
		return "canceled"
	default:
		return "error"
	}
}
