package mapping

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"myplaces/internal/metrics"
	"myplaces/internal/model"
)

var errNoRoutes = errors.New("directions response has no routes")

// RouteMetrics is the readout for one calculated route.
type RouteMetrics struct {
	DistanceKm float64 `json:"distanceKm"`
	Minutes    float64 `json:"minutes"`
	Distance   string  `json:"distance"`
	Duration   string  `json:"duration"`
}

// MetricsFor converts a route to kilometres and minutes, formatted with one
// decimal place.
func MetricsFor(r Route) RouteMetrics {
	km := r.DistanceMeters / 1000
	min := r.ExpectedTravelTime.Minutes()
	return RouteMetrics{
		DistanceKm: km,
		Minutes:    min,
		Distance:   fmt.Sprintf("%.1f km", km),
		Duration:   fmt.Sprintf("%.1f min", min),
	}
}

// ComputeRoute requests driving directions, with alternates, from the
// current location to the last marked place. Every route still in flight is
// canceled first and existing overlays are cleared. origin receives the
// current location before the request is issued; done is the terminal
// callback and receives one RouteMetrics per rendered route.
func (m *Manager) ComputeRoute(origin func(model.Coordinate), done func([]RouteMetrics, error)) *Handle {
	h := m.track(func() {
		if done != nil {
			done(nil, ErrCanceled)
		}
	})
	current, ok := m.loc.CurrentLocation()
	if !ok {
		m.failRoute(h, NoCurrentLocation, done)
		return h
	}
	m.loc.StartUpdatingLocation()
	if origin != nil {
		m.exec.Post(func() { origin(current) })
	}
	dest, ok := m.Destination()
	if !ok {
		m.failRoute(h, NoDestination, done)
		return h
	}
	m.resetRoutes(h)

	req := RouteRequest{Source: current, Destination: dest, Transport: Automobile, AlternateRoutes: true}
	go func() {
		started := time.Now()
		routes, err := m.router.Directions(h.ctx, req)
		m.exec.Post(func() {
			m.mu.Lock()
			delete(m.routes, h)
			m.mu.Unlock()

			var ferr error
			switch {
			case h.Canceled():
				ferr = ErrCanceled
			case err != nil:
				ferr = fail(RouteUnavailable, err)
			case len(routes) == 0:
				ferr = fail(RouteUnavailable, errNoRoutes)
			}
			metrics.ObserveProvider("route", outcome(ferr), started)

			var out []RouteMetrics
			switch {
			case ferr == nil:
				out = m.renderRoutes(routes)
			case errors.Is(ferr, ErrCanceled):
			default:
				m.log.Warn("directions failed", zap.Error(ferr))
				m.alert(RouteUnavailable)
			}
			h.finish(func() {
				if done != nil {
					done(out, ferr)
				}
			})
		})
	}()
	return h
}

// PendingRoutes is the number of route requests still in flight.
func (m *Manager) PendingRoutes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.routes)
}

func (m *Manager) failRoute(h *Handle, kind FailureKind, done func([]RouteMetrics, error)) {
	m.exec.Post(func() {
		m.alert(kind)
		h.finish(func() {
			if done != nil {
				done(nil, fail(kind, nil))
			}
		})
	})
}

// resetRoutes cancels every pending route, leaving h as the only one, and
// clears the overlays.
func (m *Manager) resetRoutes(h *Handle) {
	m.mu.Lock()
	for p := range m.routes {
		p.Cancel()
	}
	m.routes = map[*Handle]struct{}{h: {}}
	m.mu.Unlock()
	m.exec.Post(m.surface.RemoveOverlays)
}

// renderRoutes draws every route. Must run on the executor.
func (m *Manager) renderRoutes(routes []Route) []RouteMetrics {
	out := make([]RouteMetrics, 0, len(routes))
	for _, r := range routes {
		m.surface.AddOverlay(r.Path)
		if len(r.Path) > 0 {
			m.surface.SetVisibleRect(model.Bounds(r.Path))
		}
		out = append(out, MetricsFor(r))
	}
	return out
}
