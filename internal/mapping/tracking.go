package mapping

import "myplaces/internal/model"

// TrackUserLocation is the hysteresis gate for follow-me recentering. When a
// previous location is known and center has moved more than the recenter
// threshold away from it, onMove is called with center. It reports whether
// onMove ran.
func (m *Manager) TrackUserLocation(center model.Coordinate, last *model.Coordinate, onMove func(model.Coordinate)) bool {
	return ShouldRecenter(center, last, m.threshold) && call(onMove, center)
}

// ShouldRecenter reports whether center is strictly farther than threshold
// metres from last. A nil last never recenters.
func ShouldRecenter(center model.Coordinate, last *model.Coordinate, threshold float64) bool {
	if last == nil {
		return false
	}
	return center.DistanceTo(*last) > threshold
}

func call(fn func(model.Coordinate), c model.Coordinate) bool {
	if fn != nil {
		fn(c)
	}
	return true
}
