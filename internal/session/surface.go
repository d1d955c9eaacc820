package session

import (
	"sync"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

// SurfaceState is what a client needs to draw the map.
type SurfaceState struct {
	Annotations       []mapping.Annotation `json:"annotations"`
	Selected          *mapping.Annotation  `json:"selected,omitempty"`
	ShowsUserLocation bool                 `json:"showsUserLocation"`
	Region            *model.Region        `json:"region,omitempty"`
	Center            model.Coordinate     `json:"center"`
	Overlays          [][]model.Coordinate `json:"overlays"`
	VisibleRect       *model.BoundingBox   `json:"visibleRect,omitempty"`
}

// Surface is a headless mapping.Surface. It keeps the drawn state for
// snapshots and publishes every change as an event.
type Surface struct {
	emit func(typ string, data map[string]any)

	mu sync.Mutex
	st SurfaceState
}

func newSurface(emit func(string, map[string]any)) *Surface {
	return &Surface{emit: emit}
}

func (s *Surface) ShowAnnotations(a ...mapping.Annotation) {
	s.mu.Lock()
	s.st.Annotations = append(s.st.Annotations, a...)
	s.mu.Unlock()
	s.emit("surface.annotations", map[string]any{"annotations": a})
}

func (s *Surface) SelectAnnotation(a mapping.Annotation) {
	s.mu.Lock()
	s.st.Selected = &a
	s.mu.Unlock()
	s.emit("surface.selected", map[string]any{"annotation": a})
}

func (s *Surface) SetShowsUserLocation(show bool) {
	s.mu.Lock()
	changed := s.st.ShowsUserLocation != show
	s.st.ShowsUserLocation = show
	s.mu.Unlock()
	if changed {
		s.emit("surface.user_location", map[string]any{"shown": show})
	}
}

// SetRegion moves the viewport; its center becomes the map center.
func (s *Surface) SetRegion(r model.Region) {
	s.mu.Lock()
	s.st.Region = &r
	s.st.Center = r.Center
	s.mu.Unlock()
	s.emit("surface.region", map[string]any{"region": r})
}

func (s *Surface) AddOverlay(path []model.Coordinate) {
	s.mu.Lock()
	s.st.Overlays = append(s.st.Overlays, path)
	s.mu.Unlock()
	s.emit("surface.overlay", map[string]any{"path": path})
}

func (s *Surface) RemoveOverlays() {
	s.mu.Lock()
	had := len(s.st.Overlays) > 0
	s.st.Overlays = nil
	s.st.VisibleRect = nil
	s.mu.Unlock()
	if had {
		s.emit("surface.overlays_cleared", nil)
	}
}

func (s *Surface) SetVisibleRect(b model.BoundingBox) {
	s.mu.Lock()
	s.st.VisibleRect = &b
	s.mu.Unlock()
	s.emit("surface.visible_rect", map[string]any{"rect": b})
}

func (s *Surface) CenterCoordinate() model.Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Center
}

// setCenter records a pan by the user.
func (s *Surface) setCenter(c model.Coordinate) {
	s.mu.Lock()
	s.st.Center = c
	s.mu.Unlock()
}

// State returns a copy of the drawn state.
func (s *Surface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st
	st.Annotations = append([]mapping.Annotation(nil), s.st.Annotations...)
	st.Overlays = append([][]model.Coordinate(nil), s.st.Overlays...)
	return st
}
