package session

import (
	"sync"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

// LocationState is the client-reported device location state.
type LocationState struct {
	ServicesEnabled bool              `json:"servicesEnabled"`
	Authorization   string            `json:"authorization"`
	Current         *model.Coordinate `json:"current,omitempty"`
	Updating        bool              `json:"updating"`
}

// Location is a mapping.LocationService fed by the client: the browser or
// app reports permission changes and fixes, the coordinator reads them.
type Location struct {
	emit func(typ string, data map[string]any)

	mu       sync.Mutex
	enabled  bool
	status   mapping.AuthorizationStatus
	current  *model.Coordinate
	updating bool
}

func newLocation(emit func(string, map[string]any)) *Location {
	return &Location{emit: emit, enabled: true, status: mapping.NotDetermined}
}

func (l *Location) ServicesEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *Location) AuthorizationStatus() mapping.AuthorizationStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// RequestWhenInUseAuthorization asks the client to prompt the user.
func (l *Location) RequestWhenInUseAuthorization() {
	l.emit("authorization.request", map[string]any{"scope": "whenInUse"})
}

func (l *Location) CurrentLocation() (model.Coordinate, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return model.Coordinate{}, false
	}
	return *l.current, true
}

func (l *Location) StartUpdatingLocation() {
	l.mu.Lock()
	first := !l.updating
	l.updating = true
	l.mu.Unlock()
	if first {
		l.emit("location.updating", nil)
	}
}

func (l *Location) setEnabled(on bool) {
	l.mu.Lock()
	l.enabled = on
	l.mu.Unlock()
}

func (l *Location) setStatus(s mapping.AuthorizationStatus) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

func (l *Location) setCurrent(c model.Coordinate) {
	l.mu.Lock()
	l.current = &c
	l.mu.Unlock()
}

// State returns a copy of the reported state.
func (l *Location) State() LocationState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := LocationState{ServicesEnabled: l.enabled, Authorization: l.status.String(), Updating: l.updating}
	if l.current != nil {
		c := *l.current
		st.Current = &c
	}
	return st
}
