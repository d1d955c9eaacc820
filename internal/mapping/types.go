// Package mapping coordinates location authorization, geocoding, live
// location tracking and route calculation for a single map view.
//
// The Manager never blocks its caller: provider calls run on their own
// goroutines and every continuation that touches the Surface, the Alerter
// or a caller callback is marshalled onto the configured dispatch.Executor.
package mapping

import (
	"context"
	"time"

	"myplaces/internal/model"
)

// AuthorizationStatus is the app-level location permission state.
type AuthorizationStatus int

const (
	NotDetermined AuthorizationStatus = iota
	Restricted
	Denied
	AuthorizedAlways
	AuthorizedWhenInUse
)

var authorizationNames = map[AuthorizationStatus]string{
	NotDetermined:       "notDetermined",
	Restricted:          "restricted",
	Denied:              "denied",
	AuthorizedAlways:    "authorizedAlways",
	AuthorizedWhenInUse: "authorizedWhenInUse",
}

func (s AuthorizationStatus) String() string {
	if n, ok := authorizationNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseAuthorizationStatus is the inverse of String.
func ParseAuthorizationStatus(s string) (AuthorizationStatus, bool) {
	for k, v := range authorizationNames {
		if v == s {
			return k, true
		}
	}
	return NotDetermined, false
}

// Mode is how the hosting screen was opened.
type Mode string

const (
	// ModeShowPlace shows a saved place and offers directions to it.
	ModeShowPlace Mode = "showPlace"
	// ModeGetAddress captures the address under the map center for a new place.
	ModeGetAddress Mode = "getAddress"
)

// LocationService is the device location and permission provider.
type LocationService interface {
	ServicesEnabled() bool
	AuthorizationStatus() AuthorizationStatus
	RequestWhenInUseAuthorization()
	CurrentLocation() (model.Coordinate, bool)
	StartUpdatingLocation()
}

// Placemark is one geocoding candidate.
type Placemark struct {
	Coordinate *model.Coordinate `json:"coordinate,omitempty"`
	Name       string            `json:"name,omitempty"`
	Street     string            `json:"street,omitempty"` // thoroughfare
	Number     string            `json:"number,omitempty"` // building number
	Locality   string            `json:"locality,omitempty"`
}

// Geocoder resolves addresses to coordinates and back. Both calls must honor
// ctx cancellation.
type Geocoder interface {
	Forward(ctx context.Context, address string) ([]Placemark, error)
	Reverse(ctx context.Context, c model.Coordinate) ([]Placemark, error)
}

// TransportType selects the routing profile.
type TransportType string

const Automobile TransportType = "automobile"

// RouteRequest asks for paths between two coordinates.
type RouteRequest struct {
	Source          model.Coordinate
	Destination     model.Coordinate
	Transport       TransportType
	AlternateRoutes bool
}

// Route is one calculated path.
type Route struct {
	Path               []model.Coordinate
	DistanceMeters     float64
	ExpectedTravelTime time.Duration
}

// Router calculates routes. A nil slice with a nil error means the service
// returned no response.
type Router interface {
	Directions(ctx context.Context, req RouteRequest) ([]Route, error)
}

// Annotation is a labelled marker on the map.
type Annotation struct {
	Title      string           `json:"title"`
	Subtitle   string           `json:"subtitle,omitempty"`
	Coordinate model.Coordinate `json:"coordinate"`
	Image      []byte           `json:"image,omitempty"`
}

// Surface is the visual map. Its methods are only called on the Executor.
type Surface interface {
	ShowAnnotations(a ...Annotation)
	SelectAnnotation(a Annotation)
	SetShowsUserLocation(show bool)
	SetRegion(r model.Region)
	AddOverlay(path []model.Coordinate)
	RemoveOverlays()
	SetVisibleRect(b model.BoundingBox)
	CenterCoordinate() model.Coordinate
}

// Alert is a single-button acknowledgment.
type Alert struct {
	Kind    FailureKind `json:"kind"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// Alerter presents alerts on an overlay independent of the current screen.
type Alerter interface {
	Present(a Alert)
}
