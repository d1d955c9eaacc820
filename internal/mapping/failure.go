package mapping

import "fmt"

// FailureKind tags every way a coordinator operation can fail.
type FailureKind string

const (
	LocationServicesDisabled FailureKind = "locationServicesDisabled"
	AuthorizationDenied      FailureKind = "authorizationDenied"
	GeocodeFailure           FailureKind = "geocodeFailure"
	ReverseGeocodeFailure    FailureKind = "reverseGeocodeFailure"
	NoCurrentLocation        FailureKind = "noCurrentLocation"
	NoDestination            FailureKind = "noDestination"
	RouteUnavailable         FailureKind = "routeUnavailable"
	Canceled                 FailureKind = "canceled"
)

// Failure is the error delivered to terminal callbacks. Two failures match
// under errors.Is when their kinds are equal.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

var (
	ErrLocationServicesDisabled = &Failure{Kind: LocationServicesDisabled}
	ErrAuthorizationDenied      = &Failure{Kind: AuthorizationDenied}
	ErrGeocode                  = &Failure{Kind: GeocodeFailure}
	ErrReverseGeocode           = &Failure{Kind: ReverseGeocodeFailure}
	ErrNoCurrentLocation        = &Failure{Kind: NoCurrentLocation}
	ErrNoDestination            = &Failure{Kind: NoDestination}
	ErrRouteUnavailable         = &Failure{Kind: RouteUnavailable}
	ErrCanceled                 = &Failure{Kind: Canceled}
)

func fail(kind FailureKind, err error) *Failure { return &Failure{Kind: kind, Err: err} }

// alerts holds the fixed title/message pair per user-visible failure.
// Geocode failures and cancellation are silent.
var alerts = map[FailureKind]Alert{
	LocationServicesDisabled: {Title: "Location Services are Disabled", Message: "To enable it go: Settings -> Privacy -> Location Services and turn On"},
	AuthorizationDenied:      {Title: "Your Location is not available", Message: "To give permission Go to: Settings -> MyPlaces -> Location"},
	NoCurrentLocation:        {Title: "Error", Message: "Current location is not found"},
	NoDestination:            {Title: "Error", Message: "Destination is not found"},
	RouteUnavailable:         {Title: "Error", Message: "Direction is not available"},
}

// AlertFor returns the alert shown for kind, if any.
func AlertFor(kind FailureKind) (Alert, bool) {
	a, ok := alerts[kind]
	a.Kind = kind
	return a, ok
}
