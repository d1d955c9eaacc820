// Package osrm is a mapping.Router over the OSRM HTTP route service.
package osrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

const DefaultBaseURL = "https://router.project-osrm.org"

var (
	ErrStatus = errors.New("osrm: unexpected status")
	// ErrProfile is returned for transport types the service has no profile for.
	ErrProfile = errors.New("osrm: unsupported transport type")
)

var profiles = map[mapping.TransportType]string{
	mapping.Automobile: "driving",
	"":                 "driving",
}

// Client calls one OSRM instance.
type Client struct {
	base      string
	userAgent string
	http      *http.Client
}

// New returns a Client for base, or DefaultBaseURL when base is empty. A
// nil httpClient gets a 15 s timeout.
func New(base, userAgent string, httpClient *http.Client) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), userAgent: userAgent, http: httpClient}
}

type response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"` // metres
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"` // lng, lat
		} `json:"geometry"`
	} `json:"routes"`
}

func lngLat(c model.Coordinate) string {
	return strconv.FormatFloat(c.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lat, 'f', 6, 64)
}

// Directions asks for a route and, when requested, alternatives. A
// "NoRoute" answer is an empty result.
func (c *Client) Directions(ctx context.Context, req mapping.RouteRequest) ([]mapping.Route, error) {
	profile, ok := profiles[req.Transport]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfile, req.Transport)
	}
	q := url.Values{}
	q.Set("alternatives", strconv.FormatBool(req.AlternateRoutes))
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	u := fmt.Sprintf("%s/route/v1/%s/%s;%s?%s", c.base, profile, lngLat(req.Source), lngLat(req.Destination), q.Encode())

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("osrm route: %w", err)
	}
	defer resp.Body.Close()

	var body response
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("osrm route: decode: %w", err)
	}
	switch body.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, nil
	default:
		return nil, fmt.Errorf("osrm route: %s: %s", body.Code, body.Message)
	}

	routes := make([]mapping.Route, 0, len(body.Routes))
	for _, r := range body.Routes {
		path := make([]model.Coordinate, len(r.Geometry.Coordinates))
		for i, p := range r.Geometry.Coordinates {
			path[i] = model.Coordinate{Lat: p[1], Lng: p[0]}
		}
		routes = append(routes, mapping.Route{
			Path:               path,
			DistanceMeters:     r.Distance,
			ExpectedTravelTime: time.Duration(r.Duration * float64(time.Second)),
		})
	}
	return routes, nil
}
