// Package static is an in-process geocoder and router backed by a fixed
// gazetteer. It is used in development when no provider URL is configured
// and by tests that need deterministic results.
package static

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"gopkg.in/yaml.v3"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

const (
	// DefaultReverseRadius is how close a point must be to an entry to reverse
	// geocode to it, in metres.
	DefaultReverseRadius = 250.0
	// DefaultSpeedKmh converts route distance into travel time.
	DefaultSpeedKmh = 40.0
	// detourFactor stretches the alternate route.
	detourFactor = 1.25

	metersPerDegree = 111_320.0
	pointTolerance  = 1e-9
)

// Entry is one gazetteer record.
type Entry struct {
	Address  string  `yaml:"address"`
	Name     string  `yaml:"name"`
	Street   string  `yaml:"street"`
	Number   string  `yaml:"number"`
	Locality string  `yaml:"locality"`
	Lat      float64 `yaml:"lat"`
	Lng      float64 `yaml:"lng"`
}

func (e Entry) placemark() mapping.Placemark {
	c := model.Coordinate{Lat: e.Lat, Lng: e.Lng}
	return mapping.Placemark{Coordinate: &c, Name: e.Name, Street: e.Street, Number: e.Number, Locality: e.Locality}
}

// Provider implements mapping.Geocoder and mapping.Router.
type Provider struct {
	// Latency delays every call; the delay is cut short by ctx.
	Latency       time.Duration
	ReverseRadius float64
	SpeedKmh      float64

	mu      sync.RWMutex
	entries []Entry
	index   *rtreego.Rtree
}

// indexed is an entry position in the R-tree, keyed by (lat, lng).
type indexed struct {
	i    int
	rect rtreego.Rect
}

func (x indexed) Bounds() rtreego.Rect { return x.rect }

// New returns a Provider over entries.
func New(entries ...Entry) *Provider {
	p := &Provider{
		ReverseRadius: DefaultReverseRadius,
		SpeedKmh:      DefaultSpeedKmh,
		index:         rtreego.NewTree(2, 2, 8),
	}
	for _, e := range entries {
		p.add(e)
	}
	return p
}

// Load reads a YAML list of entries from path.
func Load(path string) (*Provider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse gazetteer %s: %w", path, err)
	}
	return New(entries...), nil
}

// Add registers another entry.
func (p *Provider) Add(e Entry) {
	p.mu.Lock()
	p.add(e)
	p.mu.Unlock()
}

func (p *Provider) add(e Entry) {
	p.entries = append(p.entries, e)
	p.index.Insert(indexed{i: len(p.entries) - 1, rect: rtreego.Point{e.Lat, e.Lng}.ToRect(pointTolerance)})
}

// near returns the indexes of entries inside the lat/lng box that encloses
// a circle of radius metres around c.
func (p *Provider) near(c model.Coordinate, radius float64) []int {
	dLat := radius / metersPerDegree
	dLng := 360.0
	if cos := math.Cos(c.Lat * math.Pi / 180); cos > 1e-6 {
		dLng = math.Min(dLng, radius/(metersPerDegree*cos))
	}
	box, err := rtreego.NewRectFromPoints(
		rtreego.Point{c.Lat - dLat, c.Lng - dLng},
		rtreego.Point{c.Lat + dLat, c.Lng + dLng},
	)
	if err != nil {
		return nil
	}
	hits := p.index.SearchIntersect(box)
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(indexed).i)
	}
	return out
}

func (p *Provider) wait(ctx context.Context) error {
	if p.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Forward returns every entry whose address contains the query, ignoring
// case and surrounding space.
func (p *Provider) Forward(ctx context.Context, address string) ([]mapping.Placemark, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(address))
	if q == "" {
		return nil, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []mapping.Placemark
	for _, e := range p.entries {
		if strings.Contains(strings.ToLower(e.Address), q) {
			out = append(out, e.placemark())
		}
	}
	return out, nil
}

// Reverse returns the nearest entry within ReverseRadius, if any.
func (p *Provider) Reverse(ctx context.Context, c model.Coordinate) ([]mapping.Placemark, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	best, bestDist := -1, math.Inf(1)
	for _, i := range p.near(c, p.ReverseRadius) {
		e := p.entries[i]
		d := c.DistanceTo(model.Coordinate{Lat: e.Lat, Lng: e.Lng})
		if d <= p.ReverseRadius && (d < bestDist || d == bestDist && i < best) {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil, nil
	}
	return []mapping.Placemark{p.entries[best].placemark()}, nil
}

// Directions returns the straight line between source and destination and,
// when alternates are requested, a detour through an offset midpoint.
func (p *Provider) Directions(ctx context.Context, req mapping.RouteRequest) ([]mapping.Route, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	direct := []model.Coordinate{req.Source, req.Destination}
	routes := []mapping.Route{p.route(direct)}
	if req.AlternateRoutes {
		d := req.Source.DistanceTo(req.Destination)
		mid := model.Coordinate{Lat: (req.Source.Lat + req.Destination.Lat) / 2, Lng: (req.Source.Lng + req.Destination.Lng) / 2}
		via := mid.Offset(d*0.35, 0)
		routes = append(routes, p.route([]model.Coordinate{req.Source, via, req.Destination}))
	}
	return routes, nil
}

func (p *Provider) route(path []model.Coordinate) mapping.Route {
	var meters float64
	for i := 1; i < len(path); i++ {
		meters += path[i-1].DistanceTo(path[i])
	}
	if len(path) > 2 {
		meters = math.Max(meters, detourFactor*path[0].DistanceTo(path[len(path)-1]))
	}
	speed := p.SpeedKmh
	if speed <= 0 {
		speed = DefaultSpeedKmh
	}
	secs := meters / (speed * 1000 / 3600)
	return mapping.Route{Path: path, DistanceMeters: meters, ExpectedTravelTime: time.Duration(secs * float64(time.Second))}
}
