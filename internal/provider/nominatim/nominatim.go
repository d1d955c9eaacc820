// Package nominatim is a mapping.Geocoder over the OpenStreetMap Nominatim
// HTTP API.
package nominatim

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

	"golang.org/x/time/rate"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "MyPlaces/1.0"
	// DefaultRate is the public instance usage policy: one request per second.
	DefaultRate = 1.0
)

// ErrStatus is wrapped when the API answers with a non-200 status.
var ErrStatus = errors.New("nominatim: unexpected status")

// Client talks to one Nominatim instance.
type Client struct {
	base      string
	userAgent string
	language  string
	limit     int
	http      *http.Client
	limiter   *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithUserAgent(ua string) Option      { return func(c *Client) { c.userAgent = ua } }
func WithLanguage(lang string) Option     { return func(c *Client) { c.language = lang } }

// WithRate sets the request rate per second. Zero or less disables
// throttling.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// New returns a Client for base, or DefaultBaseURL when base is empty.
func New(base string, opts ...Option) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		base:      strings.TrimRight(base, "/"),
		userAgent: DefaultUserAgent,
		limit:     5,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(DefaultRate), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type result struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Road        string `json:"road"`
		Pedestrian  string `json:"pedestrian"`
		HouseNumber string `json:"house_number"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
	} `json:"address"`
	Error string `json:"error"`
}

func (r result) placemark() (mapping.Placemark, bool) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return mapping.Placemark{}, false
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return mapping.Placemark{}, false
	}
	name := r.Name
	if name == "" {
		name = r.DisplayName
	}
	return mapping.Placemark{
		Coordinate: &model.Coordinate{Lat: lat, Lng: lon},
		Name:       name,
		Street:     firstNonEmpty(r.Address.Road, r.Address.Pedestrian),
		Number:     r.Address.HouseNumber,
		Locality:   firstNonEmpty(r.Address.City, r.Address.Town, r.Address.Village),
	}, true
}

// Forward resolves a free-text address.
func (c *Client) Forward(ctx context.Context, address string) ([]mapping.Placemark, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	q.Set("limit", strconv.Itoa(c.limit))
	var results []result
	if err := c.get(ctx, "/search", q, &results); err != nil {
		return nil, err
	}
	out := make([]mapping.Placemark, 0, len(results))
	for _, r := range results {
		if pm, ok := r.placemark(); ok {
			out = append(out, pm)
		}
	}
	return out, nil
}

// Reverse resolves a coordinate to the nearest address. Nominatim reports
// "Unable to geocode" for open water; that is an empty result, not an error.
func (c *Client) Reverse(ctx context.Context, at model.Coordinate) ([]mapping.Placemark, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', 7, 64))
	q.Set("lon", strconv.FormatFloat(at.Lng, 'f', 7, 64))
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	var r result
	if err := c.get(ctx, "/reverse", q, &r); err != nil {
		return nil, err
	}
	if r.Error != "" {
		return nil, nil
	}
	pm, ok := r.placemark()
	if !ok {
		return nil, nil
	}
	return []mapping.Placemark{pm}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("nominatim %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("nominatim %s: decode: %w", path, err)
	}
	return nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
