package osrm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

var (
	src = model.Coordinate{Lat: 52.517037, Lng: 13.388860}
	dst = model.Coordinate{Lat: 52.529407, Lng: 13.397634}
)

func TestDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route/v1/driving/13.388860,52.517037;13.397634,52.529407", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("alternatives"))
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[
			{"distance":1886.3,"duration":251.5,"geometry":{"type":"LineString","coordinates":[[13.38886,52.517037],[13.397634,52.529407]]}},
			{"distance":2100,"duration":300,"geometry":{"type":"LineString","coordinates":[[13.38886,52.517037],[13.39,52.52],[13.397634,52.529407]]}}
		]}`))
	}))
	defer srv.Close()

	routes, err := New(srv.URL, "test", nil).Directions(context.Background(), mapping.RouteRequest{
		Source: src, Destination: dst, Transport: mapping.Automobile, AlternateRoutes: true,
	})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, []model.Coordinate{src, dst}, routes[0].Path)
	m := mapping.MetricsFor(routes[0])
	assert.Equal(t, "1.9 km", m.Distance)
	assert.Equal(t, "4.2 min", m.Duration)
	assert.Equal(t, 5*time.Minute, routes[1].ExpectedTravelTime)
}

func TestNoRouteIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route between points"}`))
	}))
	defer srv.Close()

	routes, err := New(srv.URL, "", nil).Directions(context.Background(), mapping.RouteRequest{Source: src, Destination: dst})
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", nil).Directions(context.Background(), mapping.RouteRequest{Source: src, Destination: dst})
	assert.ErrorIs(t, err, ErrStatus)
}

func TestUnsupportedTransport(t *testing.T) {
	_, err := New("http://unused", "", nil).Directions(context.Background(), mapping.RouteRequest{Transport: "walking"})
	assert.ErrorIs(t, err, ErrProfile)
}
