package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

func TestForward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "10 Downing Street", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"lat":"51.5033635","lon":"-0.1276248","name":"Prime Minister's Office","address":{"road":"Downing Street","house_number":"10","city":"London"}},
			{"lat":"bad","lon":"0"}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithUserAgent("test-agent"), WithRate(0))
	pms, err := c.Forward(context.Background(), "10 Downing Street")
	require.NoError(t, err)
	require.Len(t, pms, 1)
	assert.Equal(t, "Downing Street, 10", mapping.FormatAddress(pms[0]))
	assert.Equal(t, "London", pms[0].Locality)
	require.NotNil(t, pms[0].Coordinate)
	assert.InDelta(t, 51.5033635, pms[0].Coordinate.Lat, 1e-9)
}

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		if r.URL.Query().Get("lat") == "0.0000000" {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		_, _ = w.Write([]byte(`{"lat":"48.8583","lon":"2.2944","address":{"pedestrian":"Avenue Gustave Eiffel","town":"Paris"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithRate(0))
	pms, err := c.Reverse(context.Background(), model.Coordinate{Lat: 48.8583, Lng: 2.2944})
	require.NoError(t, err)
	require.Len(t, pms, 1)
	assert.Equal(t, "Avenue Gustave Eiffel", mapping.FormatAddress(pms[0]))

	pms, err = c.Reverse(context.Background(), model.Coordinate{})
	require.NoError(t, err)
	assert.Empty(t, pms)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithRate(0)).Forward(context.Background(), "x")
	assert.ErrorIs(t, err, ErrStatus)
}

func TestRateLimitHonorsContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithRate(0.01))
	_, err := c.Forward(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Forward(ctx, "second")
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
