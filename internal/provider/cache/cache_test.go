package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
	"myplaces/internal/provider/static"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	down bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memKV) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v, ok := m.data[key]; {
	case m.down:
		cmd.SetErr(errors.New("connection refused"))
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(v)
	}
	return cmd
}

func (m *memKV) Set(ctx context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	m.data[key] = string(value.([]byte))
	m.ttl[key] = exp
	cmd.SetVal("OK")
	return cmd
}

type countingGeocoder struct {
	mapping.Geocoder
	forward int
}

func (c *countingGeocoder) Forward(ctx context.Context, address string) ([]mapping.Placemark, error) {
	c.forward++
	return c.Geocoder.Forward(ctx, address)
}

func TestForwardReadThrough(t *testing.T) {
	next := &countingGeocoder{Geocoder: static.New(static.Entry{Address: "1 Main St, Springfield", Street: "Main St", Number: "1", Lat: 1, Lng: 2})}
	kv := newMemKV()
	g := New(next, kv, time.Hour, nil)

	first, err := g.Forward(context.Background(), "1 Main St")
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := g.Forward(context.Background(), "  1  MAIN st ")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.forward)
	assert.Equal(t, time.Hour, kv.ttl["geocode:"+ForwardKey("1 main st")])
}

func TestEmptyResultsAreNotCached(t *testing.T) {
	next := &countingGeocoder{Geocoder: static.New()}
	g := New(next, newMemKV(), 0, nil)
	for i := 0; i < 2; i++ {
		pms, err := g.Forward(context.Background(), "nowhere")
		require.NoError(t, err)
		assert.Empty(t, pms)
	}
	assert.Equal(t, 2, next.forward)
}

func TestRedisDownFallsThrough(t *testing.T) {
	kv := newMemKV()
	kv.down = true
	g := New(static.New(static.Entry{Address: "x", Lat: 1, Lng: 1}), kv, 0, nil)
	pms, err := g.Forward(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, pms, 1)
}

func TestReverseKeyRounds(t *testing.T) {
	a := ReverseKey(model.Coordinate{Lat: 51.500001, Lng: -0.1200004})
	b := ReverseKey(model.Coordinate{Lat: 51.500004, Lng: -0.1200001})
	assert.Equal(t, a, b)
	assert.Equal(t, "rev:51.50000,-0.12000", a)
}

func TestRedisIntegration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	g, rdb, err := Dial(ctx, url, static.New(static.Entry{Address: "Cache Lane", Lat: 3, Lng: 4}), time.Minute, nil)
	require.NoError(t, err)
	defer rdb.Close()
	pms, err := g.Forward(ctx, "cache lane")
	require.NoError(t, err)
	require.Len(t, pms, 1)
	n, err := rdb.Exists(ctx, "geocode:"+ForwardKey("cache lane")).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
