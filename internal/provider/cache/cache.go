// Package cache decorates a mapping.Geocoder with a Redis read-through
// cache.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
)

const DefaultTTL = 24 * time.Hour

// KV is the subset of redis.Cmdable the cache needs.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Geocoder caches non-empty results of the wrapped geocoder. Redis errors
// fall through to the wrapped geocoder.
type Geocoder struct {
	next   mapping.Geocoder
	kv     KV
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// New wraps next. A zero ttl uses DefaultTTL.
func New(next mapping.Geocoder, kv KV, ttl time.Duration, log *zap.Logger) *Geocoder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Geocoder{next: next, kv: kv, ttl: ttl, prefix: "geocode:", log: log}
}

// Dial connects to the Redis server at url and wraps next.
func Dial(ctx context.Context, url string, next mapping.Geocoder, ttl time.Duration, log *zap.Logger) (*Geocoder, *redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return New(next, rdb, ttl, log), rdb, nil
}

// ForwardKey normalizes an address so that spacing and case do not split
// the cache.
func ForwardKey(address string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	sum := sha1.Sum([]byte(norm))
	return "fwd:" + hex.EncodeToString(sum[:])
}

// ReverseKey rounds to five decimals, about a metre.
func ReverseKey(c model.Coordinate) string {
	return "rev:" + strconv.FormatFloat(c.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(c.Lng, 'f', 5, 64)
}

func (g *Geocoder) Forward(ctx context.Context, address string) ([]mapping.Placemark, error) {
	return g.through(ctx, ForwardKey(address), func() ([]mapping.Placemark, error) {
		return g.next.Forward(ctx, address)
	})
}

func (g *Geocoder) Reverse(ctx context.Context, c model.Coordinate) ([]mapping.Placemark, error) {
	return g.through(ctx, ReverseKey(c), func() ([]mapping.Placemark, error) {
		return g.next.Reverse(ctx, c)
	})
}

func (g *Geocoder) through(ctx context.Context, key string, load func() ([]mapping.Placemark, error)) ([]mapping.Placemark, error) {
	key = g.prefix + key
	raw, err := g.kv.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var pms []mapping.Placemark
		if jerr := json.Unmarshal(raw, &pms); jerr == nil {
			return pms, nil
		}
		g.log.Warn("geocode cache entry unreadable", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		g.log.Warn("geocode cache get failed", zap.String("key", key), zap.Error(err))
	}

	pms, err := load()
	if err != nil || len(pms) == 0 {
		return pms, err
	}
	if data, jerr := json.Marshal(pms); jerr == nil {
		if serr := g.kv.Set(ctx, key, data, g.ttl).Err(); serr != nil {
			g.log.Warn("geocode cache set failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return pms, nil
}
