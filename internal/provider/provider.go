// Package provider selects the geocoder and router implementations from
// configuration.
package provider

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"myplaces/internal/config"
	"myplaces/internal/mapping"
	"myplaces/internal/provider/cache"
	"myplaces/internal/provider/nominatim"
	"myplaces/internal/provider/osrm"
	"myplaces/internal/provider/static"
)

// Set is the configured geocoder and router. Close releases the cache
// connection, if any.
type Set struct {
	Geocoder mapping.Geocoder
	Router   mapping.Router
	closers  []func() error
}

func (s *Set) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build wires providers from cfg:
//   - geocoder: Nominatim when Geocoder.URL is set, else the static
//     gazetteer (empty when Geocoder.Gazetteer is unset)
//   - router: OSRM when Router.URL is set, else the static router
//   - a Redis cache in front of the geocoder when Redis.URL is set
//
// An unreachable Redis is logged and skipped.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Set, error) {
	if log == nil {
		log = zap.NewNop()
	}
	hc := &http.Client{Timeout: 10 * time.Second}
	set := &Set{}

	var local *static.Provider
	staticProvider := func() (*static.Provider, error) {
		if local != nil {
			return local, nil
		}
		if cfg.Geocoder.Gazetteer == "" {
			local = static.New()
			return local, nil
		}
		p, err := static.Load(cfg.Geocoder.Gazetteer)
		if err != nil {
			return nil, err
		}
		local = p
		return local, nil
	}

	if cfg.Geocoder.URL != "" {
		set.Geocoder = nominatim.New(cfg.Geocoder.URL,
			nominatim.WithHTTPClient(hc),
			nominatim.WithUserAgent(cfg.Geocoder.UserAgent),
			nominatim.WithLanguage(cfg.Geocoder.Language),
			nominatim.WithRate(cfg.Geocoder.RateRPS),
		)
		log.Info("geocoder: nominatim", zap.String("url", cfg.Geocoder.URL))
	} else {
		p, err := staticProvider()
		if err != nil {
			return nil, err
		}
		set.Geocoder = p
		log.Info("geocoder: static gazetteer", zap.String("path", cfg.Geocoder.Gazetteer))
	}

	if cfg.Router.URL != "" {
		set.Router = osrm.New(cfg.Router.URL, cfg.Geocoder.UserAgent, hc)
		log.Info("router: osrm", zap.String("url", cfg.Router.URL))
	} else {
		p, err := staticProvider()
		if err != nil {
			return nil, err
		}
		set.Router = p
		log.Info("router: static")
	}

	if cfg.Redis.URL != "" {
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		cached, rdb, err := cache.Dial(cctx, cfg.Redis.URL, set.Geocoder, cfg.Geocoder.CacheTTL, log)
		cancel()
		if err != nil {
			log.Warn("geocode cache disabled", zap.Error(err))
		} else {
			set.Geocoder = cached
			set.closers = append(set.closers, rdb.Close)
		}
	}
	return set, nil
}
