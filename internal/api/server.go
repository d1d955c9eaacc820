package api

import (
	"time"

	"go.uber.org/zap"

	"myplaces/internal/config"
	"myplaces/internal/placelist"
	"myplaces/internal/session"
	"myplaces/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	Store    store.Store
	Sessions *session.Registry
	Broker   EventBroker
	Config   *config.Config
	Log      *zap.Logger

	// Changes feeds the places event stream; nil disables it.
	Changes placelist.Watcher
	// Heartbeat is the idle interval between stream keepalives.
	Heartbeat time.Duration
}

// NewServer creates a Server. A nil cfg uses config.Default and a nil log
// discards output.
func NewServer(st store.Store, sessions *session.Registry, broker EventBroker, cfg *config.Config, log *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{Store: st, Sessions: sessions, Broker: broker, Config: cfg, Log: log}
	if w, ok := st.(placelist.Watcher); ok {
		s.Changes = w
	}
	return s
}
