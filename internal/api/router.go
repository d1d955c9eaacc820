package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"myplaces/internal/metrics"
)

// Router wires every endpoint behind the middleware chain.
func (s *Server) Router() http.Handler {
	r := s.routes()
	r.Use(s.accessLog)
	return s.cors(s.rateLimit(r))
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	// Places
	r.HandleFunc("/v1/places", s.ListPlacesHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/places", s.CreatePlaceHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/places/events", s.PlaceEventsHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/places/{id}", s.PlaceByIDHandler).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)
	r.HandleFunc("/v1/places/{id}/image", s.PlaceImageHandler).Methods(http.MethodGet)

	// Map sessions
	r.HandleFunc("/v1/map/sessions", s.CreateSessionHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/map/sessions/{id}", s.SessionByIDHandler).Methods(http.MethodGet, http.MethodDelete)
	r.HandleFunc("/v1/map/sessions/{id}/authorization", s.AuthorizationHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/map/sessions/{id}/services", s.ServicesHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/map/sessions/{id}/location", s.LocationHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/map/sessions/{id}/region", s.RegionHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/map/sessions/{id}/center", s.CenterHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/map/sessions/{id}/route", s.RouteHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/map/sessions/{id}/done", s.DoneHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/map/sessions/{id}/events", s.SessionEventsHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/map/sessions/{id}/ws", s.SessionWSHandler).Methods(http.MethodGet)

	// Health and ops
	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.ReadyHandler).Methods(http.MethodGet)
	r.HandleFunc("/debug/config", s.DebugJSON).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", s.OpenAPIHandler).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.DocsHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeProblem(w, http.StatusNotFound, "Not Found", "", req.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", req.Method, req.URL.Path)
	})
	return r
}
