package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"myplaces/internal/metrics"
	"myplaces/internal/model"
	"myplaces/internal/placelist"
)

// ListPlacesHandler handles GET /v1/places?sort=rating|name&order=asc|desc&q=
func (s *Server) ListPlacesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order := model.Sort{Key: model.ParseSortKey(q.Get("sort")), Ascending: true}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		order.Ascending = false
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid order", "order must be asc or desc", r.URL.Path)
		return
	}
	places, err := s.Store.ListPlaces(r.Context(), order)
	if err != nil {
		writeError(w, r, "List places failed", err)
		return
	}
	if query := q.Get("q"); query != "" {
		places = placelist.Filter(places, query)
	}
	if places == nil {
		places = []model.Place{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": places, "sort": order})
}

// CreatePlaceHandler handles POST /v1/places
func (s *Server) CreatePlaceHandler(w http.ResponseWriter, r *http.Request) {
	var in model.PlaceInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	p, err := s.Store.CreatePlace(r.Context(), in)
	if err != nil {
		writeError(w, r, "Create place failed", err)
		return
	}
	metrics.PlaceMutations.WithLabelValues("created").Inc()
	s.Log.Info("place created", zap.String("id", p.ID), zap.String("name", p.Name))
	w.Header().Set("Location", "/v1/places/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// PlaceByIDHandler handles GET/PUT/DELETE /v1/places/{id}
func (s *Server) PlaceByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	switch r.Method {
	case http.MethodGet:
		p, err := s.Store.GetPlace(r.Context(), id)
		if err != nil {
			writeError(w, r, "Place not found", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut:
		var in model.PlaceInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		p, err := s.Store.UpdatePlace(r.Context(), id, in)
		if err != nil {
			writeError(w, r, "Update place failed", err)
			return
		}
		metrics.PlaceMutations.WithLabelValues("updated").Inc()
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := s.Store.DeletePlace(r.Context(), id); err != nil {
			writeError(w, r, "Delete place failed", err)
			return
		}
		metrics.PlaceMutations.WithLabelValues("deleted").Inc()
		s.Log.Info("place deleted", zap.String("id", id))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PlaceImageHandler handles GET /v1/places/{id}/image
func (s *Server) PlaceImageHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.GetPlace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, "Place not found", err)
		return
	}
	if len(p.ImageData) == 0 {
		writeProblem(w, http.StatusNotFound, "No image", "place has no image", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(p.ImageData))
	w.Header().Set("Cache-Control", "private, max-age=60")
	_, _ = w.Write(p.ImageData)
}

// PlaceEventsHandler handles GET /v1/places/events (SSE of store changes).
func (s *Server) PlaceEventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.Changes == nil {
		writeProblem(w, http.StatusNotImplemented, "Place events unavailable", "store does not publish changes", r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	ch, cancel := s.Changes.Subscribe()
	defer cancel()
	startStream(w)
	heartbeat(w, "places")
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeatEvery())
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(map[string]any{"id": c.Place.ID, "place": c.Place})
			fmt.Fprintf(w, "event: place.%s\n", c.Kind)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat(w, "places")
			flusher.Flush()
		}
	}
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler handles GET /readyz; the store must answer a ping.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
