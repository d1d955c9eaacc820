package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
	"myplaces/internal/session"
)

// waitLimit bounds ?wait=true requests.
const waitLimit = 30 * time.Second

// CreateSessionHandler handles POST /v1/map/sessions
func (s *Server) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode    mapping.Mode `json:"mode"`
		PlaceID string       `json:"placeId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.Mode == "" {
		req.Mode = mapping.ModeShowPlace
	}
	var place model.Place
	switch req.Mode {
	case mapping.ModeShowPlace:
		if req.PlaceID == "" {
			writeProblem(w, http.StatusBadRequest, "Missing placeId", "showPlace needs a place", r.URL.Path)
			return
		}
		p, err := s.Store.GetPlace(r.Context(), req.PlaceID)
		if err != nil {
			writeError(w, r, "Place not found", err)
			return
		}
		place = p
	case mapping.ModeGetAddress:
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid mode", "mode must be showPlace or getAddress", r.URL.Path)
		return
	}
	sess, err := s.Sessions.Open(req.Mode, place)
	if err != nil {
		writeError(w, r, "Open session failed", err)
		return
	}
	w.Header().Set("Location", "/v1/map/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// SessionByIDHandler handles GET/DELETE /v1/map/sessions/{id}
func (s *Server) SessionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	switch r.Method {
	case http.MethodGet:
		sess, ok := s.session(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	case http.MethodDelete:
		if !s.Sessions.Close(id) {
			writeProblem(w, http.StatusNotFound, "Session not found", "", r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// AuthorizationHandler handles POST /v1/map/sessions/{id}/authorization
func (s *Server) AuthorizationHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	status, ok := mapping.ParseAuthorizationStatus(req.Status)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid status", "unknown authorization status "+strconv.Quote(req.Status), r.URL.Path)
		return
	}
	s.respond(w, r, sess, sess.SetAuthorization(status))
}

// ServicesHandler handles POST /v1/map/sessions/{id}/services
func (s *Server) ServicesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	s.respond(w, r, sess, sess.SetServicesEnabled(req.Enabled))
}

// LocationHandler handles POST /v1/map/sessions/{id}/location
func (s *Server) LocationHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	c, ok := decodeCoordinate(w, r)
	if !ok {
		return
	}
	s.respond(w, r, sess, sess.UpdateLocation(c))
}

// RegionHandler handles POST /v1/map/sessions/{id}/region; the body is the
// new map center. With ?wait=true the response follows the address lookup.
func (s *Server) RegionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	c, ok := decodeCoordinate(w, r)
	if !ok {
		return
	}
	h, err := sess.Pan(c)
	if err != nil {
		writeError(w, r, "Pan failed", err)
		return
	}
	s.respondAfter(w, r, sess, h)
}

// CenterHandler handles POST /v1/map/sessions/{id}/center
func (s *Server) CenterHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	found, err := sess.CenterOnUser()
	if err != nil {
		writeError(w, r, "Center failed", err)
		return
	}
	if !found {
		writeProblem(w, http.StatusConflict, "No current location", "the device has not reported a fix", r.URL.Path)
		return
	}
	s.respond(w, r, sess, nil)
}

// RouteHandler handles POST /v1/map/sessions/{id}/route. With ?wait=true
// the response follows the route outcome.
func (s *Server) RouteHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	h, err := sess.Route()
	if err != nil {
		writeError(w, r, "Route failed", err)
		return
	}
	s.respondAfter(w, r, sess, h)
}

// DoneHandler handles POST /v1/map/sessions/{id}/done
func (s *Server) DoneHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	addr, err := sess.Done()
	if err != nil {
		writeError(w, r, "Done failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.Sessions.Get(mux.Vars(r)["id"])
	if !ok {
		writeProblem(w, http.StatusNotFound, "Session not found", "", r.URL.Path)
		return nil, false
	}
	return sess, true
}

// respond writes the session snapshot. Coordinator failures are outcomes
// already surfaced as alerts, not request errors.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	var f *mapping.Failure
	body := map[string]any{}
	switch {
	case err == nil:
	case errors.As(err, &f):
		body["failure"] = f.Kind
	default:
		writeError(w, r, "Session update failed", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := sess.Sync(ctx); err != nil {
		writeError(w, r, "Session unavailable", err)
		return
	}
	body["session"] = sess.Snapshot()
	writeJSON(w, http.StatusOK, body)
}

// respondAfter answers 202 at once, or waits for h with ?wait=true.
func (s *Server) respondAfter(w http.ResponseWriter, r *http.Request, sess *session.Session, h *mapping.Handle) {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, map[string]any{"session": sess.Snapshot()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), waitLimit)
	defer cancel()
	select {
	case <-h.Done():
	case <-ctx.Done():
		writeProblem(w, http.StatusGatewayTimeout, "Timed out", "map provider did not answer in time", r.URL.Path)
		return
	}
	s.respond(w, r, sess, nil)
}

func decodeCoordinate(w http.ResponseWriter, r *http.Request) (model.Coordinate, bool) {
	var c model.Coordinate
	if err := decodeJSON(w, r, &c); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return c, false
	}
	if !c.Valid() {
		writeProblem(w, http.StatusBadRequest, "Invalid coordinate", "lat must be within ±90 and lng within ±180", r.URL.Path)
		return c, false
	}
	return c, true
}
