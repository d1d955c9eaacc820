package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"myplaces/internal/session"
)

const defaultHeartbeat = 15 * time.Second

func (s *Server) heartbeatEvery() time.Duration {
	if s.Heartbeat > 0 {
		return s.Heartbeat
	}
	return defaultHeartbeat
}

func startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func heartbeat(w http.ResponseWriter, id string) {
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"id\":%q,\"ts\":%q}\n\n", id, time.Now().UTC().Format(time.RFC3339))
}

func writeEvent(w http.ResponseWriter, evt session.Event) {
	b, _ := json.Marshal(evt.Data)
	if evt.Data == nil {
		b = []byte("{}")
	}
	fmt.Fprintf(w, "event: %s\n", evt.Type)
	fmt.Fprintf(w, "data: %s\n\n", b)
}

// SessionEventsHandler handles GET /v1/map/sessions/{id}/events (SSE). The
// stream opens with the current snapshot and ends when the session closes.
func (s *Server) SessionEventsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	ch := s.Broker.Subscribe(sess.ID)
	defer s.Broker.Unsubscribe(sess.ID, ch)

	startStream(w)
	heartbeat(w, sess.ID)
	writeEvent(w, session.Event{Type: "session.snapshot", Data: map[string]any{"session": sess.Snapshot()}})
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeatEvery())
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, evt)
			flusher.Flush()
			if evt.Type == "session.closed" {
				return
			}
		case <-ticker.C:
			heartbeat(w, sess.ID)
			flusher.Flush()
		}
	}
}
