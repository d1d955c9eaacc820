package api

import (
	"net/http"
	"time"

	"myplaces/internal/buildinfo"
)

// DebugJSON handles GET /debug/config: build info and the effective
// configuration with credentials removed.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Config.Redacted(),
	}
	if s.Sessions != nil {
		info["sessions"] = s.Sessions.Len()
	}
	writeJSON(w, http.StatusOK, info)
}
