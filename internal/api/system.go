package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/usbflow-core/internal/elevation"
)

// systemResponse summarises service health for dashboards and fleet
// tooling.
type systemResponse struct {
	Version        string          `json:"version"`
	UptimeSeconds  int64           `json:"uptime_seconds"`
	ElevationState elevation.State `json:"elevation_state"`
	WSClients      int             `json:"ws_clients"`
	Snapshot       any             `json:"snapshot"`
}

// handleSystem returns service-level status: version, uptime, snapshot
// counters, elevation state and connected WebSocket clients.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	resp := systemResponse{
		Version:        s.version,
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		ElevationState: elevation.StateIdle,
		Snapshot:       s.store.GetStats(),
	}
	if s.coordinator != nil {
		resp.ElevationState = s.coordinator.State()
	}
	if s.hub != nil {
		resp.WSClients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory returns recent mutation records, newest first. The
// limit query parameter caps the page; the repository clamps it.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"history": []any{}})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to load mutation history", "error", err)
		writeInternalError(w, "failed to load mutation history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": records,
		"count":   len(records),
	})
}

// handleCurrentOperation reports the in-flight elevated operation, if any.
func (s *Server) handleCurrentOperation(w http.ResponseWriter, _ *http.Request) {
	if s.coordinator == nil {
		writeJSON(w, http.StatusOK, map[string]any{"pending": false})
		return
	}

	info, ok := s.coordinator.Pending()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"pending": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pending":   true,
		"operation": info,
	})
}
