package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/usbflow-core/internal/elevation"
	"github.com/nerrad567/usbflow-core/internal/usb"
)

// deviceView is the wire representation of one device.
type deviceView struct {
	Path          string `json:"path"`
	Description   string `json:"description"`
	Manufacturer  string `json:"manufacturer,omitempty"`
	Type          string `json:"type"`
	Power         string `json:"power"`
	SleepDisabled bool   `json:"sleep_disabled"`
}

// deviceListResponse wraps the filtered device snapshot.
type deviceListResponse struct {
	Devices []deviceView `json:"devices"`
	Count   int          `json:"count"`
	Total   int          `json:"total"`
	Seq     uint64       `json:"seq"`
	TakenAt time.Time    `json:"taken_at"`
}

// setStateRequest mutates one device's power flag.
type setStateRequest struct {
	Path    string `json:"path"`
	Disable bool   `json:"disable"`
}

// mutationResponse reports the outcome of a power-flag mutation. Token
// is only set when the request was handed to the elevation coordinator.
type mutationResponse struct {
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
	Token   string `json:"token,omitempty"`
}

// disableAllResponse reports a bulk disable pass.
type disableAllResponse struct {
	Outcome   string `json:"outcome"`
	Attempted int    `json:"attempted"`
	Failures  int    `json:"failures"`
	Token     string `json:"token,omitempty"`
}

func toDeviceView(d usb.Device) deviceView {
	return deviceView{
		Path:          d.Path,
		Description:   d.Description,
		Manufacturer:  d.Manufacturer,
		Type:          d.Type,
		Power:         string(d.Power),
		SleepDisabled: d.SleepDisabled(),
	}
}

// handleListDevices returns the current snapshot, filtered and sorted
// per query parameters: type, q (free text), sort.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := usb.Filter{
		Type: q.Get("type"),
		Text: strings.TrimSpace(q.Get("q")),
		Sort: usb.ParseSortMode(q.Get("sort")),
	}

	devices := s.store.Query(filter)
	views := make([]deviceView, len(devices))
	for i, d := range devices {
		views[i] = toDeviceView(d)
	}

	writeJSON(w, http.StatusOK, deviceListResponse{
		Devices: views,
		Count:   len(views),
		Total:   s.store.GetStats().TotalDevices,
		Seq:     s.store.Seq(),
		TakenAt: s.store.TakenAt(),
	})
}

// handleDeviceTypes returns the distinct type tags present in the snapshot.
func (s *Server) handleDeviceTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"types": s.store.Types(),
	})
}

// handleDeviceStats returns snapshot-level counters.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetStats())
}

// handleSetDeviceState toggles one device's power-management flag.
//
// A denied write is handed to the elevation coordinator and answered
// with 202 plus the operation token; clients follow progress over the
// WebSocket operation channel.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Path == "" {
		writeBadRequest(w, "path is required")
		return
	}

	device, ok := s.store.Get(req.Path)
	if !ok {
		writeNotFound(w, "unknown device path")
		return
	}

	result := s.executor.WritePowerFlag(r.Context(), req.Path, req.Disable)
	switch result.Outcome {
	case usb.OutcomeSuccess:
		s.notifyMutation(usb.ActionSet, string(result.Outcome))
		s.requestRefresh()
		writeJSON(w, http.StatusOK, mutationResponse{Outcome: string(result.Outcome)})

	case usb.OutcomeNeedsElevation:
		s.escalateSet(w, r, device, req.Disable)

	default:
		s.notifyMutation(usb.ActionSet, string(result.Outcome))
		s.requestRefresh()
		writeJSON(w, http.StatusInternalServerError, mutationResponse{
			Outcome: string(result.Outcome),
			Detail:  result.Detail,
		})
	}
}

// escalateSet hands a denied single-device write to the coordinator.
func (s *Server) escalateSet(w http.ResponseWriter, r *http.Request, device usb.Device, disable bool) {
	if s.coordinator == nil {
		writeJSON(w, http.StatusOK, mutationResponse{
			Outcome: string(usb.OutcomeNeedsElevation),
			Detail:  "elevation is not available",
		})
		return
	}

	label := "Sleep enabled for " + device.Description
	if disable {
		label = "Sleep disabled for " + device.Description
	}

	var value uint32 = 1
	if disable {
		value = 0
	}

	token, err := s.coordinator.Begin(r.Context(), elevation.Request{
		BuildScript: func(resultPath string) string {
			return elevation.BuildSetScript(device.Path, usb.PowerValueName, value, resultPath)
		},
		SuccessLabel: label,
		Action:       usb.ActionElevatedSet,
		KeyPath:      device.Path,
		Disable:      disable,
	})
	s.respondEscalation(w, token, err)
}

// handleDisableAll disables power management on every device in the
// snapshot. If the very first write is denied, the whole batch is
// escalated instead of partially applied.
func (s *Server) handleDisableAll(w http.ResponseWriter, r *http.Request) {
	paths := s.store.Paths()
	if len(paths) == 0 {
		writeJSON(w, http.StatusOK, disableAllResponse{Outcome: string(usb.OutcomeSuccess)})
		return
	}

	result := s.executor.DisableAll(r.Context(), paths)
	if !result.NeedsElevation {
		outcome := usb.OutcomeSuccess
		if result.Failures > 0 {
			outcome = usb.OutcomeHardError
		}
		s.notifyMutation(usb.ActionDisableAll, string(outcome))
		s.requestRefresh()
		writeJSON(w, http.StatusOK, disableAllResponse{
			Outcome:   string(outcome),
			Attempted: result.Attempted,
			Failures:  result.Failures,
		})
		return
	}

	if s.coordinator == nil {
		writeJSON(w, http.StatusOK, disableAllResponse{
			Outcome: string(usb.OutcomeNeedsElevation),
		})
		return
	}

	token, err := s.coordinator.Begin(r.Context(), elevation.Request{
		BuildScript: func(resultPath string) string {
			return elevation.BuildDisableAllScript(s.enumRoot, usb.PowerValueName, resultPath)
		},
		SuccessLabel: "Sleep disabled for all devices",
		Action:       usb.ActionElevatedDisableAll,
		Disable:      true,
	})
	if err != nil {
		s.respondEscalation(w, token, err)
		return
	}
	writeJSON(w, http.StatusAccepted, disableAllResponse{
		Outcome: string(usb.OutcomeNeedsElevation),
		Token:   token,
	})
}

// respondEscalation maps a coordinator Begin outcome to an HTTP reply.
func (s *Server) respondEscalation(w http.ResponseWriter, token string, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, mutationResponse{
			Outcome: string(usb.OutcomeNeedsElevation),
			Token:   token,
		})
	case errors.Is(err, elevation.ErrOperationInProgress):
		writeConflict(w, "an elevated operation is already in progress")
	case errors.Is(err, elevation.ErrDeclined):
		writeJSON(w, http.StatusOK, mutationResponse{
			Outcome: "elevation_declined",
			Detail:  "the privilege prompt was declined",
		})
	default:
		s.logger.Error("elevation launch failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeInternal, "failed to launch elevation helper")
	}
}

// handleRefresh schedules an immediate rescan of the device tree.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.requestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) requestRefresh() {
	if s.refresher != nil {
		s.refresher.RequestRefresh()
	}
}

func (s *Server) notifyMutation(action, outcome string) {
	if s.onMutation != nil {
		s.onMutation(action, outcome)
	}
}
