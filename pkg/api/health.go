package api

import (
	"net/http"

	"github.com/marmos91/dittoraid/pkg/raid"
)

// StatusSource provides array status. *raid.DeviceSet implements it.
type StatusSource interface {
	Status() raid.SetStatus
}

// Handler serves the health and status endpoints.
//
// Endpoints:
//   - Liveness: the process is up
//   - Readiness: the array is assembled and no offline procedure is running
//   - Status: slot table and procedure progress
type Handler struct {
	source   StatusSource
	progress *Progress
}

// NewHandler creates a handler. source and progress may be nil; a nil source
// reports not ready.
func NewHandler(source StatusSource, progress *Progress) *Handler {
	return &Handler{source: source, progress: progress}
}

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	Array    *raid.SetStatus   `json:"array,omitempty"`
	Progress *ProgressSnapshot `json:"progress,omitempty"`
}

// Liveness handles GET /health.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, HealthyResponse(map[string]string{
		"service": "dittoraid",
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 until the array is assembled and while a rebuild, init or
// verify is still running. A degraded array is ready but reported as such.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		JSON(w, http.StatusServiceUnavailable, UnhealthyResponse("array not assembled"))
		return
	}

	if snap, ok := h.snapshot(); ok && !snap.Finished {
		JSON(w, http.StatusServiceUnavailable, UnhealthyResponse(snap.Phase+" in progress"))
		return
	}

	st := h.source.Status()
	if st.Degraded {
		JSON(w, http.StatusOK, DegradedResponse(st))
		return
	}
	JSON(w, http.StatusOK, HealthyResponse(st))
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if h.source != nil {
		st := h.source.Status()
		resp.Array = &st
	}
	if snap, ok := h.snapshot(); ok {
		resp.Progress = &snap
	}
	JSON(w, http.StatusOK, OKResponse(resp))
}

func (h *Handler) snapshot() (ProgressSnapshot, bool) {
	if h.progress == nil {
		return ProgressSnapshot{}, false
	}
	return h.progress.Snapshot()
}
