package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope of every JSON answer.
//
// Status is one of "healthy", "degraded", "unhealthy", "ok" or "error".
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already out; this is best effort.
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func newResponse(status string, data any, errMsg string) Response {
	return Response{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     errMsg,
	}
}

// HealthyResponse creates a successful health check response.
func HealthyResponse(data any) Response { return newResponse("healthy", data, "") }

// DegradedResponse reports a serving array with a missing device.
func DegradedResponse(data any) Response { return newResponse("degraded", data, "") }

// UnhealthyResponse creates a failed health check response.
func UnhealthyResponse(errMsg string) Response { return newResponse("unhealthy", nil, errMsg) }

// OKResponse creates a generic successful response.
func OKResponse(data any) Response { return newResponse("ok", data, "") }
