package gateway

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version       string   `json:"version"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Tools         []string `json:"tools"`
	Subscribers   int      `json:"trace_subscribers"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Version:       g.version,
			UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
			Subscribers:   g.broker.Len(),
		}
		if g.registry != nil {
			resp.Tools = g.registry.Names()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
