package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vigil-agent/vigil/internal/agent"
	"github.com/vigil-agent/vigil/internal/oracle"
)

// maxRequestBody bounds inbound JSON bodies.
const maxRequestBody = 64 * 1024

// ChatRequest is the body of POST /api/v1/agent/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the sealed run, without the full trace.
type ChatResponse struct {
	RunID     string        `json:"run_id"`
	Outcome   agent.Outcome `json:"outcome"`
	Answer    string        `json:"answer"`
	Steps     int           `json:"steps"`
	Artifacts []string      `json:"artifacts,omitempty"`
}

func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		start := time.Now()
		run, err := g.runner.Run(r.Context(), req.Message)
		g.metrics.ObserveRun(run, time.Since(start))

		resp := ChatResponse{
			RunID:   run.ID,
			Outcome: run.Outcome,
			Answer:  run.Answer,
			Steps:   len(run.Steps),
		}
		for _, s := range run.Steps {
			if s.ArtifactRef != "" {
				resp.Artifacts = append(resp.Artifacts, s.ArtifactRef)
			}
		}

		writeJSON(w, statusForOutcome(run.Outcome, err), resp)
	}
}

// ReportRequest is the body of POST /api/v1/agent/report.
type ReportRequest struct {
	Focus string `json:"focus"`
}

func (g *Gateway) handleReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReportRequest
		// An empty body means an unfocused report.
		if r.ContentLength > 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				return
			}
		}

		rep, err := g.reporter.Generate(r.Context(), req.Focus)
		writeJSON(w, statusForOutcome(rep.Outcome, err), rep)
	}
}

func (g *Gateway) handlePlot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimPrefix(r.URL.Path, "/api/v1/plots/")
		path, err := g.artifacts.Path(ref)
		if err != nil {
			http.Error(w, "invalid plot reference", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, path)
	}
}

// statusForOutcome maps a sealed run to an HTTP status. Blocked runs are
// client errors; oracle or contract failures are upstream errors.
func statusForOutcome(outcome agent.Outcome, err error) int {
	switch outcome {
	case agent.OutcomeAnswer, agent.OutcomeExhausted:
		return http.StatusOK
	case agent.OutcomeBlocked:
		return http.StatusForbidden
	default:
		if errors.Is(err, oracle.ErrDecisionFailed) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
