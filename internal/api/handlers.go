package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/state"
)

type startRunRequest struct {
	ChangedDecision string `json:"changed_decision,omitempty"`
}

type startRunResponse struct {
	RunID     string `json:"run_id"`
	StreamURL string `json:"stream_url"`
}

// handleStartRun implements POST /scenarios/{id}/runs.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioID")

	var req startRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErr(w, core.ErrInput("BAD_REQUEST", "malformed JSON body"))
			return
		}
	}

	runID, err := s.runtime.StartRun(r.Context(), scenarioID, req.ChangedDecision)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, startRunResponse{
		RunID:     runID,
		StreamURL: "/runs/" + runID + "/stream",
	})
}

// handleResumeRun implements POST /runs/{id}/resume.
func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.runtime.ResumeRun(r.Context(), runID); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, startRunResponse{
		RunID:     runID,
		StreamURL: "/runs/" + runID + "/stream",
	})
}

// handleCancelRun implements DELETE /runs/{id}.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.runtime.CancelRun(r.Context(), runID); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

type runStatusResponse struct {
	Status          string `json:"status"`
	CheckpointIndex int64  `json:"checkpoint_index"`
}

// handleGetRun implements GET /runs/{id}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	status, idx, err := s.runtime.RunStatus(r.Context(), runID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, runStatusResponse{Status: status, CheckpointIndex: idx})
}

type selectDecisionRequest struct {
	SelectedOptionID string `json:"selected_option_id"`
	IsCustom         bool   `json:"is_custom"`
	Justification    string `json:"justification,omitempty"`
}

var decisionKeys = map[string]bool{
	"icp": true, "positioning": true, "pricing": true,
	"channels": true, "sales_motion": true,
}

// handleSelectDecision implements POST /scenarios/{id}/decisions/{key}/select.
func (s *Server) handleSelectDecision(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioID")
	key := chi.URLParam(r, "key")
	if !decisionKeys[key] {
		respondErr(w, core.ErrInput("UNKNOWN_DECISION", "unknown decision key: "+key))
		return
	}

	var req selectDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, core.ErrInput("BAD_REQUEST", "malformed JSON body"))
		return
	}
	if req.SelectedOptionID == "" {
		respondErr(w, core.ErrInput("MISSING_FIELD", "selected_option_id is required"))
		return
	}
	if req.IsCustom && req.Justification == "" {
		respondErr(w, core.ErrInput("MISSING_JUSTIFICATION", "custom overrides require a justification"))
		return
	}

	if err := s.runtime.SelectDecision(r.Context(), scenarioID, key, req.SelectedOptionID, req.IsCustom, req.Justification); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleComplete implements POST /scenarios/{id}/complete.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioID")
	if err := s.runtime.Complete(r.Context(), scenarioID); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

type exportResponse struct {
	Ready    bool                  `json:"ready"`
	Blocking []state.Contradiction `json:"blocking"`
}

// handleExport implements GET /scenarios/{id}/export.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioID")
	ready, blocking, err := s.runtime.ExportReadiness(r.Context(), scenarioID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if blocking == nil {
		blocking = []state.Contradiction{}
	}
	respondJSON(w, http.StatusOK, exportResponse{Ready: ready, Blocking: blocking})
}
