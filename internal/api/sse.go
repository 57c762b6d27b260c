package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gtmcore/orchestrator/internal/events"
)

// handleStream implements GET /runs/{id}/stream. It replays the run's
// event history (optionally starting after the Last-Event-ID the
// client last saw, so a reconnecting browser doesn't miss events) and
// then streams new events as they're published, with a periodic
// heartbeat to keep idle connections alive through proxies.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var afterSeq int64
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		if parsed, err := strconv.ParseInt(id, 10, 64); err == nil {
			afterSeq = parsed
		}
	}

	ch, cancel := s.events.Subscribe(runID, afterSeq)
	defer cancel()

	ctx := r.Context()
	s.logger.Info("SSE client connected", "remote_addr", r.RemoteAddr, "run_id", runID)

	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SSE client disconnected", "remote_addr", r.RemoteAddr, "run_id", runID)
			return

		case ev, open := <-ch:
			if !open {
				s.writeSSE(w, flusher, events.RunHeartbeat(runID))
				return
			}
			s.writeSSE(w, flusher, ev)

		case <-heartbeat.C:
			s.writeSSE(w, flusher, events.RunHeartbeat(runID))
		}
	}
}

// writeSSE encodes ev as a Server-Sent Event, stamping its Seq as the
// SSE id field so clients can resume via Last-Event-ID.
func (s *Server) writeSSE(w http.ResponseWriter, flusher http.Flusher, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal SSE event", "error", err)
		return
	}
	fmt.Fprintf(w, "id: %d\n", ev.Seq)
	fmt.Fprintf(w, "event: %s\n", ev.Kind)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
