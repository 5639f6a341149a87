package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/trika-ai/trika-engine/internal/streaming"
)

// handleExecutionSSE streams progress events for one execution as
// Server-Sent Events. Fallback for clients that cannot hold a WebSocket.
func (s *Server) handleExecutionSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), streaming.Filter{
		ExecutionID: r.PathValue("id"),
	})
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(env.Event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Event.Type, data)
			flusher.Flush()
			if terminalEvent(env.Event.Type) {
				return
			}
		}
	}
}
