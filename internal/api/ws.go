package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/trika-ai/trika-engine/internal/streaming"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn serializes writes: the event pump and the client-message loop
// both write to the same connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

// terminalEvent reports whether an event type ends the stream: once the
// execution is completed or failed no further events can arrive.
func terminalEvent(eventType string) bool {
	return eventType == schema.EventCompleted || eventType == schema.EventFailed
}

// handleExecutionWS upgrades to WebSocket and streams progress events
// for one execution. Clients may send {"action":"ping"} for a liveness
// check and {"action":"cancel"} to cancel the execution.
func (s *Server) handleExecutionWS(w http.ResponseWriter, r *http.Request) {
	executionID := r.PathValue("id")

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), streaming.Filter{ExecutionID: executionID})
	if err != nil {
		conn.writeJSON(map[string]string{"error": "subscribe failed"})
		return
	}
	defer cancel()

	// Pump hub events to the client until the execution ends or the request
	// does, whichever comes first. Closing the connection on a terminal
	// event also unblocks the read loop below.
	go func() {
		for {
			select {
			case <-r.Context().Done():
				return
			case env, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.writeJSON(env.Event); err != nil {
					return
				}
				if terminalEvent(env.Event.Type) {
					conn.close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return
		}

		var msg struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.writeJSON(map[string]string{"error": "invalid JSON"})
			continue
		}

		switch msg.Action {
		case "ping":
			conn.writeJSON(map[string]string{"type": schema.EventPong})
		case "cancel":
			if err := s.deps.Engine.CancelExecution(r.Context(), executionID); err != nil {
				conn.writeJSON(map[string]string{"error": err.Error()})
			}
		}
	}
}
