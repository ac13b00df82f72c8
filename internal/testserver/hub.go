package testserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/crewdeck/crewdeck-go/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans change events out to every connection subscribed to a project
// scope.
type hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{} // projectID -> conns
}

func newHub() *hub {
	return &hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

func (h *hub) serve(projectID string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	if h.conns[projectID] == nil {
		h.conns[projectID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[projectID][conn] = struct{}{}
	h.mu.Unlock()

	// Clients never send application frames; read until the connection
	// drops so close handshakes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.mu.Lock()
		delete(h.conns[projectID], conn)
		h.mu.Unlock()
		conn.Close()
	}()
}

// broadcast sends one envelope to every subscriber of the project scope.
func (h *hub) broadcast(projectID, envType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	frame, err := json.Marshal(event.Envelope{Type: envType, Data: payload})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[projectID] {
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.conns {
		for conn := range conns {
			conn.Close()
		}
	}
	h.conns = make(map[string]map[*websocket.Conn]struct{})
}
