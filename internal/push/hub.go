// Package push fans badge counts and navigation events out to connected UI
// clients over WebSocket, and feeds incoming push payloads into the
// orchestrator.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Hub tracks active WebSocket connections. It implements the Pusher and
// Navigator collaborators of the mobile-auth coordinator.
type Hub struct {
	mu        sync.RWMutex
	conns     map[*websocket.Conn]struct{}
	onPayload func(payload []byte)
}

// NewHub creates a hub. onPayload receives every message a client sends over
// the socket; the demo UI uses this channel to deliver simulated push
// payloads.
func NewHub(onPayload func(payload []byte)) *Hub {
	return &Hub{
		conns:     make(map[*websocket.Conn]struct{}),
		onPayload: onPayload,
	}
}

// SetPayloadHandler installs the push payload sink after construction.
func (h *Hub) SetPayloadHandler(fn func(payload []byte)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPayload = fn
}

// ServeHTTP upgrades the request and pumps messages until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr)
		}
	}()

	h.register(ws)
	defer h.unregister(ws)
	slog.Info("push client connected", "ip", r.RemoteAddr)

	for {
		_, data, err := ws.Read(r.Context())
		if err != nil {
			return
		}
		h.mu.RLock()
		fn := h.onPayload
		h.mu.RUnlock()
		if fn != nil {
			fn(data)
		}
	}
}

func (h *Hub) register(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[ws] = struct{}{}
}

func (h *Hub) unregister(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, ws)
}

// UpdateBadge broadcasts the pending-transaction count to every client.
func (h *Hub) UpdateBadge(count int) {
	h.broadcast(map[string]any{"type": "badge", "count": count})
}

// ShowPendingTransactions asks every client to navigate to the pending
// transactions view.
func (h *Hub) ShowPendingTransactions() {
	h.broadcast(map[string]any{"type": "navigate", "view": "pending_transactions"})
}

func (h *Hub) broadcast(msg map[string]any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal push message", "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for ws := range h.conns {
		conns = append(conns, ws)
	}
	h.mu.RUnlock()

	for _, ws := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("push write failed, client likely gone", "error", err)
		}
		cancel()
	}
}
