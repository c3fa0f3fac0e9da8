package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"nhooyr.io/websocket"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

const (
	tabReadLimit    = 1 << 20
	tabWriteTimeout = 5 * time.Second
	tabOutboxSize   = 64
)

var (
	tabMessagesTotal = metrics.NewCounter(`offlinekit_server_tab_messages_total`)
	tabDroppedTotal  = metrics.NewCounter(`offlinekit_server_tab_messages_dropped_total`)
)

// TabHub relays cross-tab messages between the websocket connections of
// one user. A message is never sent back to its sender.
type TabHub struct {
	logger *slog.Logger
	users  map[string]map[*tabConn]struct{}
	mu     sync.Mutex
}

type tabConn struct {
	conn *websocket.Conn
	out  chan []byte
}

// NewTabHub creates an empty hub
func NewTabHub(logger *slog.Logger) *TabHub {
	return &TabHub{
		logger: logger,
		users:  make(map[string]map[*tabConn]struct{}),
	}
}

// Connections returns the number of open connections of the user.
func (h *TabHub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users[userID])
}

// Serve обрабатывает GET /api/v1/tabs/ws
func (h *TabHub) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(h.logger, w, http.StatusUnauthorized, api.CodeUnauthorized, "missing user")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to accept tab connection", "user_id", userID, "error", err)
		return
	}
	conn.SetReadLimit(tabReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &tabConn{conn: conn, out: make(chan []byte, tabOutboxSize)}
	h.join(userID, c)
	defer h.leave(userID, c)

	go h.writeLoop(ctx, cancel, c)

	h.logger.Debug("Tab connected", "user_id", userID)
	err = h.readLoop(ctx, userID, c)

	status := websocket.CloseStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
		h.logger.Debug("Tab connection closed", "user_id", userID, "error", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *TabHub) readLoop(ctx context.Context, userID string, c *tabConn) error {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg api.TabMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Kind == "" {
			h.logger.Debug("Malformed tab message dropped", "user_id", userID)
			continue
		}

		tabMessagesTotal.Inc()
		h.broadcast(userID, c, data)
	}
}

func (h *TabHub) writeLoop(ctx context.Context, cancel context.CancelFunc, c *tabConn) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.out:
			writeCtx, done := context.WithTimeout(ctx, tabWriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			done()
			if err != nil {
				return
			}
		}
	}
}

func (h *TabHub) broadcast(userID string, from *tabConn, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for peer := range h.users[userID] {
		if peer == from {
			continue
		}
		select {
		case peer.out <- data:
		default:
			// Медленная вкладка теряет сообщение, остальные получают его
			tabDroppedTotal.Inc()
			h.logger.Warn("Tab outbox full, message dropped", "user_id", userID)
		}
	}
}

func (h *TabHub) join(userID string, c *tabConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.users[userID]
	if !ok {
		conns = make(map[*tabConn]struct{})
		h.users[userID] = conns
	}
	conns[c] = struct{}{}
}

func (h *TabHub) leave(userID string, c *tabConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.users[userID], c)
	if len(h.users[userID]) == 0 {
		delete(h.users, userID)
	}
}

// CloseAll closes every connection; used on server shutdown.
func (h *TabHub) CloseAll() {
	h.mu.Lock()
	var conns []*tabConn
	for _, user := range h.users {
		for c := range user {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
