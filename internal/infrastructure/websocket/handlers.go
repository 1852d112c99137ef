package websocket

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"auction-lifecycle/internal/domain"
	"auction-lifecycle/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandler accepts watchers for a listing. Terminal listings are
// rejected when their status is known to the state cache.
type WebSocketHandler struct {
	states      domain.ListingStateCache
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(states domain.ListingStateCache, connManager domain.ConnectionManager,
	log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		states:      states,
		connManager: connManager,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	listingID := mux.Vars(r)["listingID"]
	id, err := strconv.ParseInt(listingID, 10, 64)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	if h.states != nil {
		status, err := h.states.GetListingStatus(r.Context(), id)
		if err == nil && status.IsTerminal() {
			h.log.Info("Rejected connection - listing is closed", "listing_id", listingID, "status", status)
			http.Error(w, "listing is closed", http.StatusForbidden)
			return
		}
		if err != nil {
			h.log.Debug("Listing status unknown, accepting connection", "listing_id", listingID, "error", err)
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, listingID)
	if err := h.connManager.RegisterConnection(userID, listingID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return
	}

	go wsConn.keepAlive()
	go h.handleMessages(wsConn)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		_ = h.connManager.UnregisterConnection(conn.userID, conn.listingID)
		_ = conn.Close()
	}()

	conn.conn.SetReadLimit(4096)
	_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Error("Failed to read message", "error", err)
			}
			return
		}

		msgType, _ := msg["type"].(string)
		switch msgType {
		case "ping":
			_ = conn.Send(map[string]string{"type": "pong"})
		default:
			_ = conn.Send(map[string]string{"type": "error", "message": "unsupported message type"})
		}
	}
}

// WebSocketConnection serializes writes to a gorilla connection.
type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	listingID string

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewWebSocketConnection(conn *websocket.Conn, userID, listingID string) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		listingID: listingID,
		done:      make(chan struct{}),
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	_ = wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	var err error
	wsc.closeOnce.Do(func() {
		close(wsc.done)
		err = wsc.conn.Close()
	})
	return err
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) ListingID() string {
	return wsc.listingID
}

func (wsc *WebSocketConnection) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-wsc.done:
			return
		case <-ticker.C:
			wsc.writeMu.Lock()
			err := wsc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			wsc.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// RegisterRoutes mounts the watcher endpoint on r.
func (h *WebSocketHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/listings/{listingID}", h.HandleConnection).Methods(http.MethodGet)
}
