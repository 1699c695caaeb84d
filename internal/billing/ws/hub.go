package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"subsBridge/internal/billing/capability"
)

// Events pushed to the app shell.
const (
	EventPurchaseFlowLaunch = "PURCHASE-FLOW-LAUNCH"
	EventOpenURL            = "OPEN-URL"
)

const writeWait = 5 * time.Second

// ErrNoClients is returned when no app shell is connected.
var ErrNoClients = errors.New("ws: no app shell connected")

// Logger is shared with the rest of the billing module.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Envelope is the message written to app shell sockets.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// FlowLaunch asks the app shell to open the purchase sheet.
type FlowLaunch struct {
	ProductIdentifier string `json:"productIdentifier"`
	OfferToken        string `json:"offerToken"`
	AccountID         string `json:"accountId,omitempty"`
}

// OpenURL asks the app shell to navigate to an external page.
type OpenURL struct {
	URL string `json:"url"`
}

// Hub manages app shell websocket connections.
type Hub struct {
	upgrader websocket.Upgrader
	logger   Logger

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	wmu   map[string]*sync.Mutex
}

// NewHub constructs the app shell hub.
func NewHub(logger Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
		conns:    make(map[string]*websocket.Conn),
		wmu:      make(map[string]*sync.Mutex),
	}
}

// ServeWS handles app shell connections.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("app shell ws upgrade failed: %v", err)
		return
	}
	id := uuid.NewString()

	h.mu.Lock()
	h.conns[id] = conn
	h.wmu[id] = &sync.Mutex{}
	h.mu.Unlock()

	h.logger.Infof("app shell %s connected", id)
	go h.readLoop(id, conn)
}

func (h *Hub) readLoop(id string, conn *websocket.Conn) {
	defer func() {
		conn.Close()
		h.mu.Lock()
		delete(h.conns, id)
		delete(h.wmu, id)
		h.mu.Unlock()
		h.logger.Infof("app shell %s disconnected", id)
	}()

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(msg)), "ping") {
			_ = h.safeWrite(id, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
		}
	}
}

func (h *Hub) safeWrite(id string, writer func(*websocket.Conn) error) error {
	h.mu.RLock()
	conn := h.conns[id]
	mu := h.wmu[id]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return ErrNoClients
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := writer(conn); err != nil {
		h.logger.Errorf("app shell %s write failed: %v", id, err)
		return err
	}
	return nil
}

// ClientCount returns the number of connected app shells.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast writes the event to every connected app shell and returns how
// many received it. It fails with ErrNoClients when none did.
func (h *Hub) Broadcast(event string, data any) (int, error) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	h.logger.Infof("WS → app shell (%d): %s", len(ids), string(payload))

	delivered := 0
	for _, id := range ids {
		if err := h.safeWrite(id, func(conn *websocket.Conn) error {
			return conn.WriteMessage(websocket.TextMessage, payload)
		}); err == nil {
			delivered++
		}
	}
	if delivered == 0 {
		return 0, ErrNoClients
	}
	return delivered, nil
}

// Notify sends an out-of-band event to the app shell.
func (h *Hub) Notify(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := h.Broadcast(event, payload)
	return err
}

// LaunchPurchaseFlow asks the app shell to open the purchase sheet.
func (h *Hub) LaunchPurchaseFlow(ctx context.Context, params capability.FlowParams) error {
	return h.Notify(ctx, EventPurchaseFlowLaunch, FlowLaunch{
		ProductIdentifier: params.ProductID,
		OfferToken:        params.OfferToken,
		AccountID:         params.ObfuscatedAccountID,
	})
}

// OpenURL asks the app shell to navigate to url.
func (h *Hub) OpenURL(ctx context.Context, url string) error {
	return h.Notify(ctx, EventOpenURL, OpenURL{URL: url})
}
