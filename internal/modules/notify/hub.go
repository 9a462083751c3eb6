// README: Websocket hub pushing events to connected recipients.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"roadside/internal/types"
)

// DefaultWriteTimeout bounds a socket write when the caller's context has no deadline.
const DefaultWriteTimeout = 10 * time.Second

type Hub struct {
	mu    sync.RWMutex
	conns map[types.ID]*wsConn
	log   logrus.FieldLogger
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
// slot is a one-element semaphore so waiting writers can give up.
type wsConn struct {
	conn *websocket.Conn
	slot chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, slot: make(chan struct{}, 1)}
}

type envelope struct {
	Event string            `json:"event"`
	Data  map[string]string `json:"data"`
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{conns: make(map[types.ID]*wsConn), log: log}
}

// Register replaces any existing connection for id.
func (h *Hub) Register(id types.ID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.conns[id]; ok {
		_ = old.conn.Close()
	}
	h.conns[id] = newWSConn(conn)
}

// Unregister removes id only if conn is still the registered connection.
func (h *Hub) Unregister(id types.ID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[id]; ok && c.conn == conn {
		_ = c.conn.Close()
		delete(h.conns, id)
	}
}

func (h *Hub) Connected(id types.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[id]
	return ok
}

// Notify drops the event when the recipient is offline. The write is bounded by
// ctx's deadline; a connection whose write fails is dropped.
func (h *Hub) Notify(ctx context.Context, msg Message) error {
	h.mu.RLock()
	wc, ok := h.conns[msg.Recipient]
	h.mu.RUnlock()
	if !ok {
		h.log.WithFields(logrus.Fields{"recipient": msg.Recipient, "event": msg.Event}).Debug("ws: recipient not connected")
		return nil
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}

	if err := wc.write(ctx, deadline, envelope{Event: msg.Event, Data: msg.Data}); err != nil {
		h.Unregister(msg.Recipient, wc.conn)
		return fmt.Errorf("notify: ws write to %s: %w", msg.Recipient, err)
	}
	return nil
}

// write waits for the connection's writer slot no longer than deadline.
func (wc *wsConn) write(ctx context.Context, deadline time.Time, v any) error {
	select {
	case wc.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Until(deadline)):
		return context.DeadlineExceeded
	}
	defer func() { <-wc.slot }()

	if err := wc.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return wc.conn.WriteJSON(v)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		_ = c.conn.Close()
		delete(h.conns, id)
	}
}
