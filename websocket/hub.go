package websocket

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

type delivery struct {
	userID  uuid.UUID
	payload any
}

// Hub fans notifications out to every open connection of a user. A user
// may be connected from several tabs at once.
type Hub struct {
	clients    map[uuid.UUID]map[Conn]struct{}
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	deliveries chan delivery
	log        *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[Conn]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan delivery, 256),
		log:        log,
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Push queues a payload for the user. It never blocks the caller; when the
// queue is full the payload is dropped, the notification stays persisted.
func (h *Hub) Push(userID uuid.UUID, payload any) {
	select {
	case h.deliveries <- delivery{userID: userID, payload: payload}:
	default:
		h.log.WithField("user_id", userID).Warn("websocket push queue full, dropping payload")
	}
}

// Connected reports how many connections a user currently holds.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[Conn]struct{})
			}
			h.clients[client.UserID][client.Conn] = struct{}{}
			h.mu.Unlock()
			h.log.WithField("user_id", client.UserID).Debug("websocket client registered")
		case client := <-h.unregister:
			h.remove(client.UserID, client.Conn)
			h.log.WithField("user_id", client.UserID).Debug("websocket client unregistered")
		case d := <-h.deliveries:
			h.mu.RLock()
			conns := make([]Conn, 0, len(h.clients[d.userID]))
			for conn := range h.clients[d.userID] {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				if err := conn.WriteJSON(d.payload); err != nil {
					h.log.WithError(err).WithField("user_id", d.userID).Warn("websocket write failed")
					_ = conn.Close()
					h.remove(d.userID, conn)
				}
			}
		}
	}
}

func (h *Hub) remove(userID uuid.UUID, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.clients, userID)
	}
}
