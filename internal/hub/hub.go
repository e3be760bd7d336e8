package hub

import (
	"expvar"
	"sync"

	"go.uber.org/zap"
)

var (
	droppedMessages   = expvar.NewInt("broadcast_dropped_total")
	activeConnections = expvar.NewInt("realtime_connections")
)

// Subscription narrows office-scoped broadcasts. The zero value receives
// every office.
type Subscription struct {
	OfficeID int64
	Scoped   bool
}

type Client struct {
	ID           string
	RemoteAddr   string
	Send         chan string
	Subscription Subscription
}

func NewClient(id, remoteAddr string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{ID: id, RemoteAddr: remoteAddr, Send: make(chan string, buffer)}
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger.Named("hub")}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.clients[client.ID]; !exists {
		activeConnections.Add(1)
	}
	h.clients[client.ID] = client
}

// Unregister removes the client and closes its Send channel. Calling it
// again for the same client is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[client.ID]; !ok || current != client {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
	activeConnections.Add(-1)
}

func (h *Hub) Subscribe(client *Client, officeID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = Subscription{OfficeID: officeID, Scoped: true}
}

// SendTo queues text for one client without blocking. It reports false when
// the client is gone or its buffer is full.
func (h *Hub) SendTo(client *Client, text string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if current, ok := h.clients[client.ID]; !ok || current != client {
		h.logger.Debug("drop message for unregistered client", zap.String("client_id", client.ID))
		return false
	}
	return h.deliver(client, text)
}

// BroadcastAll queues text for every registered client and returns how many
// accepted it. Full buffers are skipped.
func (h *Hub) BroadcastAll(text string) int {
	return h.broadcast(text, func(*Client) bool { return true })
}

// BroadcastOffice queues text for clients subscribed to officeID and for
// clients with no subscription.
func (h *Hub) BroadcastOffice(officeID int64, text string) int {
	return h.broadcast(text, func(client *Client) bool {
		return match(client.Subscription, officeID)
	})
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(text string, include func(*Client) bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, client := range h.clients {
		if !include(client) {
			continue
		}
		if h.deliver(client, text) {
			delivered++
		}
	}
	return delivered
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(client *Client, text string) bool {
	select {
	case client.Send <- text:
		return true
	default:
		droppedMessages.Add(1)
		h.logger.Warn("drop message for client", zap.String("client_id", client.ID))
		return false
	}
}

func match(sub Subscription, officeID int64) bool {
	if sub.Scoped && sub.OfficeID != officeID {
		return false
	}
	return true
}
