package ws

import (
	"sync"

	"github.com/artemk/menulive/internal/domain"
	"github.com/artemk/menulive/internal/logger"
)

// Conn is the minimal surface the hub needs from a live connection.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// client pairs a connection with its write lock. gorilla/websocket allows at
// most one concurrent writer per connection, and broadcasts run on the
// calling goroutine of each mutation request, so all writes to one connection
// must be serialized here.
type client struct {
	mu   sync.Mutex
	conn Conn
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub groups live viewer connections by tenant channel (restaurant slug) and
// broadcasts change events to them. Connects, disconnects, and broadcasts
// happen concurrently from independent request goroutines, so the channel map
// is mutex-guarded. Delivery is best-effort: a viewer that is briefly
// disconnected simply misses the push and reconciles on its next refresh.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[Conn]*client
	log      *logger.Logger
}

// NewHub creates an empty connection hub.
// Parameters:
//   - log: logger for per-connection delivery failures.
// Returns:
//   - *Hub: initialized hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Hub{
		channels: make(map[string]map[Conn]*client),
		log:      log,
	}
}

// Join registers a connection under a tenant channel and sends the immediate
// "connected" acknowledgement. The ack carries EventConnected, which clients
// must not treat as a change event.
// Parameters:
//   - channel: tenant channel name (restaurant slug).
//   - conn: live connection to register.
// Returns:
//   - error: non-nil if the acknowledgement write fails; the connection is
//     not registered in that case.
func (h *Hub) Join(channel string, conn Conn) error {
	cl := &client{conn: conn}
	ack := domain.NewChangeEvent(domain.EventConnected, channel, "", nil)
	if err := cl.write(ack); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.channels[channel]
	if !ok {
		conns = make(map[Conn]*client)
		h.channels[channel] = conns
	}
	conns[conn] = cl

	h.log.WithFields(logger.Fields{
		logger.FieldChannel: channel,
		logger.FieldCount:   len(conns),
	}).Debug("Viewer joined channel")
	return nil
}

// Leave deregisters a connection. When the channel becomes empty its entry is
// removed, so dead tenants do not accumulate. Safe to call more than once for
// the same connection.
// Parameters:
//   - channel: tenant channel name.
//   - conn: connection to remove.
// Returns: none.
func (h *Hub) Leave(channel string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.channels, channel)
	}
}

// Broadcast sends an event to every currently-open connection in a channel.
// A send failure on one connection never affects delivery to the others; the
// failing connection is closed and dropped from the channel. Concurrent
// broadcasts are safe: each connection's writes go through its own lock.
// Parameters:
//   - channel: tenant channel name.
//   - event: event to serialize and send.
// Returns:
//   - int: number of connections the event was delivered to.
func (h *Hub) Broadcast(channel string, event domain.ChangeEvent) int {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.channels[channel]))
	for _, cl := range h.channels[channel] {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, cl := range clients {
		if err := cl.write(event); err != nil {
			h.log.WithField(logger.FieldChannel, channel).
				WithError(err).Debug("Dropping unwritable connection")
			cl.conn.Close()
			h.Leave(channel, cl.conn)
			continue
		}
		delivered++
	}

	if delivered > 0 {
		h.log.WithFields(logger.Fields{
			logger.FieldChannel: channel,
			logger.FieldCount:   delivered,
		}).Debugf("Broadcast %s event", event.Type)
	}
	return delivered
}

// ChannelSize returns the number of live connections in a channel.
func (h *Hub) ChannelSize(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ChannelCount returns the number of non-empty channels.
func (h *Hub) ChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}
