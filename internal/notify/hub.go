package notify

import (
	"fmt"
	"sync"
)

// Sink is the minimal interface the hub needs from a delivery
// endpoint: the ability to push an Alert to one connected client.
type Sink interface {
	Send(Alert) error
}

// Hub manages active alert sinks for connected users. It maps user
// ids to one or more registered sinks so alerts can be pushed to every
// currently-connected endpoint for a user.
type Hub struct {
	mu     sync.RWMutex
	sinks  map[string]map[int64]Sink
	nextID int64
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{sinks: make(map[string]map[int64]Sink)}
}

// Register registers a sink for the given user id and returns a
// connection id used to unregister the sink when it closes.
func (h *Hub) Register(userID string, s Sink) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sinks[userID]; !ok {
		h.sinks[userID] = make(map[int64]Sink)
	}

	h.nextID++
	id := h.nextID
	h.sinks[userID][id] = s
	return id
}

// Unregister removes a previously-registered sink for the user.
func (h *Hub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.sinks[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.sinks, userID)
		}
	}
}

// DisconnectUser drops every sink registered for the user. Called when
// the session behind the sinks ends.
func (h *Hub) DisconnectUser(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sinks, userID)
}

// Connected reports whether the user has at least one registered sink.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks[userID]) > 0
}

// SendToUser pushes the alert to all currently-connected sinks for the
// user. Delivery is best-effort: every sink is attempted, the first
// error encountered is returned, and sinks that fail are unregistered
// so the hub does not accumulate broken endpoints.
func (h *Hub) SendToUser(userID string, alert Alert) error {
	h.mu.RLock()
	conns, ok := h.sinks[userID]
	h.mu.RUnlock()

	if !ok || len(conns) == 0 {
		return fmt.Errorf("user %s not connected", userID)
	}

	var firstErr error
	var failedIDs []int64

	for id, sink := range conns {
		if err := sink.Send(alert); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, id)
		}
	}

	for _, id := range failedIDs {
		h.Unregister(userID, id)
	}

	return firstErr
}
