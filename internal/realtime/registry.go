package realtime

import (
	"sync"
	"time"
)

// Conn is the minimal write surface the registry needs from a connection.
// *websocket.Conn satisfies it through the adapter in handler.go.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Event is a social update pushed to a connected user.
type Event struct {
	Kind    string    `json:"kind"`
	ActorID string    `json:"actorId,omitempty"`
	Message string    `json:"message,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}

// Registry owns the set of live connections indexed by user id. It is an
// explicitly injected collaborator, not process-global state; handlers add
// and remove connections on connect and disconnect.
type Registry struct {
	mu    sync.RWMutex
	conns map[string][]Conn
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string][]Conn)}
}

// Add registers a connection for the user.
func (r *Registry) Add(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = append(r.conns[userID], conn)
}

// Remove deregisters a connection for the user.
func (r *Registry) Remove(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.conns[userID]
	for i, c := range conns {
		if c == conn {
			r.conns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(r.conns[userID]) == 0 {
		delete(r.conns, userID)
	}
}

// Send delivers the event to every live connection of the user. Write
// failures are ignored here; the read loop notices the dead connection and
// removes it.
func (r *Registry) Send(userID string, event Event) {
	r.mu.RLock()
	conns := append([]Conn(nil), r.conns[userID]...)
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.WriteJSON(event)
	}
}

// Connected reports whether the user has at least one live connection.
func (r *Registry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}
