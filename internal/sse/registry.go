package sse

import (
	"log"

	"finapp-server/internal/cache"
)

// userConnections is the per-user member set. Its mutex only guards the
// map; emit works on a point-in-time snapshot so unregistration from a
// connection callback can run concurrently with an ongoing fan-out.
type userConnections struct {
	userID uint64
	conns  *cache.Store[*Connection, struct{}]
}

func newUserConnections(userID uint64) *userConnections {
	return &userConnections{userID: userID, conns: cache.New[*Connection, struct{}]()}
}

// Registry tracks every live connection per user. The container for a
// user is created lazily on first registration and persists (possibly
// empty) for the life of the process.
type Registry struct {
	users *cache.Store[uint64, *userConnections]
}

func NewRegistry() *Registry {
	return &Registry{users: cache.New[uint64, *userConnections]()}
}

// Register adds a connection to the user's set, creating the set if the
// user has none yet.
func (r *Registry) Register(userID uint64, conn *Connection) {
	uc := r.users.GetOrCreate(userID, func() *userConnections {
		return newUserConnections(userID)
	})
	uc.conns.Put(conn, struct{}{})
	log.Printf("sse: registered connection for user %d (%d active)", userID, uc.conns.Len())
}

// Unregister removes one connection. Missing container or connection is
// a no-op; removal is idempotent.
func (r *Registry) Unregister(userID uint64, conn *Connection) {
	uc, ok := r.users.Get(userID)
	if !ok {
		return
	}
	uc.conns.Delete(conn)
	log.Printf("sse: unregistered connection for user %d (%d active)", userID, uc.conns.Len())
}

// Count reports how many live connections the user has.
func (r *Registry) Count(userID uint64) int {
	uc, ok := r.users.Get(userID)
	if !ok {
		return 0
	}
	return uc.conns.Len()
}

// Emit delivers the event to every live connection of the user,
// best-effort. A failed send removes only that connection; delivery to
// the rest continues. No listeners means nothing to do.
func (r *Registry) Emit(userID uint64, ev Event) {
	uc, ok := r.users.Get(userID)
	if !ok {
		return
	}
	for _, conn := range snapshot(uc.conns) {
		if err := conn.Send(ev); err != nil {
			log.Printf("sse: dropping dead connection for user %d: %v", userID, err)
			conn.Close()
			uc.conns.Delete(conn)
		}
	}
}

// snapshot copies the current member set out from under the store lock.
func snapshot(s *cache.Store[*Connection, struct{}]) []*Connection {
	out := make([]*Connection, 0, s.Len())
	s.Range(func(c *Connection, _ struct{}) bool {
		out = append(out, c)
		return true
	})
	return out
}
