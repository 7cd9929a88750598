// Package server owns the in-memory room registry: the mapping from room
// identifiers to live member sets. All mutation happens behind one mutex so
// membership transitions are atomic and snapshot reads never observe a room
// mid-update or with zero members.
package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// room is registry-internal state. A room exists in the map iff its member
// set is non-empty.
type room struct {
	id        string
	createdAt time.Time
	members   map[string]string // connection id -> display name
}

// RoomSnapshot is the point-in-time view returned from a successful join.
type RoomSnapshot struct {
	RoomID    string
	CreatedAt time.Time
	Members   []string
}

// Departure describes the membership change performed by Leave.
type Departure struct {
	RoomID    string
	UserName  string
	Remaining int
}

// RoomInfo is the administrative view of a single room.
type RoomInfo struct {
	ID        string    `json:"id"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry maps room identifiers to live rooms and tracks which room each
// connection currently occupies. It is safe for concurrent use from many
// connections; it never owns connection lifecycle, only (connection id,
// display name) pairs per room.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	byConn map[string]string // connection id -> room id
	log    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		byConn: make(map[string]string),
		log:    log,
	}
}

// Join validates the request and registers the connection as a member of the
// room, creating the room with a fresh timestamp on first join. The snapshot
// it returns reflects the membership immediately after insertion.
func (r *Registry) Join(connID string, req JoinRequest) (RoomSnapshot, error) {
	if err := ValidateJoin(req); err != nil {
		return RoomSnapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[req.RoomID]
	if !ok {
		rm = &room{
			id:        req.RoomID,
			createdAt: time.Now(),
			members:   make(map[string]string),
		}
		r.rooms[req.RoomID] = rm
		r.log.Info("room created", "room", req.RoomID)
	}
	rm.members[connID] = req.UserName
	r.byConn[connID] = req.RoomID

	return RoomSnapshot{
		RoomID:    rm.id,
		CreatedAt: rm.createdAt,
		Members:   lo.Values(rm.members),
	}, nil
}

// Leave removes the connection from its current room. Member removal and
// deletion of an emptied room happen in the same critical section, so no
// caller can ever observe a zero-member room. Returns false when the
// connection was not in any room, which makes repeated cleanup a no-op.
func (r *Registry) Leave(connID string) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.byConn[connID]
	if !ok {
		return Departure{}, false
	}
	delete(r.byConn, connID)

	rm := r.rooms[roomID]
	name := rm.members[connID]
	delete(rm.members, connID)
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		r.log.Info("room deleted", "room", roomID)
	}

	return Departure{RoomID: roomID, UserName: name, Remaining: len(rm.members)}, true
}

// Members returns a snapshot of the display names in a room, empty when the
// room does not exist. Order is unspecified.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return lo.Values(rm.members)
}

// memberConns returns the connection ids currently in a room. The broadcast
// engine takes its recipient set from here so fan-out always works from an
// atomic membership snapshot.
func (r *Registry) memberConns(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return lo.Keys(rm.members)
}

// RoomCount reports the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// TotalUserCount reports the sum of member counts across all rooms as one
// consistent point-in-time view.
func (r *Registry) TotalUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, rm := range r.rooms {
		total += len(rm.members)
	}
	return total
}

// RoomInfos returns the administrative view of every live room.
func (r *Registry) RoomInfos() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapToSlice(r.rooms, func(id string, rm *room) RoomInfo {
		return RoomInfo{ID: id, Members: len(rm.members), CreatedAt: rm.createdAt}
	})
}
