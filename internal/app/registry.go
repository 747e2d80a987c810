package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/akoval/parley/internal/core"
	"github.com/akoval/parley/internal/domain"
)

var ErrNotConnected = errors.New("connection not registered")

type connEntry struct {
	name string
	room domain.RoomName // "" while the connection has not joined a room
	sink core.Sink
}

// Registry owns all room membership state. Rosters keep insertion order,
// which is the roster order clients see. The conns map doubles as a
// reverse index so a disconnect never scans every room and a connection
// can be in at most one room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName][]core.ConnID
	conns map[core.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomName][]core.ConnID),
		conns: make(map[core.ConnID]*connEntry),
	}
}

// Bind registers a live connection before any room membership exists.
func (r *Registry) Bind(id core.ConnID, sink core.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{sink: sink}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound connection")
}

// Unbind forgets a connection entirely. Membership must already be gone;
// callers run Leave first.
func (r *Registry) Unbind(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbound connection")
}

// Join appends the connection to the tail of the room's roster, creating
// the room if absent. A connection already in another room is migrated
// out of it first; re-joining the current room is a no-op that keeps the
// roster position. The vacated room (if any) is returned so the caller
// can refresh its roster too.
func (r *Registry) Join(room domain.RoomName, id core.ConnID, name string) (prior domain.RoomName, moved bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return "", false, ErrNotConnected
	}
	if e.room == room {
		// Re-join of the current room: keep position and recorded name.
		return "", false, nil
	}
	e.name = name
	if e.room != "" {
		prior = e.room
		moved = true
		r.removeLocked(prior, id)
	}
	e.room = room
	r.rooms[room] = append(r.rooms[room], id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).
		Str("room", string(room)).Str("name", name).Msg("joined room")
	return prior, moved, nil
}

// Leave removes the connection from its room, if it has one. Reverse
// index makes this O(size of one roster).
func (r *Registry) Leave(id core.ConnID) (room domain.RoomName, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok || e.room == "" {
		return "", false
	}
	room = e.room
	e.room = ""
	r.removeLocked(room, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).
		Str("room", string(room)).Msg("left room")
	return room, true
}

func (r *Registry) removeLocked(room domain.RoomName, id core.ConnID) {
	roster := r.rooms[room]
	for i, member := range roster {
		if member == id {
			r.rooms[room] = append(roster[:i], roster[i+1:]...)
			break
		}
	}
	if len(r.rooms[room]) == 0 {
		delete(r.rooms, room)
	}
}

// RoomOf reports the room the connection currently belongs to.
func (r *Registry) RoomOf(id core.ConnID) (domain.RoomName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.room == "" {
		return "", false
	}
	return e.room, true
}

// NameOf reports the display name recorded at join time.
func (r *Registry) NameOf(id core.ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return "", false
	}
	return e.name, true
}

// MembersOf returns the roster snapshot in join order; empty for an
// unknown room.
func (r *Registry) MembersOf(room domain.RoomName) []core.RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roster := r.rooms[room]
	out := make([]core.RosterEntry, 0, len(roster))
	for _, id := range roster {
		if e, ok := r.conns[id]; ok {
			out = append(out, core.RosterEntry{ID: id, Name: e.name})
		}
	}
	return out
}

// Recipient pairs a connection id with its sink for fan-out.
type Recipient struct {
	ID   core.ConnID
	Sink core.Sink
}

// RecipientsOf returns the sinks of a room in roster order.
func (r *Registry) RecipientsOf(room domain.RoomName) []Recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roster := r.rooms[room]
	out := make([]Recipient, 0, len(roster))
	for _, id := range roster {
		if e, ok := r.conns[id]; ok && e.sink != nil {
			out = append(out, Recipient{ID: id, Sink: e.sink})
		}
	}
	return out
}

// Rooms lists tracked rooms with their member counts.
func (r *Registry) Rooms() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for name, roster := range r.rooms {
		out = append(out, core.RoomInfo{Name: name, MemberCount: len(roster)})
	}
	return out
}
