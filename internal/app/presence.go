package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/akoval/parley/internal/core"
	"github.com/akoval/parley/internal/domain"
)

var (
	// ErrMalformedEvent covers inbound events missing required fields.
	// Nothing is mutated and nothing is broadcast for them.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrRoomMismatch is returned when a message claims a room the
	// sender is not a member of. The claimed room name is never trusted.
	ErrRoomMismatch = errors.New("sender not in claimed room")
)

// Presence drives registry mutations and the resulting broadcasts for
// the three inbound events: join, chat message, disconnect.
type Presence struct {
	reg *Registry
	bc  *Broadcaster
	now func() time.Time
}

func NewPresence(reg *Registry, bc *Broadcaster) *Presence {
	return &Presence{reg: reg, bc: bc, now: time.Now}
}

// Connect registers a freshly upgraded connection. It belongs to no room
// until its first join event.
func (p *Presence) Connect(id core.ConnID, sink core.Sink) {
	p.reg.Bind(id, sink)
}

// Join moves the connection into the named room and refreshes rosters.
// After a migration the vacated room gets a roster update as well, so
// its remaining members stop seeing the mover.
func (p *Presence) Join(id core.ConnID, room domain.RoomName, user domain.User) error {
	if err := room.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := domain.ValidateDisplayName(user.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	prior, moved, err := p.reg.Join(room, id, user.Name)
	if err != nil {
		return err
	}
	p.bc.Roster(room)
	if moved {
		log.Info().Str("module", "app.presence").Str("conn", string(id)).
			Str("from", string(prior)).Str("to", string(room)).Msg("migrated rooms")
		p.bc.Roster(prior)
	}
	return nil
}

// Message stamps the server receive time on an accepted chat event and
// broadcasts it to the sender's room. The sender must actually be a
// member of the room it names; the recorded display name is used on the
// way out, not the client-supplied one.
func (p *Presence) Message(id core.ConnID, room domain.RoomName, text string) error {
	if room == "" || text == "" {
		return ErrMalformedEvent
	}
	current, ok := p.reg.RoomOf(id)
	if !ok || current != room {
		return ErrRoomMismatch
	}
	name, _ := p.reg.NameOf(id)

	p.bc.Message(room, core.ChatMessage{
		Message:   text,
		User:      domain.User{Name: name},
		Timestamp: p.now(),
	})
	return nil
}

// LeaveRoom removes the connection from its room without dropping the
// transport. No-op for a connection that is not in a room.
func (p *Presence) LeaveRoom(id core.ConnID) {
	if room, removed := p.reg.Leave(id); removed {
		p.bc.Roster(room)
	}
}

// Disconnect handles the transport-level close, which fires exactly once
// per connection. A connection that never joined a room produces no
// broadcast.
func (p *Presence) Disconnect(id core.ConnID) {
	room, removed := p.reg.Leave(id)
	p.reg.Unbind(id)
	if removed {
		p.bc.Roster(room)
	}
}
