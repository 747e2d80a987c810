package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/akoval/parley/internal/core"
	"github.com/akoval/parley/internal/domain"
)

// Wire event types. Payload shapes follow the client contract: a roster
// update carries the full ordered member list, a chat message a single
// record.
const (
	EventUserList   = "updateUserList"
	EventNewMessage = "newMessage"
)

type rosterEvent struct {
	Type  string             `json:"type"`
	Room  domain.RoomName    `json:"room"`
	Users []core.RosterEntry `json:"users"`
}

type messageEvent struct {
	Type string          `json:"type"`
	Room domain.RoomName `json:"room"`
	core.ChatMessage
}

// Broadcaster fans an event out to every member of a room. It reads a
// snapshot from the registry and never holds the registry lock across
// sends.
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Roster sends updateUserList with the room's current members to all of
// them, in roster order.
func (b *Broadcaster) Roster(room domain.RoomName) {
	b.send(room, rosterEvent{
		Type:  EventUserList,
		Room:  room,
		Users: b.reg.MembersOf(room),
	})
}

// Message sends newMessage to all current members of the room.
func (b *Broadcaster) Message(room domain.RoomName, msg core.ChatMessage) {
	b.send(room, messageEvent{Type: EventNewMessage, Room: room, ChatMessage: msg})
}

// send is fire-and-forget: a recipient whose transport is closed or
// backpressured is skipped, never aborting delivery to the rest.
func (b *Broadcaster) send(room domain.RoomName, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Msg("marshal event")
		return
	}

	sent, dropped := 0, 0
	for _, rcpt := range b.reg.RecipientsOf(room) {
		if err := rcpt.Sink.TrySend(data); err != nil {
			dropped++
			log.Warn().Err(err).Str("module", "app.broadcaster").
				Str("conn", string(rcpt.ID)).Str("room", string(room)).Msg("send failed")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.broadcaster").Str("room", string(room)).
		Int("sent", sent).Int("dropped", dropped).Msg("broadcast result")
}
