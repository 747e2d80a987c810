package core

import (
	"time"

	"github.com/akoval/parley/internal/domain"
)

// ConnID identifies one live connection. Assigned by the transport on
// upgrade, never reused while the connection is open.
type ConnID string

// Sink is the outbound half of a connection.
// Owned by the adapter; the adapter must Close() it.
type Sink interface {
	TrySend(data []byte) error
	Close()
}

// RosterEntry is a read-only view of one member for broadcasts and APIs
// (no transport fields).
type RosterEntry struct {
	ID   ConnID `json:"id"`
	Name string `json:"name"`
}

// ChatMessage is the outbound record built from an accepted chat event.
// Timestamp is assigned by the server at receipt time so every member
// shares one ordering reference.
type ChatMessage struct {
	Message   string      `json:"message"`
	User      domain.User `json:"user"`
	Timestamp time.Time   `json:"timestamp"`
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
}
