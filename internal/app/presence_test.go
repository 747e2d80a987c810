package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akoval/parley/internal/core"
	"github.com/akoval/parley/internal/domain"
)

// captureSink records every frame delivered to one connection.
type captureSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *captureSink) TrySend(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *captureSink) Close() {}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *captureSink) last(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		t.Fatal("no frames captured")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(s.frames[len(s.frames)-1], &m); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return m
}

func (s *captureSink) lastRoster(t *testing.T) []core.RosterEntry {
	t.Helper()
	frame := s.last(t)
	var typ string
	_ = json.Unmarshal(frame["type"], &typ)
	if typ != EventUserList {
		t.Fatalf("last frame type = %q, want %q", typ, EventUserList)
	}
	var users []core.RosterEntry
	if err := json.Unmarshal(frame["users"], &users); err != nil {
		t.Fatalf("unmarshal users: %v", err)
	}
	return users
}

func newPresenceForTest() (*Presence, *Registry) {
	reg := NewRegistry()
	p := NewPresence(reg, NewBroadcaster(reg))
	p.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return p, reg
}

func TestPresenceJoinBroadcastsRoster(t *testing.T) {
	p, _ := newPresenceForTest()
	alice, bob := &captureSink{}, &captureSink{}
	p.Connect("A", alice)
	p.Connect("B", bob)

	if err := p.Join("A", "lobby", domain.User{Name: "Alice"}); err != nil {
		t.Fatalf("Join A: %v", err)
	}
	users := alice.lastRoster(t)
	if len(users) != 1 || users[0].ID != "A" || users[0].Name != "Alice" {
		t.Fatalf("roster after A join = %v, want [{A Alice}]", users)
	}

	if err := p.Join("B", "lobby", domain.User{Name: "Bob"}); err != nil {
		t.Fatalf("Join B: %v", err)
	}
	users = bob.lastRoster(t)
	if len(users) != 2 || users[0].Name != "Alice" || users[1].Name != "Bob" {
		t.Fatalf("roster after B join = %v, want [{A Alice} {B Bob}]", users)
	}
	// A saw the same update.
	if got := alice.lastRoster(t); len(got) != 2 {
		t.Fatalf("A roster = %v, want two members", got)
	}
}

func TestPresenceJoinValidation(t *testing.T) {
	p, _ := newPresenceForTest()
	sink := &captureSink{}
	p.Connect("A", sink)

	cases := []struct {
		name string
		room domain.RoomName
		user domain.User
	}{
		{"empty room", "", domain.User{Name: "Alice"}},
		{"empty name", "lobby", domain.User{}},
	}
	for _, tc := range cases {
		if err := p.Join("A", tc.room, tc.user); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("%s: err = %v, want ErrMalformedEvent", tc.name, err)
		}
	}
	if sink.count() != 0 {
		t.Fatalf("rejected joins must not broadcast, got %d frames", sink.count())
	}
}

func TestPresenceMessageFanOut(t *testing.T) {
	p, _ := newPresenceForTest()
	alice, bob, carol := &captureSink{}, &captureSink{}, &captureSink{}
	p.Connect("A", alice)
	p.Connect("B", bob)
	p.Connect("C", carol)
	_ = p.Join("A", "lobby", domain.User{Name: "Alice"})
	_ = p.Join("B", "lobby", domain.User{Name: "Bob"})
	_ = p.Join("C", "other", domain.User{Name: "Carol"})
	before := carol.count()

	if err := p.Message("A", "lobby", "hi"); err != nil {
		t.Fatalf("Message: %v", err)
	}

	for name, sink := range map[string]*captureSink{"alice": alice, "bob": bob} {
		frame := sink.last(t)
		var typ, msg string
		_ = json.Unmarshal(frame["type"], &typ)
		_ = json.Unmarshal(frame["message"], &msg)
		if typ != EventNewMessage || msg != "hi" {
			t.Fatalf("%s got type=%q message=%q", name, typ, msg)
		}
		var user domain.User
		_ = json.Unmarshal(frame["user"], &user)
		if user.Name != "Alice" {
			t.Fatalf("%s saw sender %q, want Alice", name, user.Name)
		}
		if _, ok := frame["timestamp"]; !ok {
			t.Fatalf("%s frame has no timestamp", name)
		}
	}

	if carol.count() != before {
		t.Fatal("message leaked into another room")
	}
}

func TestPresenceMessageRoomMismatch(t *testing.T) {
	p, _ := newPresenceForTest()
	alice := &captureSink{}
	p.Connect("A", alice)

	// Before any join the sender has no room context.
	if err := p.Message("A", "lobby", "hi"); !errors.Is(err, ErrRoomMismatch) {
		t.Fatalf("message before join: err = %v, want ErrRoomMismatch", err)
	}

	_ = p.Join("A", "lobby", domain.User{Name: "Alice"})
	if err := p.Message("A", "elsewhere", "hi"); !errors.Is(err, ErrRoomMismatch) {
		t.Fatalf("message for wrong room: err = %v, want ErrRoomMismatch", err)
	}
}

func TestPresenceMessageValidation(t *testing.T) {
	p, _ := newPresenceForTest()
	p.Connect("A", &captureSink{})
	_ = p.Join("A", "lobby", domain.User{Name: "Alice"})

	if err := p.Message("A", "lobby", ""); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("empty message: err = %v, want ErrMalformedEvent", err)
	}
	if err := p.Message("A", "", "hi"); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("empty room: err = %v, want ErrMalformedEvent", err)
	}
}

func TestPresenceDisconnectBroadcastsRoster(t *testing.T) {
	p, _ := newPresenceForTest()
	alice, bob := &captureSink{}, &captureSink{}
	p.Connect("A", alice)
	p.Connect("B", bob)
	_ = p.Join("A", "lobby", domain.User{Name: "Alice"})
	_ = p.Join("B", "lobby", domain.User{Name: "Bob"})

	p.Disconnect("A")

	users := bob.lastRoster(t)
	if len(users) != 1 || users[0].ID != "B" || users[0].Name != "Bob" {
		t.Fatalf("roster after disconnect = %v, want [{B Bob}]", users)
	}
}

func TestPresenceDisconnectWithoutRoomIsSilent(t *testing.T) {
	p, _ := newPresenceForTest()
	alice, bob := &captureSink{}, &captureSink{}
	p.Connect("A", alice)
	p.Connect("B", bob)
	_ = p.Join("B", "lobby", domain.User{Name: "Bob"})
	before := bob.count()

	p.Disconnect("A")

	if bob.count() != before {
		t.Fatal("disconnect of roomless conn must not broadcast")
	}
}

func TestPresenceMigrationRefreshesBothRooms(t *testing.T) {
	p, _ := newPresenceForTest()
	alice, bob := &captureSink{}, &captureSink{}
	p.Connect("A", alice)
	p.Connect("B", bob)
	_ = p.Join("A", "red", domain.User{Name: "Alice"})
	_ = p.Join("B", "red", domain.User{Name: "Bob"})

	_ = p.Join("A", "blue", domain.User{Name: "Alice"})

	// B, still in red, must have seen a roster without A.
	users := bob.lastRoster(t)
	if len(users) != 1 || users[0].ID != "B" {
		t.Fatalf("red roster after migration = %v, want [{B Bob}]", users)
	}
	// A got the blue roster.
	users = alice.lastRoster(t)
	if len(users) != 1 || users[0].ID != "A" {
		t.Fatalf("blue roster = %v, want [{A Alice}]", users)
	}
}

// TestPresenceConcurrentJoinsThenDisconnect releases N joins through a
// barrier, then disconnects one member: the final roster must be the
// joined set minus the disconnected one, whatever the interleaving was.
func TestPresenceConcurrentJoinsThenDisconnect(t *testing.T) {
	p, reg := newPresenceForTest()

	const n = 16
	ids := make([]core.ConnID, n)
	for i := range ids {
		ids[i] = core.ConnID(string(rune('A' + i)))
		p.Connect(ids[i], &captureSink{})
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id core.ConnID) {
			defer wg.Done()
			<-start
			if err := p.Join(id, "lobby", domain.User{Name: string(id)}); err != nil {
				t.Errorf("Join(%s): %v", id, err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	p.Disconnect(ids[0])

	members := reg.MembersOf("lobby")
	if len(members) != n-1 {
		t.Fatalf("final roster size = %d, want %d", len(members), n-1)
	}
	for _, m := range members {
		if m.ID == ids[0] {
			t.Fatal("disconnected conn still in roster")
		}
	}
}
