package domain

import (
	"strings"
	"testing"
)

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName("Alice"); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
	if err := ValidateDisplayName(""); err != ErrNameEmpty {
		t.Fatalf("empty name err = %v, want ErrNameEmpty", err)
	}
	if err := ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLen+1)); err != ErrNameTooLong {
		t.Fatalf("long name err = %v, want ErrNameTooLong", err)
	}
}

func TestRoomNameValidate(t *testing.T) {
	if err := RoomName("lobby").Validate(); err != nil {
		t.Fatalf("valid room rejected: %v", err)
	}
	if err := RoomName("").Validate(); err != ErrRoomNameEmpty {
		t.Fatalf("empty room err = %v, want ErrRoomNameEmpty", err)
	}
	if err := RoomName(strings.Repeat("r", MaxRoomNameLen+1)).Validate(); err == nil {
		t.Fatal("overlong room name accepted")
	}
}
