package domain

import "errors"

const MaxRoomNameLen = 64

var ErrRoomNameEmpty = errors.New("room name empty")

type RoomName string

func (n RoomName) Validate() error {
	if len(n) == 0 {
		return ErrRoomNameEmpty
	}
	if len(n) > MaxRoomNameLen {
		return errors.New("room name too long")
	}
	return nil
}
