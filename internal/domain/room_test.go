package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRoomCode(t *testing.T) {
	req := require.New(t)

	seen := make(map[RoomID]bool)
	for i := 0; i < 200; i++ {
		code := NewRoomCode()
		req.Len(string(code), RoomCodeLen)
		for _, ch := range string(code) {
			req.True(strings.ContainsRune(roomCodeAlphabet, ch), "character %q outside alphabet", ch)
		}
		seen[code] = true
	}
	// 31^8 codes; 200 draws colliding would mean a broken generator.
	req.Greater(len(seen), 190)
}

func TestNewRoomCreatorIsPlayer(t *testing.T) {
	req := require.New(t)

	room := NewRoom("ABCDEFGH", "u-1")
	req.Equal(RoomOpen, room.Status)
	req.Equal(UserID("u-1"), room.CreatedBy)
	req.Equal([]UserID{"u-1"}, room.Players)
}

func TestNewUserValidation(t *testing.T) {
	req := require.New(t)

	_, err := NewUser("")
	req.ErrorIs(err, ErrUserNameEmpty)

	_, err = NewUser(strings.Repeat("x", MaxUserNameLen+1))
	req.ErrorIs(err, ErrUserNameTooLong)

	u, err := NewUser("alice")
	req.NoError(err)
	req.Equal(UserActive, u.Status)
	req.NotEmpty(u.ID)
}
