package domain

import (
	"crypto/rand"
	"math/big"
	"time"
)

type RoomID string

type RoomStatus string

const (
	RoomOpen       RoomStatus = "OPEN"
	RoomInProgress RoomStatus = "IN_PROGRESS"
	RoomClosed     RoomStatus = "CLOSED"
)

// roomCodeAlphabet leaves out 0/O, 1/I and other characters that are easy to
// misread when a code is shared aloud or on paper.
const (
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	RoomCodeLen      = 8
)

// Room is addressed by a human-shareable code, not a UUID. Players is an
// ordered set: join order is preserved and duplicates never appear.
type Room struct {
	ID           RoomID     `json:"_id"`
	Status       RoomStatus `json:"status"`
	CreatedBy    UserID     `json:"createdBy"`
	CreationTime time.Time  `json:"creationTime"`
	Players      []UserID   `json:"players"`
}

func NewRoom(id RoomID, creator UserID) *Room {
	return &Room{
		ID:           id,
		Status:       RoomOpen,
		CreatedBy:    creator,
		CreationTime: time.Now().UTC(),
		Players:      []UserID{creator},
	}
}

// NewRoomCode draws RoomCodeLen characters from the constrained alphabet.
// Collision checking against existing rooms is the caller's job.
func NewRoomCode() RoomID {
	buf := make([]byte, RoomCodeLen)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform RNG is broken.
			panic(err)
		}
		buf[i] = roomCodeAlphabet[n.Int64()]
	}
	return RoomID(buf)
}
