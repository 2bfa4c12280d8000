package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

// Conn abstracts the transport endpoint of one live connection.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// TrySend must not block; it fails fast on backpressure.
	TrySend(payload []byte) error
	Close()
}

// Member is the read-only view of a room participant sent to clients.
type Member struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name"`
}

// Outbound event names. The coordinator and relay are the only writers.
const (
	EvtSocketConnected    = "socket-connected"
	EvtSocketDisconnected = "socket-disconnected"
	EvtSocketsConnected   = "sockets-connected"
	EvtRoomMembersUpdated = "room-members-updated"
	EvtSuperseded         = "superseded"
)

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Msg("event marshal")
		return nil
	}
	return b
}

func memberSnapshotEvent(members []Member) []byte {
	return encode(struct {
		Type    string   `json:"type"`
		Members []Member `json:"members"`
	}{EvtRoomMembersUpdated, members})
}

func userNameEvent(typ, name string) []byte {
	return encode(struct {
		Type     string `json:"type"`
		UserName string `json:"userName"`
	}{typ, name})
}
