package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"parlor/internal/app"
	"parlor/internal/domain"
)

func (ctl *Controller) handleCreateRoom(cl *client, data []byte) {
	if !ctl.requireIdentified(cl) {
		return
	}
	var p struct {
		Type     string `json:"type"`
		UserName string `json:"userName"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(cl, nil, "bad_payload")
		return
	}

	room, _, err := ctl.Coord.CreateRoom(cl.id, p.UserName)
	if err != nil {
		log.Warn().Str("module", "signal").Str("conn", string(cl.id)).Err(err).Msg("create-room failed")
		ctl.sendError(cl, err, "create-room failed")
		return
	}
	ctl.sendJSON(cl, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
	}{"room-created", room.ID})
}

func (ctl *Controller) handleJoinRoom(cl *client, data []byte) {
	if !ctl.requireIdentified(cl) {
		return
	}
	var p struct {
		Type     string        `json:"type"`
		RoomID   domain.RoomID `json:"roomId"`
		UserName string        `json:"userName"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(cl, nil, "bad_payload")
		return
	}

	members, err := ctl.Coord.JoinRoom(cl.id, p.RoomID, p.UserName)
	if err != nil {
		log.Warn().Str("module", "signal").Str("conn", string(cl.id)).Str("room", string(p.RoomID)).Err(err).Msg("join-room failed")
		ctl.sendError(cl, err, "join-room failed")
		return
	}
	ctl.sendJSON(cl, struct {
		Type    string        `json:"type"`
		RoomID  domain.RoomID `json:"roomId"`
		Members []app.Member  `json:"members"`
	}{"room-joined", p.RoomID, members})
}

// handleResync answers the on-demand membership snapshot; broadcasts are
// best-effort so clients need a catch-up path.
func (ctl *Controller) handleResync(cl *client, _ []byte) {
	if !ctl.requireIdentified(cl) {
		return
	}
	members, err := ctl.Coord.Resync(cl.id)
	if err != nil {
		ctl.sendError(cl, err, "resync failed")
		return
	}
	ctl.sendJSON(cl, struct {
		Type    string       `json:"type"`
		Members []app.Member `json:"members"`
	}{app.EvtRoomMembersUpdated, members})
}
