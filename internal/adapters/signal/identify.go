package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

// handleIdentify binds the connection to its durable session. The session id
// comes from the payload when the client kept one, otherwise from the
// client-token cookie, otherwise a fresh one is minted. Re-identifying on a
// live connection is idempotent.
func (ctl *Controller) handleIdentify(cl *client, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(cl, nil, "bad_payload")
		return
	}

	sid := p.SessionID
	if sid == "" {
		sid = cl.cookieSID
	}

	sess, resumed := ctl.Coord.Connect(cl.id, sid, cl.conn)
	cl.sessionID = sess.ID
	cl.identified.Store(true)

	log.Info().Str("module", "signal").
		Str("conn", string(cl.id)).
		Str("sid", string(sess.ID)).
		Bool("resumed", resumed).
		Msg("identified")

	ctl.sendJSON(cl, struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
		UserID    domain.UserID    `json:"userId,omitempty"`
		RoomID    domain.RoomID    `json:"roomId,omitempty"`
	}{"identified", sess.ID, sess.UserID, sess.RoomID})
}

// requireIdentified guards every post-handshake handler.
func (ctl *Controller) requireIdentified(cl *client) bool {
	if !cl.identified.Load() {
		ctl.sendError(cl, domain.ErrNotFound, "identify first")
		return false
	}
	return true
}
