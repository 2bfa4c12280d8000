package signal

import (
	"github.com/rs/zerolog/log"
)

// handleInitialize performs the administrative reset: persistence wiped,
// registries cleared. Refused outright in release mode.
func (ctl *Controller) handleInitialize(cl *client, _ []byte) {
	if ctl.Cfg.Mode == "release" {
		ctl.sendError(cl, nil, "initialize disabled in release mode")
		return
	}

	res, err := ctl.Coord.Initialize(ctl.SessionRepo, ctl.UserRepo)
	if err != nil {
		log.Error().Str("module", "signal").Err(err).Msg("initialize failed")
		ctl.sendError(cl, err, "initialize failed")
		return
	}
	ctl.sendJSON(cl, struct {
		Type            string `json:"type"`
		RoomsDeleted    bool   `json:"roomsDeleted"`
		UsersDeleted    bool   `json:"usersDeleted"`
		SessionsDeleted bool   `json:"sessionsDeleted"`
	}{"initialized", res.RoomsDeleted, res.UsersDeleted, res.SessionsDeleted})
}
