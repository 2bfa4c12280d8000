package signal

import (
	"encoding/json"

	"parlor/internal/app"
	"parlor/internal/domain"
)

// Signaling payloads pass through opaque: no SDP or candidate parsing here,
// schema validation belongs to the peers themselves.

type signalPayload struct {
	Type      string          `json:"type"`
	Target    domain.ConnID   `json:"targetConnId"`
	Candidate json.RawMessage `json:"candidate"`
	Signal    json.RawMessage `json:"signal"`
}

func (p signalPayload) target() app.Target {
	if p.Target == "" {
		return app.AllOthersInRoom()
	}
	return app.SpecificPeer(p.Target)
}

func (ctl *Controller) handleICECandidate(cl *client, data []byte) {
	if !ctl.requireIdentified(cl) {
		return
	}
	var p signalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(cl, nil, "bad_payload")
		return
	}
	ctl.Relay.Relay(cl.id, app.SignalICECandidate, p.target(), p.Candidate)
}

func (ctl *Controller) handleVoiceOffer(cl *client, data []byte) {
	if !ctl.requireIdentified(cl) {
		return
	}
	var p signalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(cl, nil, "bad_payload")
		return
	}
	ctl.Relay.Relay(cl.id, app.SignalVoiceOffer, p.target(), p.Signal)
}

func (ctl *Controller) handleVoiceAnswer(cl *client, data []byte) {
	if !ctl.requireIdentified(cl) {
		return
	}
	var p signalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(cl, nil, "bad_payload")
		return
	}
	ctl.Relay.Relay(cl.id, app.SignalVoiceAnswer, p.target(), p.Signal)
}
