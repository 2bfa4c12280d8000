package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

type SignalKind string

const (
	SignalICECandidate SignalKind = "ICE_CANDIDATE"
	SignalVoiceOffer   SignalKind = "VOICE_OFFER"
	SignalVoiceAnswer  SignalKind = "VOICE_ANSWER"
)

// Target selects the recipients of a relayed signal.
type Target struct {
	peer      domain.ConnID
	allOthers bool
}

func SpecificPeer(id domain.ConnID) Target { return Target{peer: id} }
func AllOthersInRoom() Target              { return Target{allOthers: true} }

// Relay forwards WebRTC signaling payloads between peers. It is stateless
// and opaque: the payload is never inspected, only annotated with the
// sender's connection id so the receiver can address replies.
type Relay struct {
	Presence *Presence
	Rooms    *Rooms
}

func NewRelay(presence *Presence, rooms *Rooms) *Relay {
	return &Relay{Presence: presence, Rooms: rooms}
}

// Relay resolves the target(s) and forwards. A target that already left is
// silently dropped; under churn that is expected, not an error. Delivery is
// independent per recipient.
func (r *Relay) Relay(from domain.ConnID, kind SignalKind, target Target, payload json.RawMessage) {
	sender, ok := r.Presence.FindByConnection(from)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Msg("sender not registered, dropping")
		return
	}

	frame := envelope(kind, from, payload)
	if frame == nil {
		return
	}

	if !target.allOthers {
		peer, ok := r.Presence.FindByConnection(target.peer)
		if !ok {
			// The peer already left. Expected under churn.
			log.Debug().Str("module", "app.relay").
				Str("kind", string(kind)).
				Str("target", string(target.peer)).
				Msg("target gone, dropping signal")
			return
		}
		r.deliver(peer, kind, frame)
		return
	}

	if sender.Room == "" {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Msg("sender has no room, dropping fan-out")
		return
	}
	members, ok := r.Rooms.Members(sender.Room)
	if !ok {
		return
	}
	for _, peer := range r.Presence.FindLiveConnections(members) {
		if peer.Conn == from {
			continue
		}
		r.deliver(peer, kind, frame)
	}
}

// deliver is fire-and-forget; one slow or dead recipient never affects the
// rest of a fan-out.
func (r *Relay) deliver(peer Binding, kind SignalKind, frame []byte) {
	if err := peer.Transport.TrySend(frame); err != nil {
		log.Debug().Str("module", "app.relay").
			Str("kind", string(kind)).
			Str("to", string(peer.Conn)).
			Err(err).
			Msg("signal delivery failed")
	}
}

func envelope(kind SignalKind, from domain.ConnID, payload json.RawMessage) []byte {
	var event, field string
	switch kind {
	case SignalICECandidate:
		event, field = "receive-ice-candidate", "candidate"
	case SignalVoiceOffer:
		event, field = "receive-voice-offer", "signal"
	case SignalVoiceAnswer:
		event, field = "receive-voice-answer", "signal"
	default:
		log.Warn().Str("module", "app.relay").Str("kind", string(kind)).Msg("unknown signal kind")
		return nil
	}
	return encode(map[string]any{
		"type":             event,
		field:              payload,
		"fromConnectionId": from,
	})
}
