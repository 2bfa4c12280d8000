package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parlor/internal/domain"
)

// relayFixture wires three users into one room with live fake transports.
func relayFixture(t *testing.T) (*Relay, map[string]*fakeConn) {
	t.Helper()
	presence := NewPresence()
	rooms := NewRooms(time.Minute)

	conns := map[string]*fakeConn{"c1": {}, "c2": {}, "c3": {}}
	for i, c := range []string{"c1", "c2", "c3"} {
		uid := domain.UserID([]string{"u1", "u2", "u3"}[i])
		presence.Register(&Binding{
			Conn:      domain.ConnID(c),
			Session:   domain.SessionID("s" + c),
			User:      uid,
			Room:      "ROOM",
			Transport: conns[c],
		})
		rooms.Join("ROOM", uid)
	}
	return NewRelay(presence, rooms), conns
}

func TestRelaySpecificPeer(t *testing.T) {
	req := require.New(t)
	relay, conns := relayFixture(t)

	payload := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 10.0.0.1 54321 typ host"}`)
	relay.Relay("c1", SignalICECandidate, SpecificPeer("c2"), payload)

	evts := conns["c2"].events("receive-ice-candidate")
	req.Len(evts, 1)
	req.Equal("c1", evts[0]["fromConnectionId"])
	cand, _ := evts[0]["candidate"].(map[string]any)
	req.Contains(cand["candidate"], "typ host")

	// Only the addressed peer hears it.
	req.Zero(conns["c1"].countType("receive-ice-candidate"))
	req.Zero(conns["c3"].countType("receive-ice-candidate"))
}

func TestRelayMissingTargetSilentlyDrops(t *testing.T) {
	req := require.New(t)
	relay, conns := relayFixture(t)

	// The peer already left; this must not error and must reach nobody.
	relay.Relay("c1", SignalICECandidate, SpecificPeer("gone"), json.RawMessage(`{}`))

	for name, c := range conns {
		req.Zero(c.countType("receive-ice-candidate"), "unexpected delivery to %s", name)
	}
}

func TestRelayUnknownSenderDropped(t *testing.T) {
	req := require.New(t)
	relay, conns := relayFixture(t)

	relay.Relay("stranger", SignalVoiceOffer, AllOthersInRoom(), json.RawMessage(`{"sdp":"x"}`))
	for _, c := range conns {
		req.Zero(c.countType("receive-voice-offer"))
	}
}

func TestRelayFanOutExcludesSender(t *testing.T) {
	req := require.New(t)
	relay, conns := relayFixture(t)

	relay.Relay("c1", SignalVoiceOffer, AllOthersInRoom(), json.RawMessage(`{"sdp":"offer"}`))

	req.Zero(conns["c1"].countType("receive-voice-offer"))
	req.Equal(1, conns["c2"].countType("receive-voice-offer"))
	req.Equal(1, conns["c3"].countType("receive-voice-offer"))
}

func TestRelayFanOutIsolatesFailedRecipient(t *testing.T) {
	req := require.New(t)
	relay, conns := relayFixture(t)
	conns["c2"].fail = true

	relay.Relay("c1", SignalVoiceAnswer, AllOthersInRoom(), json.RawMessage(`{"sdp":"answer"}`))

	// c2 is unreachable; c3 must still get the signal.
	req.Equal(1, conns["c3"].countType("receive-voice-answer"))
	evts := conns["c3"].events("receive-voice-answer")
	sig, _ := evts[0]["signal"].(map[string]any)
	req.Equal("answer", sig["sdp"])
}
