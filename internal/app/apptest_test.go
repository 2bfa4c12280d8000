package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"parlor/internal/store"
)

// fakeConn records everything sent to it. fail makes TrySend error out,
// standing in for an unreachable recipient.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

var _ Conn = (*fakeConn)(nil)

func (f *fakeConn) TrySend(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("unreachable")
	}
	if f.closed {
		return errors.New("closed")
	}
	f.frames = append(f.frames, append([]byte(nil), p...))
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// events decodes the recorded frames of the given type, in arrival order.
func (f *fakeConn) events(typ string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, frame := range f.frames {
		var m map[string]any
		if json.Unmarshal(frame, &m) != nil {
			continue
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) countType(typ string) int {
	return len(f.events(typ))
}

// memberIDs extracts the "members" field of a decoded snapshot event.
func memberIDs(evt map[string]any) []string {
	raw, _ := evt["members"].([]any)
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		mm, _ := m.(map[string]any)
		id, _ := mm["id"].(string)
		out = append(out, id)
	}
	return out
}

type fixture struct {
	sessions    *Sessions
	presence    *Presence
	rooms       *Rooms
	coord       *Coordinator
	sessionRepo *store.SessionRepository
	userRepo    *store.UserRepository
	roomRepo    *store.RoomRepository
}

func newFixture(t *testing.T, grace time.Duration) *fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		sessionRepo: store.NewSessionRepository(db),
		userRepo:    store.NewUserRepository(db),
		roomRepo:    store.NewRoomRepository(db),
		presence:    NewPresence(),
		rooms:       NewRooms(grace),
	}
	f.sessions = NewSessions(f.sessionRepo, f.userRepo)
	f.coord = NewCoordinator(f.sessions, f.presence, f.rooms, f.roomRepo, grace)
	return f
}
