package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parlor/internal/domain"
)

func TestSessionAccessorsReturnSnapshots(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Minute)

	sess := f.sessions.GetOrCreate("s1")
	req.Equal(domain.SessionID("s1"), sess.ID)

	// Mutating the returned value must not leak into the store.
	sess.RoomID = "ABCDEFGH"
	got, ok := f.sessions.Get("s1")
	req.True(ok)
	req.Empty(got.RoomID)

	room := domain.RoomID("ABCDEFGH")
	updated, err := f.sessions.Update("s1", SessionPatch{RoomID: &room})
	req.NoError(err)
	req.Equal(room, updated.RoomID)
	updated.RoomID = "TAMPERED"
	got, _ = f.sessions.Get("s1")
	req.Equal(room, got.RoomID)
}

func TestSessionsConcurrentReadersAndWriters(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Minute)

	f.sessions.GetOrCreate("s1")
	user, err := f.sessions.EnsureUser("s1", "alice")
	req.NoError(err)

	// Readers racing field patches; run with -race to check isolation.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s := f.sessions.GetOrCreate("s1")
				_ = s.RoomID
				_ = f.sessions.UserName(user.ID)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				room := domain.RoomID("ABCDEFGH")
				_, _ = f.sessions.Update("s1", SessionPatch{RoomID: &room})
				_ = f.sessions.MarkConnected("s1", j%2 == 0)
				f.sessions.SetUserStatus(user.ID, domain.UserActive)
			}
		}()
	}
	wg.Wait()

	got, ok := f.sessions.Get("s1")
	req.True(ok)
	req.Equal(domain.RoomID("ABCDEFGH"), got.RoomID)
}
