package store

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"parlor/internal/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	req := require.New(t)
	repo := NewSessionRepository(openTestDB(t))

	_, err := repo.Get("missing")
	req.ErrorIs(err, domain.ErrNotFound)

	sess := &domain.Session{ID: "s-1", UserID: "u-1", RoomID: "ABCDEFGH", Connected: true}
	req.NoError(repo.Put(sess))

	got, err := repo.Get("s-1")
	req.NoError(err)
	req.Equal(sess.UserID, got.UserID)
	req.Equal(sess.RoomID, got.RoomID)
	req.True(got.Connected)
	req.True(got.Durable, "a session read back from disk is durable")
}

func TestRoomRepository_RoundTrip(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t))

	room := domain.NewRoom("ABCDEFGH", "u-1")
	room.Players = append(room.Players, "u-2")
	req.NoError(repo.Put(room))

	got, err := repo.Get("ABCDEFGH")
	req.NoError(err)
	req.Equal(domain.RoomOpen, got.Status)
	req.Equal([]domain.UserID{"u-1", "u-2"}, got.Players)
	req.Equal(domain.UserID("u-1"), got.CreatedBy)

	req.NoError(repo.Delete("ABCDEFGH"))
	_, err = repo.Get("ABCDEFGH")
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestUserRepository_RoundTrip(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	u, err := domain.NewUser("alice")
	req.NoError(err)
	req.NoError(repo.Put(u))

	got, err := repo.Get(u.ID)
	req.NoError(err)
	req.Equal("alice", got.Name)
	req.Equal(domain.UserActive, got.Status)
}

func TestDeleteAll_ReportsWhetherAnythingExisted(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	sessions := NewSessionRepository(db)
	users := NewUserRepository(db)

	deleted, err := sessions.DeleteAll()
	req.NoError(err)
	req.False(deleted, "empty store has nothing to delete")

	req.NoError(sessions.Put(&domain.Session{ID: "s-1"}))
	req.NoError(sessions.Put(&domain.Session{ID: "s-2"}))
	u, err := domain.NewUser("bob")
	req.NoError(err)
	req.NoError(users.Put(u))

	deleted, err = sessions.DeleteAll()
	req.NoError(err)
	req.True(deleted)

	// Prefixes are isolated: the user survived the session wipe.
	_, err = sessions.Get("s-1")
	req.ErrorIs(err, domain.ErrNotFound)
	_, err = users.Get(u.ID)
	req.NoError(err)
}
