package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"parlor/internal/domain"
	"parlor/internal/store"
)

// Per-session lifecycle phases. Transitions are compare-and-swap so exactly
// one of {grace timer fires, reconnect arrives} wins, never both.
const (
	phaseConnected int32 = iota
	phasePendingLeave
	phaseLeft
)

const maxRoomCodeAttempts = 5

type sessionState struct {
	phase atomic.Int32
	timer *time.Timer // guarded by Coordinator.mu
}

// Coordinator drives connect -> identify -> join-room -> disconnect ->
// grace -> expire for every connection, and is the only place that emits
// membership-changed notifications.
type Coordinator struct {
	sessions *Sessions
	presence *Presence
	rooms    *Rooms
	roomRepo store.RoomRepo
	grace    time.Duration

	mu     sync.Mutex
	states map[domain.SessionID]*sessionState
}

func NewCoordinator(sessions *Sessions, presence *Presence, rooms *Rooms, roomRepo store.RoomRepo, grace time.Duration) *Coordinator {
	c := &Coordinator{
		sessions: sessions,
		presence: presence,
		rooms:    rooms,
		roomRepo: roomRepo,
		grace:    grace,
		states:   make(map[domain.SessionID]*sessionState),
	}
	rooms.OnDispose(c.onRoomDisposed)
	return c
}

func (c *Coordinator) state(sid domain.SessionID) *sessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[sid]
	if !ok {
		st = &sessionState{}
		c.states[sid] = st
	}
	return st
}

// Connect binds a fresh transport connection to its durable session. If the
// session was in its disconnect grace window the pending leave is cancelled
// and room membership resumes silently: no snapshot broadcast, no flapping.
// A prior live connection on the same session is superseded. The returned
// session is a snapshot taken under the store lock.
func (c *Coordinator) Connect(connID domain.ConnID, sid domain.SessionID, transport Conn) (domain.Session, bool) {
	sess := c.sessions.GetOrCreate(sid)

	st := c.state(sess.ID)
	resumed := st.phase.CompareAndSwap(phasePendingLeave, phaseConnected)
	if resumed {
		c.mu.Lock()
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		c.mu.Unlock()
		log.Info().Str("module", "app.lifecycle").Str("sid", string(sess.ID)).Msg("reconnect within grace, leave cancelled")
	} else {
		st.phase.Store(phaseConnected)
	}

	evicted := c.presence.Register(&Binding{
		Conn:      connID,
		Session:   sess.ID,
		User:      sess.UserID,
		Room:      sess.RoomID,
		Transport: transport,
	})
	if evicted != nil {
		_ = evicted.Transport.TrySend(encode(map[string]string{"type": EvtSuperseded}))
		evicted.Transport.Close()
	}

	_ = c.sessions.MarkConnected(sess.ID, true)
	if sess.UserID != "" {
		c.sessions.SetUserStatus(sess.UserID, domain.UserActive)
	}

	// Tell the newcomer who is already here; tell the rest about the
	// newcomer. A silent resume announces nothing.
	_ = transport.TrySend(c.connectedListEvent())
	if !resumed && sess.UserID != "" {
		c.broadcastAll(userNameEvent(EvtSocketConnected, c.sessions.UserName(sess.UserID)), connID)
	}
	return sess, resumed
}

// CreateRoom mints a collision-checked room code, creates the room with the
// caller as first player and broadcasts the initial member snapshot.
func (c *Coordinator) CreateRoom(connID domain.ConnID, userName string) (*domain.Room, []Member, error) {
	b, ok := c.presence.FindByConnection(connID)
	if !ok {
		return nil, nil, fmt.Errorf("connection %s: %w", connID, domain.ErrNotFound)
	}
	user, err := c.sessions.EnsureUser(b.Session, userName)
	if err != nil {
		return nil, nil, err
	}

	code, err := c.newRoomCode()
	if err != nil {
		return nil, nil, err
	}
	room := domain.NewRoom(code, user.ID)
	c.persistRoom(room)

	members := c.rooms.Join(code, user.ID)
	c.presence.SetIdentity(connID, user.ID, code)
	if _, err := c.sessions.Update(b.Session, SessionPatch{UserID: &user.ID, RoomID: &code}); err != nil {
		return nil, nil, err
	}

	snapshot := c.snapshot(members)
	c.broadcastRoom(code, memberSnapshotEvent(snapshot))
	log.Info().Str("module", "app.lifecycle").Str("room", string(code)).Str("user", string(user.ID)).Msg("room created")
	return room, snapshot, nil
}

func (c *Coordinator) newRoomCode() (domain.RoomID, error) {
	for i := 0; i < maxRoomCodeAttempts; i++ {
		code := domain.NewRoomCode()
		if c.rooms.Exists(code) {
			continue
		}
		if _, err := c.roomRepo.Get(code); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			// Store unreachable; in-memory registry is authoritative,
			// the in-memory check above already passed.
			log.Warn().Str("module", "app.lifecycle").Err(err).Msg("room code collision check degraded")
		}
		return code, nil
	}
	return "", fmt.Errorf("room code generation: %w", domain.ErrConflict)
}

// JoinRoom adds the caller to an existing room and broadcasts the updated
// snapshot to every current member, the joiner included.
func (c *Coordinator) JoinRoom(connID domain.ConnID, roomID domain.RoomID, userName string) ([]Member, error) {
	b, ok := c.presence.FindByConnection(connID)
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", connID, domain.ErrNotFound)
	}
	if !c.rooms.Exists(roomID) {
		if _, err := c.roomRepo.Get(roomID); err != nil {
			return nil, fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
		}
	}
	user, err := c.sessions.EnsureUser(b.Session, userName)
	if err != nil {
		return nil, err
	}

	members := c.rooms.Join(roomID, user.ID)
	c.presence.SetIdentity(connID, user.ID, roomID)
	if _, err := c.sessions.Update(b.Session, SessionPatch{UserID: &user.ID, RoomID: &roomID}); err != nil {
		return nil, err
	}
	c.persistRoomMembers(roomID, members)

	snapshot := c.snapshot(members)
	c.broadcastRoom(roomID, memberSnapshotEvent(snapshot))
	log.Info().Str("module", "app.lifecycle").Str("room", string(roomID)).Str("user", string(user.ID)).Msg("joined room")
	return snapshot, nil
}

// Disconnect handles a closed transport. Room membership is NOT removed yet;
// a grace timer starts and a reconnect with the same session id before it
// fires wins the seat back.
func (c *Coordinator) Disconnect(connID domain.ConnID) {
	b, ok := c.presence.Unregister(connID)
	if !ok {
		// Already superseded by a newer connection.
		return
	}
	_ = c.sessions.MarkConnected(b.Session, false)
	if b.User != "" {
		c.sessions.SetUserStatus(b.User, domain.UserDisconnected)
		c.broadcastAll(userNameEvent(EvtSocketDisconnected, c.sessions.UserName(b.User)), connID)
	}

	st := c.state(b.Session)
	if b.Room == "" {
		st.phase.Store(phaseLeft)
		return
	}
	if st.phase.CompareAndSwap(phaseConnected, phasePendingLeave) {
		sid, uid, room := b.Session, b.User, b.Room
		c.mu.Lock()
		st.timer = time.AfterFunc(c.grace, func() { c.graceExpired(sid, uid, room) })
		c.mu.Unlock()
		log.Info().Str("module", "app.lifecycle").Str("sid", string(sid)).Dur("grace", c.grace).Msg("pending leave")
	}
}

// graceExpired runs on the timer goroutine. The CAS decides atomically
// against a concurrent reconnect; losing it means the seat was reclaimed.
func (c *Coordinator) graceExpired(sid domain.SessionID, uid domain.UserID, roomID domain.RoomID) {
	st := c.state(sid)
	if !st.phase.CompareAndSwap(phasePendingLeave, phaseLeft) {
		return
	}
	log.Info().Str("module", "app.lifecycle").Str("sid", string(sid)).Str("room", string(roomID)).Msg("grace expired, leaving room")

	remaining, ok := c.rooms.Leave(roomID, uid)
	var noRoom domain.RoomID
	if _, err := c.sessions.Update(sid, SessionPatch{RoomID: &noRoom}); err != nil {
		log.Warn().Str("module", "app.lifecycle").Str("sid", string(sid)).Err(err).Msg("clearing room ref")
	}
	if !ok {
		return
	}
	c.persistRoomMembers(roomID, remaining)
	c.broadcastRoom(roomID, memberSnapshotEvent(c.snapshot(remaining)))
}

// Resync returns the caller's current room snapshot on demand; broadcasts are
// best-effort, this is the catch-up path.
func (c *Coordinator) Resync(connID domain.ConnID) ([]Member, error) {
	b, ok := c.presence.FindByConnection(connID)
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", connID, domain.ErrNotFound)
	}
	if b.Room == "" {
		return []Member{}, nil
	}
	members, ok := c.rooms.Members(b.Room)
	if !ok {
		return []Member{}, nil
	}
	return c.snapshot(members), nil
}

type InitResult struct {
	RoomsDeleted    bool `json:"roomsDeleted"`
	UsersDeleted    bool `json:"usersDeleted"`
	SessionsDeleted bool `json:"sessionsDeleted"`
}

// Initialize wipes persistence and every in-memory registry. Non-production
// environments only; the adapter gates it on the configured mode.
func (c *Coordinator) Initialize(sessionRepo store.SessionRepo, userRepo store.UserRepo) (InitResult, error) {
	c.mu.Lock()
	for _, st := range c.states {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	c.states = make(map[domain.SessionID]*sessionState)
	c.mu.Unlock()

	c.presence.Clear()
	c.rooms.Clear()
	c.sessions.Clear()

	var res InitResult
	var err error
	if res.RoomsDeleted, err = c.roomRepo.DeleteAll(); err != nil {
		return res, err
	}
	if res.UsersDeleted, err = userRepo.DeleteAll(); err != nil {
		return res, err
	}
	if res.SessionsDeleted, err = sessionRepo.DeleteAll(); err != nil {
		return res, err
	}
	log.Warn().Str("module", "app.lifecycle").Msg("administrative reset performed")
	return res, nil
}

func (c *Coordinator) snapshot(ids []domain.UserID) []Member {
	return lo.Map(ids, func(uid domain.UserID, _ int) Member {
		return Member{ID: uid, Name: c.sessions.UserName(uid)}
	})
}

// broadcastRoom fans out to every live member connection independently; one
// failed recipient never blocks the rest, and the membership change that
// triggered the broadcast is never rolled back.
func (c *Coordinator) broadcastRoom(roomID domain.RoomID, frame []byte) {
	members, ok := c.rooms.Members(roomID)
	if !ok {
		return
	}
	for _, peer := range c.presence.FindLiveConnections(members) {
		if err := peer.Transport.TrySend(frame); err != nil {
			log.Debug().Str("module", "app.lifecycle").Str("to", string(peer.Conn)).Err(err).Msg("broadcast drop")
		}
	}
}

func (c *Coordinator) broadcastAll(frame []byte, exclude domain.ConnID) {
	for _, peer := range c.presence.Snapshot() {
		if peer.Conn == exclude {
			continue
		}
		if err := peer.Transport.TrySend(frame); err != nil {
			log.Debug().Str("module", "app.lifecycle").Str("to", string(peer.Conn)).Err(err).Msg("broadcast drop")
		}
	}
}

func (c *Coordinator) connectedListEvent() []byte {
	names := lo.FilterMap(c.presence.Snapshot(), func(b Binding, _ int) (string, bool) {
		if b.User == "" {
			return "", false
		}
		return c.sessions.UserName(b.User), true
	})
	return encode(struct {
		Type string   `json:"type"`
		List []string `json:"list"`
	}{EvtSocketsConnected, names})
}

func (c *Coordinator) persistRoom(room *domain.Room) {
	go func() {
		if err := c.roomRepo.Put(room); err != nil {
			log.Warn().Str("module", "app.lifecycle").Str("room", string(room.ID)).Err(err).Msg("room not durable")
		}
	}()
}

// persistRoomMembers reconciles the stored roster with the live one.
func (c *Coordinator) persistRoomMembers(roomID domain.RoomID, members []domain.UserID) {
	snapshot := append([]domain.UserID(nil), members...)
	go func() {
		room, err := c.roomRepo.Get(roomID)
		if err != nil {
			log.Warn().Str("module", "app.lifecycle").Str("room", string(roomID)).Err(err).Msg("roster load failed")
			return
		}
		room.Players = snapshot
		if len(snapshot) > 0 && room.Status == domain.RoomClosed {
			room.Status = domain.RoomOpen
		}
		if err := c.roomRepo.Put(room); err != nil {
			log.Warn().Str("module", "app.lifecycle").Str("room", string(roomID)).Err(err).Msg("roster not durable")
		}
	}()
}

// onRoomDisposed fires after an empty room's grace period; the stored record
// is closed, not deleted, so an administrative reset stays the only eraser.
func (c *Coordinator) onRoomDisposed(roomID domain.RoomID) {
	room, err := c.roomRepo.Get(roomID)
	if err != nil {
		return
	}
	room.Status = domain.RoomClosed
	if err := c.roomRepo.Put(room); err != nil {
		log.Warn().Str("module", "app.lifecycle").Str("room", string(roomID)).Err(err).Msg("room close not durable")
	}
}
