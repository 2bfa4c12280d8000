package app

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
	"parlor/internal/store"
)

// SessionPatch carries the mutable session fields; nil means leave as-is,
// a pointer to the zero value clears the field.
type SessionPatch struct {
	UserID *domain.UserID
	RoomID *domain.RoomID
}

// Sessions is the durable session/user view. The in-memory cache is
// authoritative for the life of the process; the repositories behind it are
// best-effort. Persistence never runs while the cache lock is held.
type Sessions struct {
	mu    sync.RWMutex
	bySID map[domain.SessionID]*domain.Session
	byUID map[domain.UserID]*domain.User

	repo  store.SessionRepo
	users store.UserRepo
}

func NewSessions(repo store.SessionRepo, users store.UserRepo) *Sessions {
	return &Sessions{
		bySID: make(map[domain.SessionID]*domain.Session),
		byUID: make(map[domain.UserID]*domain.User),
		repo:  repo,
		users: users,
	}
}

// GetOrCreate resolves the session for sid, loading it from persistence on
// first contact and minting a fresh one for unrecognized (or empty) ids.
// Idempotent and race-safe under concurrent first contact from duplicate
// tabs: exactly one Session value wins and both callers see it. The return
// is a snapshot copy; the cached original is only ever touched under the lock.
func (s *Sessions) GetOrCreate(sid domain.SessionID) domain.Session {
	if sid != "" {
		s.mu.RLock()
		if sess, ok := s.bySID[sid]; ok {
			cp := *sess
			s.mu.RUnlock()
			return cp
		}
		s.mu.RUnlock()
	} else {
		sid = domain.SessionID(uuid.NewString())
	}

	// Load outside the cache lock; store I/O must never run under it.
	loaded, err := s.repo.Get(sid)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Warn().Str("module", "app.sessions").Str("sid", string(sid)).Err(err).
			Msg("session load failed, continuing ephemeral")
	}

	s.mu.Lock()
	if sess, ok := s.bySID[sid]; ok {
		cp := *sess
		s.mu.Unlock()
		return cp
	}
	sess := loaded
	if sess == nil {
		sess = &domain.Session{ID: sid, Durable: true}
	}
	s.bySID[sid] = sess
	cp := *sess
	s.mu.Unlock()

	if loaded == nil {
		s.persist(cp)
		log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("created session")
	}
	return cp
}

// Get returns a snapshot of the cached session only; it never touches
// persistence.
func (s *Sessions) Get(sid domain.SessionID) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.bySID[sid]; ok {
		return *sess, true
	}
	return domain.Session{}, false
}

// Update patches a known session. Unknown sessions fail with ErrNotFound.
func (s *Sessions) Update(sid domain.SessionID, patch SessionPatch) (domain.Session, error) {
	s.mu.Lock()
	sess, ok := s.bySID[sid]
	if !ok {
		s.mu.Unlock()
		return domain.Session{}, domain.ErrNotFound
	}
	if patch.UserID != nil {
		sess.UserID = *patch.UserID
	}
	if patch.RoomID != nil {
		sess.RoomID = *patch.RoomID
	}
	cp := *sess
	s.mu.Unlock()

	s.persist(cp)
	return cp, nil
}

func (s *Sessions) MarkConnected(sid domain.SessionID, connected bool) error {
	s.mu.Lock()
	sess, ok := s.bySID[sid]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	sess.Connected = connected
	cp := *sess
	s.mu.Unlock()

	s.persist(cp)
	return nil
}

// persist writes asynchronously. The repository already retries with bounded
// backoff; if that budget is spent the session degrades to ephemeral-only
// with a warning, never an error to the connection.
func (s *Sessions) persist(sess domain.Session) {
	go func() {
		if err := s.repo.Put(&sess); err != nil {
			s.mu.Lock()
			if live, ok := s.bySID[sess.ID]; ok {
				live.Durable = false
			}
			s.mu.Unlock()
			log.Warn().Str("module", "app.sessions").Str("sid", string(sess.ID)).Err(err).
				Msg("session not durable")
		}
	}()
}

// EnsureUser resolves or creates the user behind a session and applies the
// requested display name.
func (s *Sessions) EnsureUser(sid domain.SessionID, name string) (domain.User, error) {
	s.mu.Lock()
	sess, ok := s.bySID[sid]
	if !ok {
		s.mu.Unlock()
		return domain.User{}, domain.ErrNotFound
	}
	if sess.UserID != "" {
		if u, ok := s.byUID[sess.UserID]; ok {
			if name != "" && len(name) <= domain.MaxUserNameLen {
				u.Name = name
			}
			u.Status = domain.UserActive
			cp := *u
			s.mu.Unlock()
			s.persistUser(cp)
			return cp, nil
		}
	}
	s.mu.Unlock()

	u, err := domain.NewUser(name)
	if err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	sess, ok = s.bySID[sid]
	if !ok {
		s.mu.Unlock()
		return domain.User{}, domain.ErrNotFound
	}
	s.byUID[u.ID] = u
	sess.UserID = u.ID
	ucp, scp := *u, *sess
	s.mu.Unlock()

	s.persistUser(ucp)
	s.persist(scp)
	return ucp, nil
}

func (s *Sessions) User(uid domain.UserID) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.byUID[uid]; ok {
		return *u, true
	}
	return domain.User{}, false
}

// UserName tolerates orphans; unknown users render as their raw id so
// snapshots never fail mid-broadcast.
func (s *Sessions) UserName(uid domain.UserID) string {
	if u, ok := s.User(uid); ok {
		return u.Name
	}
	return string(uid)
}

func (s *Sessions) SetUserStatus(uid domain.UserID, status domain.UserStatus) {
	s.mu.Lock()
	u, ok := s.byUID[uid]
	var cp domain.User
	if ok {
		u.Status = status
		cp = *u
	}
	s.mu.Unlock()
	if ok {
		s.persistUser(cp)
	}
}

func (s *Sessions) persistUser(u domain.User) {
	go func() {
		if err := s.users.Put(&u); err != nil {
			log.Warn().Str("module", "app.sessions").Str("user", string(u.ID)).Err(err).
				Msg("user not durable")
		}
	}()
}

func (s *Sessions) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySID = make(map[domain.SessionID]*domain.Session)
	s.byUID = make(map[domain.UserID]*domain.User)
}
