package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

// Binding ties a live connection to the durable identity behind it.
// It exists only while the connection is up.
type Binding struct {
	Conn      domain.ConnID
	Session   domain.SessionID
	User      domain.UserID
	Room      domain.RoomID
	Transport Conn
}

// Presence is the authoritative "who is online right now". Point lookups and
// mutations on in-memory maps only; nothing here blocks on I/O.
type Presence struct {
	mu        sync.RWMutex
	byConn    map[domain.ConnID]*Binding
	bySession map[domain.SessionID]domain.ConnID
	byUser    map[domain.UserID]domain.ConnID
}

func NewPresence() *Presence {
	return &Presence{
		byConn:    make(map[domain.ConnID]*Binding),
		bySession: make(map[domain.SessionID]domain.ConnID),
		byUser:    make(map[domain.UserID]domain.ConnID),
	}
}

// Register inserts the binding. If another live connection already claims the
// same session it is unregistered first and returned so the caller can notify
// and close its transport; at most one live connection per session, always.
func (p *Presence) Register(b *Binding) (evicted *Binding) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// A connection re-registering (re-identify under a different session)
	// must shed its old indexes first or bySession/byUser go stale.
	if _, ok := p.byConn[b.Conn]; ok {
		p.removeLocked(b.Conn)
	}

	if prior, ok := p.bySession[b.Session]; ok && prior != b.Conn {
		evicted = p.byConn[prior]
		p.removeLocked(prior)
		log.Info().Str("module", "app.presence").
			Str("sid", string(b.Session)).
			Str("old_conn", string(prior)).
			Str("new_conn", string(b.Conn)).
			Msg("superseding live connection")
	}

	p.byConn[b.Conn] = b
	p.bySession[b.Session] = b.Conn
	if b.User != "" {
		p.byUser[b.User] = b.Conn
	}
	return evicted
}

func (p *Presence) Unregister(id domain.ConnID) (Binding, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.byConn[id]
	if !ok {
		return Binding{}, false
	}
	p.removeLocked(id)
	return *b, true
}

func (p *Presence) removeLocked(id domain.ConnID) {
	b, ok := p.byConn[id]
	delete(p.byConn, id)
	if ok {
		if p.bySession[b.Session] == id {
			delete(p.bySession, b.Session)
		}
		if b.User != "" && p.byUser[b.User] == id {
			delete(p.byUser, b.User)
		}
		return
	}
	// No binding behind the id: an index leaked it. Sweep it out so a later
	// Register for the same session never trips over the dangling entry.
	for sid, cid := range p.bySession {
		if cid == id {
			delete(p.bySession, sid)
		}
	}
	for uid, cid := range p.byUser {
		if cid == id {
			delete(p.byUser, uid)
		}
	}
}

func (p *Presence) FindByConnection(id domain.ConnID) (Binding, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.byConn[id]; ok {
		return *b, true
	}
	return Binding{}, false
}

func (p *Presence) FindBySession(sid domain.SessionID) (Binding, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id, ok := p.bySession[sid]; ok {
		if b, ok := p.byConn[id]; ok {
			return *b, true
		}
	}
	return Binding{}, false
}

// FindLiveConnections resolves users to their live bindings. Users without a
// live connection are skipped, not errors; churn makes that routine.
func (p *Presence) FindLiveConnections(userIDs []domain.UserID) []Binding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Binding, 0, len(userIDs))
	for _, uid := range userIDs {
		if id, ok := p.byUser[uid]; ok {
			if b, ok := p.byConn[id]; ok {
				out = append(out, *b)
			}
		}
	}
	return out
}

// SetIdentity fills in the user and room refs once a connection has
// identified or joined a room.
func (p *Presence) SetIdentity(id domain.ConnID, user domain.UserID, room domain.RoomID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.byConn[id]
	if !ok {
		return false
	}
	if user != "" {
		b.User = user
		p.byUser[user] = id
	}
	b.Room = room
	return true
}

func (p *Presence) Snapshot() []Binding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Binding, 0, len(p.byConn))
	for _, b := range p.byConn {
		out = append(out, *b)
	}
	return out
}

func (p *Presence) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byConn = make(map[domain.ConnID]*Binding)
	p.bySession = make(map[domain.SessionID]domain.ConnID)
	p.byUser = make(map[domain.UserID]domain.ConnID)
}
