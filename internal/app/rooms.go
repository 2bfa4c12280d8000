package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

// Rooms tracks live room membership as ordered sets. Each room carries its
// own lock so churn in one room never serializes another; the registry-level
// lock guards only the map itself.
type Rooms struct {
	mu        sync.RWMutex
	rooms     map[domain.RoomID]*roomMembers
	grace     time.Duration
	onDispose func(domain.RoomID)
}

type roomMembers struct {
	mu      sync.Mutex
	members []domain.UserID
	dispose *time.Timer

	// disposed marks a struct that disposal already unlinked from the
	// registry; a caller that fetched the pointer beforehand must not use
	// it. Set under mu, once, never cleared.
	disposed bool
}

func NewRooms(grace time.Duration) *Rooms {
	return &Rooms{
		rooms: make(map[domain.RoomID]*roomMembers),
		grace: grace,
	}
}

// OnDispose registers the hook run after an empty room's grace elapses.
// Must be set before the first Join.
func (r *Rooms) OnDispose(fn func(domain.RoomID)) {
	r.onDispose = fn
}

func (r *Rooms) getOrCreate(id domain.RoomID) *roomMembers {
	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return rm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[id]; ok {
		return rm
	}
	rm = &roomMembers{}
	r.rooms[id] = rm
	return rm
}

// Join appends the user to the end of the ordered set if absent. A repeat
// join by the same user is a no-op. Returns the up-to-date member list so the
// caller can broadcast a snapshot rather than a diff.
func (r *Rooms) Join(id domain.RoomID, user domain.UserID) []domain.UserID {
	var rm *roomMembers
	for {
		rm = r.getOrCreate(id)
		rm.mu.Lock()
		if !rm.disposed {
			break
		}
		// Disposal won the race between the registry lookup and the room
		// lock; the struct is orphaned. The registry hands out a fresh one.
		rm.mu.Unlock()
	}
	defer rm.mu.Unlock()

	if rm.dispose != nil {
		rm.dispose.Stop()
		rm.dispose = nil
	}
	for _, m := range rm.members {
		if m == user {
			return append([]domain.UserID(nil), rm.members...)
		}
	}
	rm.members = append(rm.members, user)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("user", string(user)).Msg("member joined")
	return append([]domain.UserID(nil), rm.members...)
}

// Leave removes the user and returns the remaining members. An emptied room
// is not disposed immediately; a grace timer runs first so a fast rejoin
// keeps the room alive.
func (r *Rooms) Leave(id domain.RoomID, user domain.UserID) ([]domain.UserID, bool) {
	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.disposed {
		return nil, false
	}

	kept := rm.members[:0]
	for _, m := range rm.members {
		if m != user {
			kept = append(kept, m)
		}
	}
	rm.members = kept
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("user", string(user)).Msg("member left")

	if len(rm.members) == 0 && rm.dispose == nil {
		rm.dispose = time.AfterFunc(r.grace, func() { r.disposeIfEmpty(id) })
	}
	return append([]domain.UserID(nil), rm.members...), true
}

func (r *Rooms) disposeIfEmpty(id domain.RoomID) {
	r.mu.Lock()
	rm, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	rm.mu.Lock()
	empty := len(rm.members) == 0
	rm.dispose = nil
	rm.disposed = empty
	rm.mu.Unlock()
	if empty {
		delete(r.rooms, id)
	}
	r.mu.Unlock()

	if empty {
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room disposed")
		if r.onDispose != nil {
			r.onDispose(id)
		}
	}
}

func (r *Rooms) Members(id domain.RoomID) ([]domain.UserID, bool) {
	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.disposed {
		return nil, false
	}
	return append([]domain.UserID(nil), rm.members...), true
}

func (r *Rooms) Exists(id domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[id]
	return ok
}

// RoomInfo is the list view served by the HTTP surface.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}

func (r *Rooms) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		rm.mu.Lock()
		n := len(rm.members)
		rm.mu.Unlock()
		out = append(out, RoomInfo{ID: id, MemberCount: n})
	}
	return out
}

func (r *Rooms) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rm := range r.rooms {
		rm.mu.Lock()
		if rm.dispose != nil {
			rm.dispose.Stop()
		}
		rm.mu.Unlock()
	}
	r.rooms = make(map[domain.RoomID]*roomMembers)
}
