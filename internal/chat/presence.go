package chat

import "sync"

// PresenceRegistry is the authority on who is online in which room. It keeps
// one refcount per (room, user): the number of that user's connections
// currently joined to the room. A user is online in a room iff the refcount
// is positive.
//
// Counters for one room live behind that room's own lock; the outer lock is
// held only to locate or create the room entry, so unrelated rooms never
// contend.
type PresenceRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*roomPresence
}

type roomPresence struct {
	mu        sync.Mutex
	refcounts map[string]int
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		rooms: make(map[string]*roomPresence),
	}
}

// Increment bumps the user's refcount in the room and reports whether the
// user just came online there (0 -> 1).
func (p *PresenceRegistry) Increment(projectId string, userId string) bool {
	room := p.getOrCreateRoom(projectId)

	room.mu.Lock()
	defer room.mu.Unlock()

	room.refcounts[userId]++

	return room.refcounts[userId] == 1
}

// Decrement drops the user's refcount in the room and reports whether the
// user just went offline there. Decrementing an absent entry is a no-op
// returning false; refcounts never go negative.
func (p *PresenceRegistry) Decrement(projectId string, userId string) bool {
	p.mu.RLock()
	room, ok := p.rooms[projectId]
	p.mu.RUnlock()

	if !ok {
		return false
	}

	room.mu.Lock()

	count, ok := room.refcounts[userId]
	if !ok {
		room.mu.Unlock()

		return false
	}

	if count > 1 {
		room.refcounts[userId] = count - 1
		room.mu.Unlock()

		return false
	}

	// Entries are removed at zero so enumerating a room's online set stays
	// proportional to the users actually online.
	delete(room.refcounts, userId)
	empty := len(room.refcounts) == 0
	room.mu.Unlock()

	if empty {
		p.dropRoomIfEmpty(projectId)
	}

	return true
}

// OnlineUsers returns the room's current online set.
func (p *PresenceRegistry) OnlineUsers(projectId string) []string {
	p.mu.RLock()
	room, ok := p.rooms[projectId]
	p.mu.RUnlock()

	if !ok {
		return []string{}
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	users := make([]string, 0, len(room.refcounts))
	for userId := range room.refcounts {
		users = append(users, userId)
	}

	return users
}

func (p *PresenceRegistry) getOrCreateRoom(projectId string) *roomPresence {
	p.mu.RLock()
	room, ok := p.rooms[projectId]
	p.mu.RUnlock()

	if ok {
		return room
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if room, ok := p.rooms[projectId]; ok {
		return room
	}

	room = &roomPresence{refcounts: make(map[string]int)}
	p.rooms[projectId] = room

	return room
}

func (p *PresenceRegistry) dropRoomIfEmpty(projectId string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	room, ok := p.rooms[projectId]
	if !ok {
		return
	}

	room.mu.Lock()
	empty := len(room.refcounts) == 0
	room.mu.Unlock()

	if empty {
		delete(p.rooms, projectId)
	}
}
