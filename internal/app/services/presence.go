package services

import (
	"sort"
	"sync"
)

// OnlineUser is one connected identity visible in a room roster.
type OnlineUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	ConnID   string `json:"connId"`
}

type presenceEntry struct {
	userName string
	connID   string
	rooms    map[string]struct{}
}

// Presence tracks which identities are connected and which team rooms
// they have joined, plus the per-room typing sets. Purely in-process and
// advisory: a restart clears it. Constructed once at startup and passed
// to the gateway so tests can build their own.
type Presence struct {
	mu     sync.RWMutex
	users  map[string]*presenceEntry
	typing map[string]map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{
		users:  make(map[string]*presenceEntry),
		typing: make(map[string]map[string]struct{}),
	}
}

// AddConnection registers a connected identity. A reconnect replaces the
// previous connection handle and keeps no stale room memberships.
func (p *Presence) AddConnection(userID, userName, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = &presenceEntry{userName: userName, connID: connID, rooms: make(map[string]struct{})}
}

// RemoveConnection tears down the identity's entry and returns the rooms
// it was in, so the caller can fan out user-left notifications. A stale
// connID is ignored: the user has already reconnected and the new
// connection owns the entry.
func (p *Presence) RemoveConnection(userID, connID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.users[userID]
	if !ok || entry.connID != connID {
		return nil
	}
	rooms := make([]string, 0, len(entry.rooms))
	for room := range entry.rooms {
		rooms = append(rooms, room)
		p.clearTypingLocked(room, userID)
	}
	delete(p.users, userID)
	sort.Strings(rooms)
	return rooms
}

func (p *Presence) JoinRoom(userID, teamID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.users[userID]; ok {
		entry.rooms[teamID] = struct{}{}
	}
}

func (p *Presence) LeaveRoom(userID, teamID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.users[userID]; ok {
		delete(entry.rooms, teamID)
	}
	p.clearTypingLocked(teamID, userID)
}

// ListOnlineInRoom returns every connected identity whose room set
// contains the team, sorted by user id for stable output.
func (p *Presence) ListOnlineInRoom(teamID string) []OnlineUser {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []OnlineUser
	for userID, entry := range p.users {
		if _, in := entry.rooms[teamID]; in {
			out = append(out, OnlineUser{UserID: userID, UserName: entry.userName, ConnID: entry.connID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// SetTyping marks the identity as typing in the room.
func (p *Presence) SetTyping(teamID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.typing[teamID]
	if !ok {
		set = make(map[string]struct{})
		p.typing[teamID] = set
	}
	set[userID] = struct{}{}
}

// ClearTyping removes the identity from the room's typing set and
// reports whether it was present.
func (p *Presence) ClearTyping(teamID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clearTypingLocked(teamID, userID)
}

func (p *Presence) clearTypingLocked(teamID, userID string) bool {
	set, ok := p.typing[teamID]
	if !ok {
		return false
	}
	if _, was := set[userID]; !was {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(p.typing, teamID)
	}
	return true
}

// TypingIn returns the identities currently typing in the room, sorted.
func (p *Presence) TypingIn(teamID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := p.typing[teamID]
	out := make([]string, 0, len(set))
	for userID := range set {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}
