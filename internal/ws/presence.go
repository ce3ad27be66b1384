package ws

import (
	"sort"
	"sync"
)

// PresenceTracker maintains the set of currently-connected identities.
// Presence is reference-counted per identity: one identity may hold
// several simultaneous connections and stays online until the last one
// closes. The first/last transition is decided inside the critical
// section, so concurrent connects and disconnects cannot race the
// online/offline edge.
type PresenceTracker struct {
	mu   sync.Mutex
	refs map[int]int
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{refs: make(map[int]int)}
}

// Connect records a new connection for userID and reports whether the
// identity just came online.
func (t *PresenceTracker) Connect(userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[userID]++
	return t.refs[userID] == 1
}

// Disconnect records a closed connection for userID and reports whether
// the identity just went offline. Unbalanced calls are tolerated.
func (t *PresenceTracker) Disconnect(userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	count, ok := t.refs[userID]
	if !ok {
		return false
	}
	if count <= 1 {
		delete(t.refs, userID)
		return true
	}
	t.refs[userID] = count - 1
	return false
}

// IsOnline reports whether userID has at least one open connection.
func (t *PresenceTracker) IsOnline(userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refs[userID] > 0
}

// OnlineUsers returns the ids of all currently-online identities,
// sorted for stable output.
func (t *PresenceTracker) OnlineUsers() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, 0, len(t.refs))
	for id := range t.refs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
