package service

import (
	"sync"
	"time"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
)

// QueueKey buckets waiting players: only identical game type, stake asset
// and stake amount can match.
type QueueKey struct {
	GameType    models.GameType
	StakeAsset  string
	StakeAmount string // normalized decimal string
}

// QueueEntry is one waiting player and the room they opened for the match.
type QueueEntry struct {
	UserID     string
	RoomID     string
	EnqueuedAt time.Time
}

// MatchmakingQueue pairs waiting players FIFO per key. It is owned by the
// coordinator and guarded by one mutex; it is never shared ambient state.
type MatchmakingQueue struct {
	mu sync.Mutex
	q  map[QueueKey][]QueueEntry
}

func NewMatchmakingQueue() *MatchmakingQueue {
	return &MatchmakingQueue{q: make(map[QueueKey][]QueueEntry)}
}

// Enqueue appends an entry to its key's FIFO list.
func (m *MatchmakingQueue) Enqueue(key QueueKey, entry QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.q[key] = append(m.q[key], entry)
}

// DequeueOther removes and returns the oldest entry under key that does not
// belong to userID, so a player can never match against themselves. The key
// is dropped once its list empties.
func (m *MatchmakingQueue) DequeueOther(key QueueKey, userID string) (QueueEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.q[key]
	for i, e := range entries {
		if e.UserID == userID {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(m.q, key)
		} else {
			m.q[key] = entries
		}
		return e, true
	}
	return QueueEntry{}, false
}

// RemoveUser drops every entry for userID across all keys and returns what
// was removed so the caller can cancel the associated rooms.
func (m *MatchmakingQueue) RemoveUser(userID string) []QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []QueueEntry
	for key, entries := range m.q {
		var keep []QueueEntry
		for _, e := range entries {
			if e.UserID == userID {
				removed = append(removed, e)
			} else {
				keep = append(keep, e)
			}
		}
		if len(keep) == 0 {
			delete(m.q, key)
		} else {
			m.q[key] = keep
		}
	}
	return removed
}
