package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
)

func tttKey(amount string) QueueKey {
	return QueueKey{GameType: models.GameTicTacToe, StakeAsset: "USDT", StakeAmount: amount}
}

func TestQueueFIFO(t *testing.T) {
	q := NewMatchmakingQueue()
	key := tttKey("10")
	q.Enqueue(key, QueueEntry{UserID: "alice", RoomID: "r1", EnqueuedAt: time.Now()})
	q.Enqueue(key, QueueEntry{UserID: "bob", RoomID: "r2", EnqueuedAt: time.Now()})

	got, ok := q.DequeueOther(key, "carol")
	require.True(t, ok)
	assert.Equal(t, "alice", got.UserID)

	got, ok = q.DequeueOther(key, "carol")
	require.True(t, ok)
	assert.Equal(t, "bob", got.UserID)

	_, ok = q.DequeueOther(key, "carol")
	assert.False(t, ok)
}

func TestQueueNeverMatchesSelf(t *testing.T) {
	q := NewMatchmakingQueue()
	key := tttKey("10")
	q.Enqueue(key, QueueEntry{UserID: "alice", RoomID: "r1"})
	q.Enqueue(key, QueueEntry{UserID: "alice", RoomID: "r2"})

	_, ok := q.DequeueOther(key, "alice")
	assert.False(t, ok)

	// Another player still matches the oldest entry.
	got, ok := q.DequeueOther(key, "bob")
	require.True(t, ok)
	assert.Equal(t, "r1", got.RoomID)
}

func TestQueueSelfEntrySkippedNotConsumed(t *testing.T) {
	q := NewMatchmakingQueue()
	key := tttKey("10")
	q.Enqueue(key, QueueEntry{UserID: "alice", RoomID: "r1"})
	q.Enqueue(key, QueueEntry{UserID: "bob", RoomID: "r2"})

	got, ok := q.DequeueOther(key, "alice")
	require.True(t, ok)
	assert.Equal(t, "bob", got.UserID)

	// Alice's own entry is still queued for someone else.
	got, ok = q.DequeueOther(key, "bob")
	require.True(t, ok)
	assert.Equal(t, "alice", got.UserID)
}

func TestQueueRemoveUserAcrossKeys(t *testing.T) {
	q := NewMatchmakingQueue()
	q.Enqueue(tttKey("10"), QueueEntry{UserID: "alice", RoomID: "r1"})
	q.Enqueue(tttKey("20"), QueueEntry{UserID: "alice", RoomID: "r2"})
	q.Enqueue(tttKey("20"), QueueEntry{UserID: "bob", RoomID: "r3"})

	removed := q.RemoveUser("alice")
	require.Len(t, removed, 2)

	_, ok := q.DequeueOther(tttKey("10"), "bob")
	assert.False(t, ok)

	got, ok := q.DequeueOther(tttKey("20"), "alice")
	require.True(t, ok)
	assert.Equal(t, "bob", got.UserID)
}
