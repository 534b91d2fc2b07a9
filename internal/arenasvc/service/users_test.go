package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
	"github.com/stakearena/arena-services/internal/arenasvc/store"
)

func TestAttachReferrerOnce(t *testing.T) {
	ms := newMemStore()
	ms.seedUser("alice", nil)
	ms.seedUser("bob", nil)
	ms.seedUser("carol", nil)
	us := NewUserService(ms)
	ctx := context.Background()

	user, err := us.AttachReferrer(ctx, "bob", " alicecode ")
	require.NoError(t, err)
	require.NotNil(t, user.ReferredBy)
	assert.Equal(t, "alice", *user.ReferredBy)

	// Write-once: a second attach is rejected even with a different code.
	_, err = us.AttachReferrer(ctx, "bob", "CAROLCODE")
	assert.Equal(t, KindStateConflict, KindOf(err))

	got, err := us.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", *got.ReferredBy)
}

func TestAttachReferrerRejections(t *testing.T) {
	ms := newMemStore()
	ms.seedUser("alice", nil)
	us := NewUserService(ms)
	ctx := context.Background()

	_, err := us.AttachReferrer(ctx, "alice", "")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = us.AttachReferrer(ctx, "alice", "NOSUCH")
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = us.AttachReferrer(ctx, "alice", "ALICECODE")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = us.AttachReferrer(ctx, "ghost", "ALICECODE")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestLeaderboardCountsDecisiveWinsOnly(t *testing.T) {
	ms := newMemStore()
	ms.seedUser("alice", nil)
	ms.seedUser("bob", nil)
	ms.seedUser("carol", nil)
	us := NewUserService(ms)
	ctx := context.Background()

	seq := 0
	insertRoom := func(status models.RoomStatus, winner *string) {
		seq++
		p2 := "bob"
		err := ms.WithinTx(ctx, func(tx store.Tx) error {
			return tx.InsertRoom(ctx, &models.Room{
				ID:          fmt.Sprintf("room-%d", seq),
				GameType:    models.GameTicTacToe,
				StakeAsset:  "USDT",
				StakeAmount: dec("10"),
				Status:      status,
				Phase:       models.PhaseStarted,
				Player1ID:   "alice",
				Player2ID:   &p2,
				WinnerID:    winner,
			})
		})
		require.NoError(t, err)
	}

	alice, bob := "alice", "bob"
	insertRoom(models.RoomEnded, &alice)
	insertRoom(models.RoomEnded, &alice)
	insertRoom(models.RoomEnded, &bob)
	insertRoom(models.RoomEnded, nil)     // draw
	insertRoom(models.RoomCancelled, nil) // never finished
	insertRoom(models.RoomActive, nil)    // still running

	entries, err := us.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.EqualValues(t, 2, entries[0].Wins)
	assert.Equal(t, "bob", entries[1].UserID)
	assert.EqualValues(t, 1, entries[1].Wins)
}
