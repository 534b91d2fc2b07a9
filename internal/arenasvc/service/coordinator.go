package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofrs/uuid"
	guuid "github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/stakearena/arena-services/internal/arenasvc/game"
	"github.com/stakearena/arena-services/internal/arenasvc/models"
	"github.com/stakearena/arena-services/internal/arenasvc/store"
)

// inviteCodeAttempts bounds invite-code allocation. Exhausting the retries
// fails loudly instead of handing out a room without a working code.
const inviteCodeAttempts = 5

// GameEnd describes a terminal room outcome for broadcasting.
type GameEnd struct {
	RoomID       string
	StakeAsset   string
	WinnerUserID *string // nil on draw
	Reason       string
	Settlement   *Settlement
}

// MoveOutcome is the result of a successfully applied move.
type MoveOutcome struct {
	Room   *models.Room
	BySide game.Side
	Move   json.RawMessage
	State  game.State
	End    *GameEnd
}

// Coordinator owns the room lifecycle. Every mutating operation runs in one
// store transaction with the room row locked, which is what keeps racing
// terminal events (a winning move vs. a disconnect resignation) from both
// settling the same room.
type Coordinator struct {
	store  store.Store
	queue  *MatchmakingQueue
	settle *SettlementEngine
}

func NewCoordinator(s store.Store, settle *SettlementEngine) *Coordinator {
	return &Coordinator{
		store:  s,
		queue:  NewMatchmakingQueue(),
		settle: settle,
	}
}

func sideFor(room *models.Room, userID string) (game.Side, error) {
	if room.Player1ID == userID {
		return game.SideP1, nil
	}
	if room.Player2ID != nil && *room.Player2ID == userID {
		return game.SideP2, nil
	}
	return "", E(KindNotInRoom, "user is not a player in room %s", room.ID)
}

func winnerIDFor(room *models.Room, side game.Side) (string, error) {
	if side == game.SideP1 {
		return room.Player1ID, nil
	}
	if room.Player2ID == nil {
		return "", E(KindStateConflict, "room %s is missing the second player", room.ID)
	}
	return *room.Player2ID, nil
}

func mapNotFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return E(KindNotFound, format, args...)
	}
	return err
}

func newInviteCode() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8]), nil
}

// CreateRoom opens a waiting room with the caller as player1. Private rooms
// get a unique invite code.
func (c *Coordinator) CreateRoom(ctx context.Context, userID string, gameType models.GameType, stakeAsset string, stakeAmount decimal.Decimal, isPrivate bool) (*models.Room, error) {
	if stakeAmount.LessThanOrEqual(decimal.Zero) {
		return nil, E(KindValidation, "stake amount must be positive")
	}
	if stakeAsset == "" {
		return nil, E(KindValidation, "stake asset is required")
	}
	if _, ok := game.ForType(gameType); !ok {
		return nil, E(KindValidation, "unsupported game type %q", gameType)
	}

	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		room := &models.Room{
			ID:          guuid.NewString(),
			GameType:    gameType,
			StakeAsset:  stakeAsset,
			StakeAmount: stakeAmount,
			Status:      models.RoomWaiting,
			Phase:       models.PhasePending,
			Player1ID:   userID,
			IsPrivate:   isPrivate,
		}
		if isPrivate {
			code, err := newInviteCode()
			if err != nil {
				return nil, err
			}
			room.InviteCode = &code
		}

		err := c.store.WithinTx(ctx, func(tx store.Tx) error {
			return tx.InsertRoom(ctx, room)
		})
		if errors.Is(err, store.ErrDuplicate) {
			log.Warnf("room insert collided, retrying (attempt %d)", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return room, nil
	}
	return nil, E(KindInternal, "could not allocate a unique invite code")
}

// Room loads a room without locking it.
func (c *Coordinator) Room(ctx context.Context, roomID string) (*models.Room, error) {
	var room *models.Room
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		room, err = tx.Room(ctx, roomID)
		return mapNotFound(err, "room %s not found", roomID)
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoom seats userID as player2 and activates the room. Rejoining a room
// you already own is idempotent while it is still waiting; once the room has
// left the waiting state nobody can join, the owner included.
func (c *Coordinator) JoinRoom(ctx context.Context, userID, roomID string) (*models.Room, error) {
	var room *models.Room
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		room, err = tx.RoomForUpdate(ctx, roomID)
		if err != nil {
			return mapNotFound(err, "room %s not found", roomID)
		}
		if room.Status != models.RoomWaiting {
			return E(KindStateConflict, "room %s is not joinable", roomID)
		}
		if room.Player1ID == userID {
			return nil
		}
		if room.Player2ID != nil {
			return E(KindStateConflict, "room %s is full", roomID)
		}
		room.Player2ID = &userID
		room.Status = models.RoomActive
		return tx.UpdateRoom(ctx, room)
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoomByInviteCode resolves a private room's code and joins it.
func (c *Coordinator) JoinRoomByInviteCode(ctx context.Context, userID, code string) (*models.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, E(KindValidation, "invite code is required")
	}
	var roomID string
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		roomID, err = tx.RoomIDByInviteCode(ctx, code)
		return mapNotFound(err, "invite code not found")
	})
	if err != nil {
		return nil, err
	}
	return c.JoinRoom(ctx, userID, roomID)
}

// JoinRandom matches the caller against the oldest compatible waiting
// player, or opens a fresh public room and queues it. matched=false means
// the caller is now waiting.
func (c *Coordinator) JoinRandom(ctx context.Context, userID string, gameType models.GameType, stakeAsset string, stakeAmount decimal.Decimal) (*models.Room, bool, error) {
	key := QueueKey{GameType: gameType, StakeAsset: stakeAsset, StakeAmount: stakeAmount.String()}

	for {
		entry, ok := c.queue.DequeueOther(key, userID)
		if !ok {
			break
		}
		room, err := c.JoinRoom(ctx, userID, entry.RoomID)
		if err != nil {
			// Stale entry: the room was cancelled or filled since it was
			// queued. Try the next candidate.
			if k := KindOf(err); k == KindNotFound || k == KindStateConflict {
				log.Infof("skipping stale queue entry for room %s: %v", entry.RoomID, err)
				continue
			}
			return nil, false, err
		}
		return room, true, nil
	}

	room, err := c.CreateRoom(ctx, userID, gameType, stakeAsset, stakeAmount, false)
	if err != nil {
		return nil, false, err
	}
	c.queue.Enqueue(key, QueueEntry{UserID: userID, RoomID: room.ID, EnqueuedAt: room.CreatedAt})
	return room, false, nil
}

// StartGame seeds the initial engine state and locks both players' stakes
// in one atomic scope. Calling it again on a started room returns the room
// unchanged; stakes are never locked twice.
func (c *Coordinator) StartGame(ctx context.Context, roomID string) (*models.Room, error) {
	var room *models.Room
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		room, err = tx.RoomForUpdate(ctx, roomID)
		if err != nil {
			return mapNotFound(err, "room %s not found", roomID)
		}
		if room.Status != models.RoomActive {
			return E(KindStateConflict, "room %s is not active", roomID)
		}
		if room.Player2ID == nil {
			return E(KindStateConflict, "room %s is missing the second player", roomID)
		}
		if room.Phase == models.PhaseStarted {
			return nil
		}

		engine, ok := game.ForType(room.GameType)
		if !ok {
			return E(KindValidation, "unsupported game type %q", room.GameType)
		}
		state, err := engine.Create()
		if err != nil {
			return err
		}
		raw, err := json.Marshal(state)
		if err != nil {
			return err
		}
		room.GameState = raw
		room.Phase = models.PhaseStarted
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}

		// Both locks in the same transaction: a failure on either side
		// rolls back the state write and the first lock.
		if err := lockForGame(ctx, tx, room.Player1ID, room.StakeAsset, room.StakeAmount, room.ID); err != nil {
			return err
		}
		return lockForGame(ctx, tx, *room.Player2ID, room.StakeAsset, room.StakeAmount, room.ID)
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ApplyMove runs one move through the game engine and persists the result.
// A terminal outcome flips the room to ended and settles it before the
// transaction commits.
func (c *Coordinator) ApplyMove(ctx context.Context, roomID, userID string, move json.RawMessage) (*MoveOutcome, error) {
	var outcome *MoveOutcome
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		room, err := tx.RoomForUpdate(ctx, roomID)
		if err != nil {
			return mapNotFound(err, "room %s not found", roomID)
		}
		if room.Status != models.RoomActive {
			return E(KindStateConflict, "room %s is not active", roomID)
		}
		if room.Player2ID == nil {
			return E(KindStateConflict, "room %s is missing the second player", roomID)
		}
		if room.Phase != models.PhaseStarted || room.GameState == nil {
			return E(KindStateConflict, "game in room %s has not started", roomID)
		}

		side, err := sideFor(room, userID)
		if err != nil {
			return err
		}
		engine, ok := game.ForType(room.GameType)
		if !ok {
			return E(KindValidation, "unsupported game type %q", room.GameType)
		}

		var state game.State
		if err := json.Unmarshal(room.GameState, &state); err != nil {
			return err
		}
		result, err := engine.ApplyMove(state, side, move)
		if err != nil {
			var ruleErr *game.RuleError
			if errors.As(err, &ruleErr) {
				return E(KindStateConflict, "%s", ruleErr.Reason)
			}
			return err
		}

		if err := tx.InsertMove(ctx, &models.Move{RoomID: room.ID, PlayerID: userID, Move: move}); err != nil {
			return err
		}
		raw, err := json.Marshal(result.State)
		if err != nil {
			return err
		}
		room.GameState = raw

		outcome = &MoveOutcome{Room: room, BySide: side, Move: move, State: result.State}
		if result.End == nil {
			return tx.UpdateRoom(ctx, room)
		}

		if result.End.WinnerSide != "" {
			winnerID, err := winnerIDFor(room, result.End.WinnerSide)
			if err != nil {
				return err
			}
			room.WinnerID = &winnerID
		}
		room.Status = models.RoomEnded
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}

		settlement, err := c.settle.Settle(ctx, tx, room)
		if err != nil {
			return err
		}
		outcome.End = &GameEnd{
			RoomID:       room.ID,
			StakeAsset:   room.StakeAsset,
			WinnerUserID: room.WinnerID,
			Reason:       result.End.Reason,
			Settlement:   settlement,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Resign ends the game in the opponent's favor and settles immediately.
func (c *Coordinator) Resign(ctx context.Context, roomID, userID, reason string) (*GameEnd, error) {
	if reason == "" {
		reason = game.ReasonResign
	}
	var end *GameEnd
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		room, err := tx.RoomForUpdate(ctx, roomID)
		if err != nil {
			return mapNotFound(err, "room %s not found", roomID)
		}
		if room.Status != models.RoomActive {
			return E(KindStateConflict, "room %s is not active", roomID)
		}
		if room.Phase != models.PhaseStarted {
			return E(KindStateConflict, "game in room %s has not started", roomID)
		}
		if room.Player2ID == nil {
			return E(KindStateConflict, "room %s is missing the second player", roomID)
		}

		side, err := sideFor(room, userID)
		if err != nil {
			return err
		}
		winnerID, err := winnerIDFor(room, side.Other())
		if err != nil {
			return err
		}

		room.WinnerID = &winnerID
		room.Status = models.RoomEnded
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}

		settlement, err := c.settle.Settle(ctx, tx, room)
		if err != nil {
			return err
		}
		end = &GameEnd{
			RoomID:       room.ID,
			StakeAsset:   room.StakeAsset,
			WinnerUserID: room.WinnerID,
			Reason:       reason,
			Settlement:   settlement,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return end, nil
}

// CancelRoom aborts a room that never finished. Stakes locked at start are
// unlocked back to available; no fee, no payout. Cancelling a terminal room
// is a no-op.
func (c *Coordinator) CancelRoom(ctx context.Context, roomID, reason string) error {
	return c.store.WithinTx(ctx, func(tx store.Tx) error {
		room, err := tx.RoomForUpdate(ctx, roomID)
		if err != nil {
			return mapNotFound(err, "room %s not found", roomID)
		}
		if room.Terminal() {
			return nil
		}

		wasStarted := room.Phase == models.PhaseStarted
		room.Status = models.RoomCancelled
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}
		log.Infof("room %s cancelled: %s", roomID, reason)

		if wasStarted && room.Player2ID != nil {
			if err := unlockFromGame(ctx, tx, room.Player1ID, room.StakeAsset, room.StakeAmount, room.ID); err != nil {
				return err
			}
			return unlockFromGame(ctx, tx, *room.Player2ID, room.StakeAsset, room.StakeAmount, room.ID)
		}
		return nil
	})
}

// HandleDisconnect cleans up after a dropped connection: queued entries are
// removed and their rooms cancelled (refunding anything already locked),
// then every room where the user is an active player is resigned on their
// behalf. The room-row status guard makes the forfeit fire at most once
// even when disconnect signals race.
func (c *Coordinator) HandleDisconnect(ctx context.Context, userID string) []GameEnd {
	for _, entry := range c.queue.RemoveUser(userID) {
		if err := c.CancelRoom(ctx, entry.RoomID, "creator_disconnected"); err != nil {
			log.Errorf("failed to cancel queued room %s: %v", entry.RoomID, err)
		}
	}

	var roomIDs []string
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		roomIDs, err = tx.ActiveRoomIDsForUser(ctx, userID)
		return err
	})
	if err != nil {
		log.Errorf("failed to list active rooms for %s: %v", userID, err)
		return nil
	}

	var ends []GameEnd
	for _, roomID := range roomIDs {
		end, err := c.Resign(ctx, roomID, userID, game.ReasonDisconnect)
		if err != nil {
			// Already ended or cancelled by a racing event.
			if KindOf(err) == KindStateConflict {
				continue
			}
			log.Errorf("failed to forfeit room %s: %v", roomID, err)
			continue
		}
		ends = append(ends, *end)
	}
	return ends
}
