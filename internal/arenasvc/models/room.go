package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type GameType string

const (
	GameChess     GameType = "chess"
	GameTicTacToe GameType = "tictactoe"
)

type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomActive    RoomStatus = "active"
	RoomEnded     RoomStatus = "ended"
	RoomCancelled RoomStatus = "cancelled"
)

// RoomPhase tracks whether play has begun and stakes are locked. A room is
// "pending" from creation until StartGame commits the initial game state and
// both stake locks, after which it is "started".
type RoomPhase string

const (
	PhasePending RoomPhase = "pending"
	PhaseStarted RoomPhase = "started"
)

// Room is one game session between two players with an associated stake.
// Status transitions are monotonic: waiting -> active -> ended|cancelled.
type Room struct {
	ID          string          `json:"id"`
	GameType    GameType        `json:"game_type"`
	StakeAsset  string          `json:"stake_asset"`
	StakeAmount decimal.Decimal `json:"stake_amount"`
	Status      RoomStatus      `json:"status"`
	Phase       RoomPhase       `json:"phase"`
	Player1ID   string          `json:"player1_id"`
	Player2ID   *string         `json:"player2_id,omitempty"`
	WinnerID    *string         `json:"winner_id,omitempty"` // nil on draw
	GameState   json.RawMessage `json:"game_state,omitempty"`
	IsPrivate   bool            `json:"is_private"`
	InviteCode  *string         `json:"invite_code,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Terminal reports whether the room reached an immutable final status.
func (r *Room) Terminal() bool {
	return r.Status == RoomEnded || r.Status == RoomCancelled
}

// Players returns the seated player ids, one or two entries.
func (r *Room) Players() []string {
	ids := []string{r.Player1ID}
	if r.Player2ID != nil {
		ids = append(ids, *r.Player2ID)
	}
	return ids
}
