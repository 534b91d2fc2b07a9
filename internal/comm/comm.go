package comm

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
)

// WSMessage is the envelope for every websocket frame, both directions.
// Ref is an optional client correlation id echoed back on the response.
type WSMessage struct {
	Type string          `json:"type"` // e.g. "create_room", "move"
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorBody is the payload of a "error" frame.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// client -> server payloads

type CreateRoomPayload struct {
	GameType    models.GameType `json:"game_type"`
	StakeAsset  string          `json:"stake_asset"`
	StakeAmount decimal.Decimal `json:"stake_amount"`
	IsPrivate   bool            `json:"is_private"`
}

type JoinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type JoinByCodePayload struct {
	InviteCode string `json:"invite_code"`
}

type JoinRandomPayload struct {
	GameType    models.GameType `json:"game_type"`
	StakeAsset  string          `json:"stake_asset"`
	StakeAmount decimal.Decimal `json:"stake_amount"`
}

type MovePayload struct {
	RoomID string          `json:"room_id"`
	Move   json.RawMessage `json:"move"`
}

type ResignPayload struct {
	RoomID string `json:"room_id"`
}

// server -> client payloads

type RoomData struct {
	Room *models.Room `json:"room"`
}

// WaitingData tells a join_random caller they are queued, not matched.
type WaitingData struct {
	Room    *models.Room `json:"room"`
	Waiting bool         `json:"waiting"`
}

// StartGameData is sent per player so YourSide is correct on each socket.
type StartGameData struct {
	RoomID      string          `json:"room_id"`
	GameType    models.GameType `json:"game_type"`
	YourSide    string          `json:"your_side"`
	OpponentID  string          `json:"opponent_id"`
	StakeAsset  string          `json:"stake_asset"`
	StakeAmount decimal.Decimal `json:"stake_amount"`
	State       json.RawMessage `json:"state"`
}

type MoveData struct {
	RoomID string          `json:"room_id"`
	BySide string          `json:"by_side"`
	Move   json.RawMessage `json:"move"`
	State  json.RawMessage `json:"state"`
}

type Payout struct {
	Asset                string `json:"asset"`
	Amount               string `json:"amount"`
	FeeAmount            string `json:"fee_amount"`
	ReferralRewardAmount string `json:"referral_reward_amount"`
}

type GameEndData struct {
	RoomID       string  `json:"room_id"`
	WinnerUserID *string `json:"winner_user_id,omitempty"` // nil on draw
	Reason       string  `json:"reason"`
	Draw         bool    `json:"draw"`
	Payout       *Payout `json:"payout,omitempty"`
}

type RoomCancelledData struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

// RoomEvent fans a frame out over NATS so every gateway instance can
// deliver it to whichever sockets it holds. An empty TargetUserID means
// both players of the room.
type RoomEvent struct {
	RoomID       string    `json:"room_id"`
	TargetUserID string    `json:"target_user_id,omitempty"`
	Message      WSMessage `json:"message"`
}
