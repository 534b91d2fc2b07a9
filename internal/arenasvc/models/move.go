package models

import (
	"encoding/json"
	"time"
)

// Move is an append-only log entry for one applied game move.
type Move struct {
	ID        int64           `json:"id"`
	RoomID    string          `json:"room_id"`
	PlayerID  string          `json:"player_id"`
	Move      json.RawMessage `json:"move"`
	CreatedAt time.Time       `json:"created_at"`
}
