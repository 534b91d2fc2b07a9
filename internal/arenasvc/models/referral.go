package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralReward records one referral payout: the referrer of a paying
// participant receives a share of the platform fee for a decisive game.
// At most two per room, one per referred participant.
type ReferralReward struct {
	ID         int64           `json:"id"`
	ReferrerID string          `json:"referrer_id"`
	FromUserID string          `json:"from_user_id"`
	Asset      string          `json:"asset"`
	Amount     decimal.Decimal `json:"amount"`
	RoomID     string          `json:"room_id"`
	CreatedAt  time.Time       `json:"created_at"`
}
