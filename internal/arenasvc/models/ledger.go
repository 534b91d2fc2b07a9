package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerType string

const (
	LedgerDeposit        LedgerType = "deposit"
	LedgerWithdraw       LedgerType = "withdraw"
	LedgerLock           LedgerType = "lock"
	LedgerUnlock         LedgerType = "unlock"
	LedgerPayout         LedgerType = "payout"
	LedgerFee            LedgerType = "fee"
	LedgerReferralReward LedgerType = "referral_reward"
)

type LedgerStatus string

const (
	LedgerCompleted LedgerStatus = "completed"
	LedgerPending   LedgerStatus = "pending"
)

// LedgerEntry is the immutable audit record of a single balance mutation and
// the sole mechanism by which balances change.
type LedgerEntry struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	Type      LedgerType      `json:"type"`
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Status    LedgerStatus    `json:"status"`
	RoomID    *string         `json:"room_id,omitempty"`
	Meta      string          `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
