package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletAsset holds one (user, asset) balance pair. Rows are created lazily
// on first wallet access and only ever mutated together with a ledger entry.
type WalletAsset struct {
	ID               int64           `json:"id"`
	UserID           string          `json:"user_id"`
	Asset            string          `json:"asset"`
	BalanceAvailable decimal.Decimal `json:"balance_available"`
	BalanceLocked    decimal.Decimal `json:"balance_locked"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
