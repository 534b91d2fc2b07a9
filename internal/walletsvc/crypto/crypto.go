// Package crypto abstracts the chain-side of deposits and withdrawals.
// The real providers live outside this repo; the mock adapter stands in for
// them with deterministic addresses and instant confirmations.
package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Adapter is one supported asset's gateway to its chain.
type Adapter interface {
	Asset() string
	// DepositAddress returns the user's receiving address for this asset.
	DepositAddress(userID string) (string, error)
	// BroadcastWithdrawal submits a withdrawal and returns the provider's
	// transaction id.
	BroadcastWithdrawal(ctx context.Context, userID, address string, amount decimal.Decimal) (string, error)
}

var adapters = map[string]Adapter{
	"USDT": &MockAdapter{asset: "USDT"},
	"ETH":  &MockAdapter{asset: "ETH"},
	"POL":  &MockAdapter{asset: "POL"},
}

// ForAsset returns the adapter for an asset symbol.
func ForAsset(asset string) (Adapter, bool) {
	a, ok := adapters[strings.ToUpper(asset)]
	return a, ok
}

// Assets lists the supported asset symbols.
func Assets() []string {
	out := make([]string, 0, len(adapters))
	for asset := range adapters {
		out = append(out, asset)
	}
	return out
}

// MockAdapter derives stable fake addresses and accepts every withdrawal.
type MockAdapter struct {
	asset string
}

func (m *MockAdapter) Asset() string { return m.asset }

func (m *MockAdapter) DepositAddress(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	sum := sha256.Sum256([]byte(m.asset + ":" + userID))
	return "0x" + hex.EncodeToString(sum[:20]), nil
}

func (m *MockAdapter) BroadcastWithdrawal(ctx context.Context, userID, address string, amount decimal.Decimal) (string, error) {
	if address == "" {
		return "", fmt.Errorf("destination address is required")
	}
	sum := sha256.Sum256([]byte(m.asset + ":" + userID + ":" + address + ":" + amount.String()))
	return "0x" + hex.EncodeToString(sum[:16]), nil
}
