package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
	"github.com/stakearena/arena-services/internal/arenasvc/store"
)

const (
	DefaultFeeBps      int64 = 500
	DefaultReferralBps int64 = 1000
)

var tenThousand = decimal.NewFromInt(10_000)

// SettlementConfig holds the platform rates in basis points.
type SettlementConfig struct {
	FeeBps      int64
	ReferralBps int64
}

// Settlement is the balance distribution applied when a room ends.
type Settlement struct {
	Payout         decimal.Decimal
	Fee            decimal.Decimal
	ReferralReward decimal.Decimal // total across both participants
	Draw           bool
}

// SettlementEngine applies the distribution exactly once per room, always
// inside the coordinator's ending transaction: the status flip to ended
// happens under the same row lock, so a second terminal event can never
// settle again.
type SettlementEngine struct {
	cfg SettlementConfig
}

func NewSettlementEngine(cfg SettlementConfig) *SettlementEngine {
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBps
	}
	if cfg.ReferralBps == 0 {
		cfg.ReferralBps = DefaultReferralBps
	}
	return &SettlementEngine{cfg: cfg}
}

func bpsShare(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Div(tenThousand)
}

// Settle distributes the pot for a room that just reached a terminal
// outcome. room.WinnerID must already be resolved (nil = draw). Any
// precondition failure aborts the enclosing transaction with no partial
// mutation.
func (s *SettlementEngine) Settle(ctx context.Context, tx store.Tx, room *models.Room) (*Settlement, error) {
	if room.Player2ID == nil {
		return nil, E(KindStateConflict, "room %s has no second player to settle", room.ID)
	}
	stake := room.StakeAmount
	if stake.LessThanOrEqual(decimal.Zero) {
		return nil, E(KindValidation, "room %s has non-positive stake", room.ID)
	}

	p1 := room.Player1ID
	p2 := *room.Player2ID

	// Draw: both stakes go back to available, no fee, no payout.
	if room.WinnerID == nil {
		for _, userID := range []string{p1, p2} {
			if err := unlockFromGame(ctx, tx, userID, room.StakeAsset, stake, room.ID); err != nil {
				return nil, err
			}
		}
		return &Settlement{Payout: stake, Draw: true}, nil
	}

	winnerID := *room.WinnerID
	loserID := p1
	if winnerID == p1 {
		loserID = p2
	} else if winnerID != p2 {
		return nil, E(KindStateConflict, "winner %s is not a participant of room %s", winnerID, room.ID)
	}

	pot := stake.Mul(decimal.NewFromInt(2))
	fee := bpsShare(pot, s.cfg.FeeBps)
	payout := pot.Sub(fee)

	winnerWA, err := tx.WalletAssetForUpdate(ctx, winnerID, room.StakeAsset)
	if err != nil {
		return nil, err
	}
	loserWA, err := tx.WalletAssetForUpdate(ctx, loserID, room.StakeAsset)
	if err != nil {
		return nil, err
	}
	if winnerWA.BalanceLocked.LessThan(stake) || loserWA.BalanceLocked.LessThan(stake) {
		return nil, E(KindLockUnderflow, "locked stake missing for room %s", room.ID)
	}

	// Both stakes are consumed into the pot, not unlocked back to available.
	winnerWA.BalanceLocked = winnerWA.BalanceLocked.Sub(stake)
	winnerWA.BalanceAvailable = winnerWA.BalanceAvailable.Add(payout)
	loserWA.BalanceLocked = loserWA.BalanceLocked.Sub(stake)

	if err := tx.UpdateWalletAsset(ctx, winnerWA); err != nil {
		return nil, err
	}
	if err := tx.UpdateWalletAsset(ctx, loserWA); err != nil {
		return nil, err
	}

	entries := []*models.LedgerEntry{
		{UserID: winnerID, Type: models.LedgerPayout, Asset: room.StakeAsset, Amount: payout, Status: models.LedgerCompleted, RoomID: &room.ID},
		// The fee stays with the platform; the entry is the audit record.
		{UserID: winnerID, Type: models.LedgerFee, Asset: room.StakeAsset, Amount: fee, Status: models.LedgerCompleted, RoomID: &room.ID},
	}
	for _, e := range entries {
		if err := tx.InsertLedgerEntry(ctx, e); err != nil {
			return nil, err
		}
	}

	referralTotal, err := s.payReferrals(ctx, tx, room, fee, []string{p1, p2})
	if err != nil {
		return nil, err
	}

	return &Settlement{Payout: payout, Fee: fee, ReferralReward: referralTotal}, nil
}

// payReferrals pays each participant's referrer a share of the platform
// fee. The share is half the fee times the referral rate, regardless of
// which participant won. A referrer without a wallet asset for the stake's
// asset is skipped, so a decisive game yields 0, 1 or 2 referral payouts.
func (s *SettlementEngine) payReferrals(ctx context.Context, tx store.Tx, room *models.Room, fee decimal.Decimal, participants []string) (decimal.Decimal, error) {
	share := bpsShare(fee.Div(decimal.NewFromInt(2)), s.cfg.ReferralBps)
	total := decimal.Zero
	if share.LessThanOrEqual(decimal.Zero) {
		return total, nil
	}

	for _, fromUserID := range participants {
		user, err := tx.User(ctx, fromUserID)
		if err != nil {
			return total, fmt.Errorf("failed to load participant %s: %w", fromUserID, err)
		}
		if user.ReferredBy == nil {
			continue
		}
		refWA, err := tx.WalletAssetIfExists(ctx, *user.ReferredBy, room.StakeAsset)
		if err != nil {
			return total, err
		}
		if refWA == nil {
			continue
		}

		refWA.BalanceAvailable = refWA.BalanceAvailable.Add(share)
		if err := tx.UpdateWalletAsset(ctx, refWA); err != nil {
			return total, err
		}
		if err := tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
			UserID: *user.ReferredBy,
			Type:   models.LedgerReferralReward,
			Asset:  room.StakeAsset,
			Amount: share,
			Status: models.LedgerCompleted,
			RoomID: &room.ID,
			Meta:   fmt.Sprintf(`{"from_user_id":%q}`, fromUserID),
		}); err != nil {
			return total, err
		}
		if err := tx.InsertReferralReward(ctx, &models.ReferralReward{
			ReferrerID: *user.ReferredBy,
			FromUserID: fromUserID,
			Asset:      room.StakeAsset,
			Amount:     share,
			RoomID:     room.ID,
		}); err != nil {
			return total, err
		}
		total = total.Add(share)
	}
	return total, nil
}
