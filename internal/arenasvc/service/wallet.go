package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
	"github.com/stakearena/arena-services/internal/arenasvc/store"
)

// WalletService is the ledger boundary: the only component allowed to
// mutate balances, and every mutation writes exactly one ledger entry in
// the same atomic scope.
type WalletService struct {
	store store.Store
}

func NewWalletService(s store.Store) *WalletService {
	return &WalletService{store: s}
}

func (s *WalletService) Balances(ctx context.Context, userID string) ([]*models.WalletAsset, error) {
	var assets []*models.WalletAsset
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		assets, err = tx.WalletAssets(ctx, userID)
		return err
	})
	return assets, err
}

// Deposit credits available balance. The confirmation itself is the
// provider's concern; by the time this runs the deposit is final.
func (s *WalletService) Deposit(ctx context.Context, userID, asset string, amount decimal.Decimal, meta string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return E(KindValidation, "deposit amount must be positive")
	}
	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		wa, err := tx.WalletAssetForUpdate(ctx, userID, asset)
		if err != nil {
			return err
		}
		wa.BalanceAvailable = wa.BalanceAvailable.Add(amount)
		if err := tx.UpdateWalletAsset(ctx, wa); err != nil {
			return err
		}
		return tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
			UserID: userID,
			Type:   models.LedgerDeposit,
			Asset:  asset,
			Amount: amount,
			Status: models.LedgerCompleted,
			Meta:   meta,
		})
	})
}

// Withdraw debits available balance and records a pending entry; the
// provider completes or reverses it out of band.
func (s *WalletService) Withdraw(ctx context.Context, userID, asset string, amount decimal.Decimal, meta string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return E(KindValidation, "withdraw amount must be positive")
	}
	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		wa, err := tx.WalletAssetForUpdate(ctx, userID, asset)
		if err != nil {
			return err
		}
		if wa.BalanceAvailable.LessThan(amount) {
			return E(KindInsufficientBalance, "insufficient balance")
		}
		wa.BalanceAvailable = wa.BalanceAvailable.Sub(amount)
		if err := tx.UpdateWalletAsset(ctx, wa); err != nil {
			return err
		}
		return tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
			UserID: userID,
			Type:   models.LedgerWithdraw,
			Asset:  asset,
			Amount: amount,
			Status: models.LedgerPending,
			Meta:   meta,
		})
	})
}

// lockForGame moves stake from available to locked inside the caller's open
// transaction. Lock and unlock never change available+locked, they only
// shift value between the two fields.
func lockForGame(ctx context.Context, tx store.Tx, userID, asset string, amount decimal.Decimal, roomID string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return E(KindValidation, "lock amount must be positive")
	}
	wa, err := tx.WalletAssetForUpdate(ctx, userID, asset)
	if err != nil {
		return err
	}
	if wa.BalanceAvailable.LessThan(amount) {
		return E(KindInsufficientBalance, "insufficient balance to stake")
	}
	wa.BalanceAvailable = wa.BalanceAvailable.Sub(amount)
	wa.BalanceLocked = wa.BalanceLocked.Add(amount)
	if err := tx.UpdateWalletAsset(ctx, wa); err != nil {
		return err
	}
	return tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
		UserID: userID,
		Type:   models.LedgerLock,
		Asset:  asset,
		Amount: amount,
		Status: models.LedgerCompleted,
		RoomID: &roomID,
	})
}

// unlockFromGame releases locked stake back to available. A non-positive
// amount is a no-op.
func unlockFromGame(ctx context.Context, tx store.Tx, userID, asset string, amount decimal.Decimal, roomID string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	wa, err := tx.WalletAssetForUpdate(ctx, userID, asset)
	if err != nil {
		return err
	}
	if wa.BalanceLocked.LessThan(amount) {
		return E(KindLockUnderflow, "locked balance underflow")
	}
	wa.BalanceLocked = wa.BalanceLocked.Sub(amount)
	wa.BalanceAvailable = wa.BalanceAvailable.Add(amount)
	if err := tx.UpdateWalletAsset(ctx, wa); err != nil {
		return err
	}
	return tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
		UserID: userID,
		Type:   models.LedgerUnlock,
		Asset:  asset,
		Amount: amount,
		Status: models.LedgerCompleted,
		RoomID: &roomID,
	})
}
