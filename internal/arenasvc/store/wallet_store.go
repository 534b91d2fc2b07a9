package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
)

const walletAssetColumns = `id, user_id, asset, balance_available, balance_locked, created_at, updated_at`

func scanWalletAsset(row pgx.Row) (*models.WalletAsset, error) {
	wa := &models.WalletAsset{}
	err := row.Scan(
		&wa.ID,
		&wa.UserID,
		&wa.Asset,
		&wa.BalanceAvailable,
		&wa.BalanceLocked,
		&wa.CreatedAt,
		&wa.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return wa, nil
}

// WalletAssetForUpdate returns the (user, asset) row locked for the rest of
// the transaction, creating it with zero balances on first access.
func (t *pgTx) WalletAssetForUpdate(ctx context.Context, userID, asset string) (*models.WalletAsset, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO wallet_assets (user_id, asset)
		VALUES ($1, $2)
		ON CONFLICT (user_id, asset) DO NOTHING
	`, userID, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure wallet asset: %w", err)
	}

	query := `SELECT ` + walletAssetColumns + `
		FROM wallet_assets WHERE user_id = $1 AND asset = $2 FOR UPDATE`
	wa, err := scanWalletAsset(t.tx.QueryRow(ctx, query, userID, asset))
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet asset: %w", err)
	}
	return wa, nil
}

func (t *pgTx) WalletAssetIfExists(ctx context.Context, userID, asset string) (*models.WalletAsset, error) {
	query := `SELECT ` + walletAssetColumns + `
		FROM wallet_assets WHERE user_id = $1 AND asset = $2 FOR UPDATE`
	wa, err := scanWalletAsset(t.tx.QueryRow(ctx, query, userID, asset))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet asset: %w", err)
	}
	return wa, nil
}

func (t *pgTx) WalletAssets(ctx context.Context, userID string) ([]*models.WalletAsset, error) {
	query := `SELECT ` + walletAssetColumns + `
		FROM wallet_assets WHERE user_id = $1 ORDER BY asset`
	rows, err := t.tx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.WalletAsset
	for rows.Next() {
		wa, err := scanWalletAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, wa)
	}
	return assets, rows.Err()
}

func (t *pgTx) UpdateWalletAsset(ctx context.Context, wa *models.WalletAsset) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE wallet_assets
		SET balance_available = $2, balance_locked = $3, updated_at = NOW()
		WHERE id = $1
	`, wa.ID, wa.BalanceAvailable, wa.BalanceLocked)
	if err != nil {
		return fmt.Errorf("failed to update wallet asset: %w", err)
	}
	return nil
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (user_id, type, asset, amount, status, room_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, entry.UserID, entry.Type, entry.Asset, entry.Amount, entry.Status, entry.RoomID, entry.Meta,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (t *pgTx) InsertReferralReward(ctx context.Context, reward *models.ReferralReward) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO referral_rewards (referrer_id, from_user_id, asset, amount, room_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, reward.ReferrerID, reward.FromUserID, reward.Asset, reward.Amount, reward.RoomID,
	).Scan(&reward.ID, &reward.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert referral reward: %w", err)
	}
	return nil
}
