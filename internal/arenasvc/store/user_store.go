package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
)

const userColumns = `id, username, referral_code, referred_by, is_banned, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.ReferralCode,
		&u.ReferredBy,
		&u.IsBanned,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

func (t *pgTx) User(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTx) UserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`
	return scanUser(t.tx.QueryRow(ctx, query, code))
}

// SetReferredBy links a user to their referrer. The WHERE guard keeps the
// link write-once even if two attach attempts race.
func (t *pgTx) SetReferredBy(ctx context.Context, userID, referrerID string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE users
		SET referred_by = $2, updated_at = NOW()
		WHERE id = $1 AND referred_by IS NULL
	`, userID, referrerID)
	if err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
