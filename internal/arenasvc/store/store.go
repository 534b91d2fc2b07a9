// Package store provides transactional persistence for users, wallets,
// rooms, moves, ledger entries and referral rewards. The Store/Tx pair is
// the atomic-scope contract every mutating service operation runs inside;
// the Postgres implementation backs it with one pgx transaction and
// SELECT ... FOR UPDATE row locking.
package store

import (
	"context"
	"errors"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned by inserts that hit a unique constraint.
var ErrDuplicate = errors.New("store: duplicate")

// Store opens atomic units of work. A fn error rolls the unit back; the
// caller never observes a partially applied state.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is one open atomic unit. *ForUpdate lookups take a row lock so that
// read-then-write sequences on the same row serialize.
type Tx interface {
	// users
	User(ctx context.Context, id string) (*models.User, error)
	UserByReferralCode(ctx context.Context, code string) (*models.User, error)
	SetReferredBy(ctx context.Context, userID, referrerID string) error

	// rooms and moves
	InsertRoom(ctx context.Context, room *models.Room) error
	Room(ctx context.Context, id string) (*models.Room, error)
	RoomForUpdate(ctx context.Context, id string) (*models.Room, error)
	RoomIDByInviteCode(ctx context.Context, code string) (string, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	InsertMove(ctx context.Context, move *models.Move) error
	ActiveRoomIDsForUser(ctx context.Context, userID string) ([]string, error)
	// TopWinners ranks users by decisively won (ended, non-draw) rooms.
	TopWinners(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)

	// wallets and ledger
	// WalletAssetForUpdate lazily creates the (user, asset) row.
	WalletAssetForUpdate(ctx context.Context, userID, asset string) (*models.WalletAsset, error)
	// WalletAssetIfExists returns (nil, nil) when the row is absent.
	WalletAssetIfExists(ctx context.Context, userID, asset string) (*models.WalletAsset, error)
	WalletAssets(ctx context.Context, userID string) ([]*models.WalletAsset, error)
	UpdateWalletAsset(ctx context.Context, wa *models.WalletAsset) error
	InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	InsertReferralReward(ctx context.Context, reward *models.ReferralReward) error
}
