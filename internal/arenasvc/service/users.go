package service

import (
	"context"
	"strings"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
	"github.com/stakearena/arena-services/internal/arenasvc/store"
)

// UserService reads user records and manages the write-once referral link.
// Credential issuance lives outside this system; only verification-adjacent
// lookups happen here.
type UserService struct {
	store store.Store
}

func NewUserService(s store.Store) *UserService {
	return &UserService{store: s}
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.User(ctx, userID)
		return mapNotFound(err, "user %s not found", userID)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

const leaderboardSize = 20

// Leaderboard ranks the top winners by decisively won games. Draws and
// cancelled rooms never count.
func (s *UserService) Leaderboard(ctx context.Context) ([]*models.LeaderboardEntry, error) {
	var entries []*models.LeaderboardEntry
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		entries, err = tx.TopWinners(ctx, leaderboardSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AttachReferrer links userID to the owner of the referral code. The link
// is set at most once and never changed.
func (s *UserService) AttachReferrer(ctx context.Context, userID, code string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, E(KindValidation, "referral code is required")
	}

	var user *models.User
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.User(ctx, userID)
		if err != nil {
			return mapNotFound(err, "user %s not found", userID)
		}
		if user.ReferredBy != nil {
			return E(KindStateConflict, "referrer already set")
		}
		referrer, err := tx.UserByReferralCode(ctx, code)
		if err != nil {
			return mapNotFound(err, "referral code not found")
		}
		if referrer.ID == userID {
			return E(KindValidation, "cannot refer yourself")
		}
		if err := tx.SetReferredBy(ctx, userID, referrer.ID); err != nil {
			return err
		}
		user.ReferredBy = &referrer.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
