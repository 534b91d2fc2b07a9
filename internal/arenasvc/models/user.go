package models

import "time"

// User represents the users table in the database.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	ReferralCode string    `json:"referral_code"`
	ReferredBy   *string   `json:"referred_by,omitempty"` // set at most once, never changed
	IsBanned     bool      `json:"is_banned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
