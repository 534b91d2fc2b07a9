package models

// LeaderboardEntry is one row of the winners ranking: a user and how many
// games they decisively won.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Wins     int64  `json:"wins"`
}
