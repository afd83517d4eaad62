package models

import "time"

type UserStreak struct {
	UserID        int       `json:"user_id" db:"user_id"`
	CurrentStreak int       `json:"current_streak" db:"current_streak"`
	LongestStreak int       `json:"longest_streak" db:"longest_streak"`
	LastMatchID   *int      `json:"last_match_id,omitempty" db:"last_match_id"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// StreakEvent is one scored prediction of a user, in bracket history order.
type StreakEvent struct {
	MatchID         int
	IsWinnerCorrect bool
}
