package models

import "time"

// UserRoundPick is a user's set of predictions for one round.
// TotalPoints, CorrectWinners and ExactScores are derived from MatchPicks.
type UserRoundPick struct {
	ID             int        `json:"id" db:"id"`
	UserID         int        `json:"user_id" db:"user_id"`
	RoundID        int        `json:"round_id" db:"round_id"`
	IsDraft        bool       `json:"is_draft" db:"is_draft"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	TotalPoints    int        `json:"total_points" db:"total_points"`
	CorrectWinners int        `json:"correct_winners" db:"correct_winners"`
	ExactScores    int        `json:"exact_scores" db:"exact_scores"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	MatchPicks []MatchPick `json:"match_picks" db:"-"`
}

type MatchPick struct {
	ID                int    `json:"id" db:"id"`
	UserRoundPickID   int    `json:"user_round_pick_id" db:"user_round_pick_id"`
	MatchID           int    `json:"match_id" db:"match_id"`
	PredictedWinner   string `json:"predicted_winner" db:"predicted_winner"`
	PredictedSetsWon  int    `json:"predicted_sets_won" db:"predicted_sets_won"`
	PredictedSetsLost int    `json:"predicted_sets_lost" db:"predicted_sets_lost"`
	IsWinnerCorrect   *bool  `json:"is_winner_correct,omitempty" db:"is_winner_correct"`
	IsExactScore      *bool  `json:"is_exact_score,omitempty" db:"is_exact_score"`
	PointsEarned      int    `json:"points_earned" db:"points_earned"`

	// Заполняется при выборке по матчу (JOIN user_round_picks)
	UserID int `json:"-" db:"-"`
}

// IsScored reports whether the match behind the prediction has been scored.
func (p *MatchPick) IsScored() bool {
	return p.IsWinnerCorrect != nil
}

// PickTotals is the aggregate row of a UserRoundPick.
type PickTotals struct {
	TotalPoints    int `json:"total_points"`
	CorrectWinners int `json:"correct_winners"`
	ExactScores    int `json:"exact_scores"`
}
