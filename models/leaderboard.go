package models

import "time"

type LeaderboardScope string

const (
	ScopeGlobal     LeaderboardScope = "global"
	ScopeTournament LeaderboardScope = "tournament"
	ScopeRound      LeaderboardScope = "round"
)

type LeaderboardEntry struct {
	Rank               int        `json:"rank"`
	UserID             int        `json:"user_id"`
	TotalPoints        int        `json:"total_points"`
	CorrectWinners     int        `json:"correct_winners"`
	ExactScores        int        `json:"exact_scores"`
	TotalPredictions   int        `json:"total_predictions"`
	Accuracy           float64    `json:"accuracy"`
	ExactScoreRate     float64    `json:"exact_score_rate"`
	EarliestSubmission *time.Time `json:"earliest_submission,omitempty"`
}

type Leaderboard struct {
	Scope        LeaderboardScope   `json:"scope"`
	TournamentID *int               `json:"tournament_id,omitempty"`
	RoundID      *int               `json:"round_id,omitempty"`
	Entries      []LeaderboardEntry `json:"entries"`
}

type UserStats struct {
	UserID       int               `json:"user_id"`
	TournamentID *int              `json:"tournament_id,omitempty"`
	Entry        *LeaderboardEntry `json:"entry,omitempty"`
	Streak       UserStreak        `json:"streak"`
}

// ScoredPick is one scored final prediction used to build the progression series.
type ScoredPick struct {
	UserID       int
	MatchID      int
	PointsEarned int
}

type ProgressionUser struct {
	UserID           int `json:"user_id"`
	CumulativePoints int `json:"cumulative_points"`
	Rank             int `json:"rank"`
}

type ProgressionPoint struct {
	Label       string            `json:"label"`
	RoundNumber int               `json:"round_number"`
	MatchID     *int              `json:"match_id,omitempty"`
	Users       []ProgressionUser `json:"users"`
}

type Progression struct {
	TournamentID int                `json:"tournament_id"`
	UserIDs      []int              `json:"user_ids"`
	Points       []ProgressionPoint `json:"points"`
}

type MatchPickComparison struct {
	Match      Match      `json:"match"`
	ViewerPick *MatchPick `json:"viewer_pick,omitempty"`
	OtherPick  *MatchPick `json:"other_pick,omitempty"`
}

type RoundPickComparison struct {
	RoundID      int                   `json:"round_id"`
	RoundNumber  int                   `json:"round_number"`
	RoundName    string                `json:"round_name"`
	ViewerPoints int                   `json:"viewer_points"`
	OtherPoints  int                   `json:"other_points"`
	Matches      []MatchPickComparison `json:"matches"`
}
