package models

import "time"

// ScoringRule holds the points a round awards. It is stored with the round and read at scoring time.
type ScoringRule struct {
	PointsPerWinner  int `json:"points_per_winner" db:"points_per_winner"`
	PointsExactScore int `json:"points_exact_score" db:"points_exact_score"`
}

type Round struct {
	ID                  int         `json:"id" db:"id"`
	TournamentID        int         `json:"tournament_id" db:"tournament_id"`
	RoundNumber         int         `json:"round_number" db:"round_number"`
	Name                string      `json:"name" db:"name"`
	MatchCount          int         `json:"match_count" db:"match_count"`
	IsActive            bool        `json:"is_active" db:"is_active"`
	IsFinalized         bool        `json:"is_finalized" db:"is_finalized"`
	OpensAt             *time.Time  `json:"opens_at,omitempty" db:"opens_at"`
	Deadline            *time.Time  `json:"deadline,omitempty" db:"deadline"`
	SubmissionsClosedAt *time.Time  `json:"submissions_closed_at,omitempty" db:"submissions_closed_at"`
	ScoringRule         ScoringRule `json:"scoring_rule" db:"-"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`

	Matches []Match `json:"matches,omitempty" db:"-"`
}

// IsFinal reports whether the round is the last one of the bracket.
func (r *Round) IsFinal() bool {
	return r.MatchCount == 1
}
