package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusFinalized MatchStatus = "finalized"
)

// PlayerTBD is shown for a slot whose player is not known yet.
const PlayerTBD = "TBD"

type Match struct {
	ID           int         `json:"id" db:"id"`
	RoundID      int         `json:"round_id" db:"round_id"`
	MatchNumber  int         `json:"match_number" db:"match_number"`
	Player1Name  *string     `json:"player1_name,omitempty" db:"player1_name"`
	Player1Seed  *int        `json:"player1_seed,omitempty" db:"player1_seed"`
	Player2Name  *string     `json:"player2_name,omitempty" db:"player2_name"`
	Player2Seed  *int        `json:"player2_seed,omitempty" db:"player2_seed"`
	Status       MatchStatus `json:"status" db:"status"`
	WinnerName   *string     `json:"winner_name,omitempty" db:"winner_name"`
	FinalScore   *string     `json:"final_score,omitempty" db:"final_score"`
	SetsWon      *int        `json:"sets_won,omitempty" db:"sets_won"`
	SetsLost     *int        `json:"sets_lost,omitempty" db:"sets_lost"`
	IsRetirement bool        `json:"is_retirement" db:"is_retirement"`
	FinalizedAt  *time.Time  `json:"finalized_at,omitempty" db:"finalized_at"`
	FinalizedBy  *int        `json:"finalized_by,omitempty" db:"finalized_by"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`

	// Заполняется при выборке по турниру (JOIN rounds)
	RoundNumber int `json:"round_number,omitempty" db:"-"`
}

func (m *Match) IsFinalized() bool {
	return m.Status == MatchStatusFinalized
}

// PlayerKnown reports whether a slot holds a real player rather than a placeholder.
func PlayerKnown(name *string) bool {
	return name != nil && *name != "" && *name != PlayerTBD
}

// HasPlayer reports whether name occupies one of the two slots.
func (m *Match) HasPlayer(name string) bool {
	return (PlayerKnown(m.Player1Name) && *m.Player1Name == name) ||
		(PlayerKnown(m.Player2Name) && *m.Player2Name == name)
}

// SeedOf returns the seed of the named player, nil when unseeded or absent.
func (m *Match) SeedOf(name string) *int {
	switch {
	case PlayerKnown(m.Player1Name) && *m.Player1Name == name:
		return m.Player1Seed
	case PlayerKnown(m.Player2Name) && *m.Player2Name == name:
		return m.Player2Seed
	}
	return nil
}
