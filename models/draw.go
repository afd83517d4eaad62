package models

// ParsedDraw is the bracket handed over by the draw parser.
type ParsedDraw struct {
	TournamentName string           `json:"tournament_name"`
	Year           int              `json:"year"`
	Format         TournamentFormat `json:"format"`
	Rounds         []ParsedRound    `json:"rounds"`
}

type ParsedRound struct {
	RoundNumber int           `json:"round_number"`
	Name        string        `json:"name"`
	Matches     []ParsedMatch `json:"matches"`
}

type ParsedMatch struct {
	MatchNumber int    `json:"match_number"`
	Player1Name string `json:"player1_name"`
	Player2Name string `json:"player2_name"`
	Player1Seed *int   `json:"player1_seed,omitempty"`
	Player2Seed *int   `json:"player2_seed,omitempty"`
}
