package brackets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/bracket-picks/models"
)

func firstRound(n int) models.ParsedRound {
	r := models.ParsedRound{RoundNumber: 1}
	for m := 1; m <= n; m++ {
		r.Matches = append(r.Matches, models.ParsedMatch{
			MatchNumber: m,
			Player1Name: fmt.Sprintf("P%d", 2*m-1),
			Player2Name: fmt.Sprintf("P%d", 2*m),
		})
	}
	return r
}

func TestValidateDraw(t *testing.T) {
	valid := models.ParsedDraw{TournamentName: "Open", Year: 2026, Format: models.FormatBestOf5, Rounds: []models.ParsedRound{firstRound(8)}}
	require.NoError(t, ValidateDraw(valid))

	tests := []struct {
		name   string
		mutate func(d *models.ParsedDraw)
	}{
		{"empty name", func(d *models.ParsedDraw) { d.TournamentName = " " }},
		{"no rounds", func(d *models.ParsedDraw) { d.Rounds = nil }},
		{"bad format", func(d *models.ParsedDraw) { d.Format = "best_of_7" }},
		{"not power of two", func(d *models.ParsedDraw) { d.Rounds = []models.ParsedRound{firstRound(6)} }},
		{"gap in rounds", func(d *models.ParsedDraw) { d.Rounds[0].RoundNumber = 2 }},
		{"duplicate match number", func(d *models.ParsedDraw) { d.Rounds[0].Matches[1].MatchNumber = 1 }},
		{"empty first round slot", func(d *models.ParsedDraw) { d.Rounds[0].Matches[3].Player2Name = "" }},
		{"negative seed", func(d *models.ParsedDraw) { d.Rounds[0].Matches[0].Player1Seed = intPtr(-1) }},
		{"wrong second round size", func(d *models.ParsedDraw) {
			r := firstRound(2)
			r.RoundNumber = 2
			d.Rounds = append(d.Rounds, r)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			d.Rounds = []models.ParsedRound{firstRound(8)}
			tt.mutate(&d)
			assert.ErrorIs(t, ValidateDraw(d), ErrInvalidDraw)
		})
	}
}

func TestExpandDraw_AppendsTBDRoundsToFinal(t *testing.T) {
	draw := models.ParsedDraw{TournamentName: "Open", Rounds: []models.ParsedRound{firstRound(16)}}
	out := ExpandDraw(draw)

	require.Len(t, out.Rounds, 5)
	assert.Equal(t, "Round of 32", out.Rounds[0].Name)
	assert.Equal(t, "Round of 16", out.Rounds[1].Name)
	assert.Equal(t, "Quarterfinals", out.Rounds[2].Name)
	assert.Equal(t, "Semifinals", out.Rounds[3].Name)
	assert.Equal(t, "Final", out.Rounds[4].Name)

	assert.Len(t, out.Rounds[1].Matches, 8)
	for _, m := range out.Rounds[4].Matches {
		assert.Equal(t, models.PlayerTBD, m.Player1Name)
		assert.Equal(t, models.PlayerTBD, m.Player2Name)
	}
	assert.Len(t, draw.Rounds, 1, "input is not modified")
}

func TestExpandDraw_SortsMatches(t *testing.T) {
	r := firstRound(2)
	r.Matches[0], r.Matches[1] = r.Matches[1], r.Matches[0]
	r.Name = "Semis"
	out := ExpandDraw(models.ParsedDraw{TournamentName: "x", Rounds: []models.ParsedRound{r}})
	require.Len(t, out.Rounds, 2)
	assert.Equal(t, 1, out.Rounds[0].Matches[0].MatchNumber)
	assert.Equal(t, "Semis", out.Rounds[0].Name)
}
