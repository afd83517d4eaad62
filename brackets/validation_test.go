package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dosada05/bracket-picks/models"
)

func knownMatch() *models.Match {
	return &models.Match{MatchNumber: 1, Player1Name: strPtr("Sinner"), Player2Name: strPtr("Zverev")}
}

func TestValidatePrediction(t *testing.T) {
	tests := []struct {
		name     string
		match    *models.Match
		format   models.TournamentFormat
		winner   string
		won      int
		lost     int
		wantFail bool
	}{
		{"best of 5 straight sets", knownMatch(), models.FormatBestOf5, "Sinner", 3, 0, false},
		{"best of 5 five setter", knownMatch(), models.FormatBestOf5, "Zverev", 3, 2, false},
		{"best of 3", knownMatch(), models.FormatBestOf3, "Sinner", 2, 1, false},
		{"winner not a player", knownMatch(), models.FormatBestOf5, "Djokovic", 3, 0, true},
		{"too few sets won", knownMatch(), models.FormatBestOf5, "Sinner", 2, 0, true},
		{"too many sets lost", knownMatch(), models.FormatBestOf3, "Sinner", 2, 2, true},
		{"negative sets lost", knownMatch(), models.FormatBestOf3, "Sinner", 2, -1, true},
		{"tbd player", &models.Match{Player1Name: strPtr("Sinner"), Player2Name: strPtr(models.PlayerTBD)}, models.FormatBestOf3, "Sinner", 2, 0, true},
		{"unknown player", &models.Match{Player1Name: strPtr("Sinner")}, models.FormatBestOf3, "Sinner", 2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrediction(tt.match, tt.format, tt.winner, tt.won, tt.lost)
			if tt.wantFail {
				assert.ErrorIs(t, err, ErrInvalidPrediction)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateResult(t *testing.T) {
	tests := []struct {
		name      string
		format    models.TournamentFormat
		winner    string
		won, lost int
		wantFail  bool
	}{
		{"completed best of 5", models.FormatBestOf5, "Sinner", 3, 1, false},
		{"straight sets best of 3", models.FormatBestOf3, "Zverev", 2, 0, false},
		{"incomplete set count", models.FormatBestOf5, "Sinner", 2, 1, true},
		{"winner holds no sets", models.FormatBestOf3, "Sinner", 0, 1, true},
		{"level set count", models.FormatBestOf3, "Sinner", 1, 1, true},
		{"no sets played", models.FormatBestOf3, "Sinner", 0, 0, true},
		{"loser holds winning sets", models.FormatBestOf3, "Sinner", 2, 2, true},
		{"three sets won in best of 3", models.FormatBestOf3, "Sinner", 3, 0, true},
		{"negative sets lost", models.FormatBestOf3, "Sinner", 2, -1, true},
		{"winner not in match", models.FormatBestOf3, "Medvedev", 2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResult(knownMatch(), tt.format, tt.winner, tt.won, tt.lost)
			if tt.wantFail {
				assert.ErrorIs(t, err, ErrInvalidResult)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "3-1", FormatScore(3, 1, false))
	assert.Equal(t, "2-1 ret.", FormatScore(2, 1, true))
}
