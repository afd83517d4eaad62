package brackets

import (
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-picks/models"
)

var (
	ErrInvalidPrediction = errors.New("invalid prediction")
	ErrInvalidResult     = errors.New("invalid match result")
)

// ValidatePrediction checks one prediction against the match and the tournament format.
// The winning set count must be exactly the format's; anything else is rejected, not scored.
func ValidatePrediction(match *models.Match, format models.TournamentFormat, winner string, setsWon, setsLost int) error {
	if !models.PlayerKnown(match.Player1Name) || !models.PlayerKnown(match.Player2Name) {
		return fmt.Errorf("%w: match %d players are not known yet", ErrInvalidPrediction, match.MatchNumber)
	}
	if !match.HasPlayer(winner) {
		return fmt.Errorf("%w: %q is not a player in match %d", ErrInvalidPrediction, winner, match.MatchNumber)
	}
	need := format.SetsToWin()
	if setsWon != need {
		return fmt.Errorf("%w: match %d winner must take %d sets, got %d", ErrInvalidPrediction, match.MatchNumber, need, setsWon)
	}
	if setsLost < 0 || setsLost > setsWon-1 {
		return fmt.Errorf("%w: match %d sets lost must be between 0 and %d, got %d", ErrInvalidPrediction, match.MatchNumber, setsWon-1, setsLost)
	}
	return nil
}

// ValidateResult checks a result entered by an admin. The winner always holds exactly the
// format's set count and the loser strictly fewer; a retirement is recorded as the awarded
// scoreline, the partial score goes into the final score text.
func ValidateResult(match *models.Match, format models.TournamentFormat, winner string, setsWon, setsLost int) error {
	if !models.PlayerKnown(match.Player1Name) || !models.PlayerKnown(match.Player2Name) {
		return fmt.Errorf("%w: match %d players are not known yet", ErrInvalidResult, match.MatchNumber)
	}
	if !match.HasPlayer(winner) {
		return fmt.Errorf("%w: winner %q is not a player in match %d", ErrInvalidResult, winner, match.MatchNumber)
	}
	need := format.SetsToWin()
	if need == 0 {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidResult, format)
	}
	if setsWon < 0 || setsLost < 0 {
		return fmt.Errorf("%w: set counts must not be negative", ErrInvalidResult)
	}
	if setsWon != need {
		return fmt.Errorf("%w: winner must hold %d sets in %s, got %d", ErrInvalidResult, need, format, setsWon)
	}
	if setsLost >= setsWon {
		return fmt.Errorf("%w: sets lost %d must be fewer than sets won %d", ErrInvalidResult, setsLost, setsWon)
	}
	return nil
}

// FormatScore renders a set score when the admin does not supply one.
func FormatScore(setsWon, setsLost int, retirement bool) string {
	s := fmt.Sprintf("%d-%d", setsWon, setsLost)
	if retirement {
		s += " ret."
	}
	return s
}
