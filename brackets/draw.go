package brackets

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Dosada05/bracket-picks/models"
)

var ErrInvalidDraw = errors.New("invalid draw")

// RoundName returns the display name of a round by its match count.
func RoundName(matchCount int) string {
	switch matchCount {
	case 1:
		return "Final"
	case 2:
		return "Semifinals"
	case 4:
		return "Quarterfinals"
	default:
		return fmt.Sprintf("Round of %d", matchCount*2)
	}
}

func invalidDraw(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidDraw, fmt.Sprintf(format, args...))
}

// ValidateDraw checks the shape of a parsed draw: contiguous round numbers from 1,
// power-of-two match counts halving each round, match numbers 1..N and a named first round.
// Rounds may stop before the Final; ExpandDraw fills in the rest.
func ValidateDraw(draw models.ParsedDraw) error {
	if strings.TrimSpace(draw.TournamentName) == "" {
		return invalidDraw("tournament name is required")
	}
	if draw.Format != "" && !draw.Format.IsValid() {
		return invalidDraw("unknown format %q", draw.Format)
	}
	if len(draw.Rounds) == 0 {
		return invalidDraw("draw has no rounds")
	}

	rounds := sortedRounds(draw.Rounds)
	prevCount := 0
	for i, round := range rounds {
		if round.RoundNumber != i+1 {
			return invalidDraw("round numbers must be contiguous from 1, got %d at position %d", round.RoundNumber, i+1)
		}
		n := len(round.Matches)
		if !IsPowerOfTwo(n) {
			return invalidDraw("round %d has %d matches, expected a power of two", round.RoundNumber, n)
		}
		if prevCount != 0 && n*2 != prevCount {
			return invalidDraw("round %d has %d matches, expected %d", round.RoundNumber, n, prevCount/2)
		}
		prevCount = n

		seen := make(map[int]bool, n)
		for _, m := range round.Matches {
			if m.MatchNumber < 1 || m.MatchNumber > n {
				return invalidDraw("round %d: match number %d out of range 1..%d", round.RoundNumber, m.MatchNumber, n)
			}
			if seen[m.MatchNumber] {
				return invalidDraw("round %d: duplicate match number %d", round.RoundNumber, m.MatchNumber)
			}
			seen[m.MatchNumber] = true

			if round.RoundNumber == 1 {
				if strings.TrimSpace(m.Player1Name) == "" || strings.TrimSpace(m.Player2Name) == "" {
					return invalidDraw("round 1: match %d must name both players", m.MatchNumber)
				}
			}
			if m.Player1Seed != nil && *m.Player1Seed <= 0 || m.Player2Seed != nil && *m.Player2Seed <= 0 {
				return invalidDraw("round %d: match %d has a non-positive seed", round.RoundNumber, m.MatchNumber)
			}
		}
	}
	return nil
}

// ExpandDraw returns the draw sorted by round and match number, with every missing
// round down to the Final appended as TBD matches and empty round names filled in.
func ExpandDraw(draw models.ParsedDraw) models.ParsedDraw {
	out := draw
	out.Rounds = sortedRounds(draw.Rounds)

	for i := range out.Rounds {
		matches := make([]models.ParsedMatch, len(out.Rounds[i].Matches))
		copy(matches, out.Rounds[i].Matches)
		sort.Slice(matches, func(a, b int) bool { return matches[a].MatchNumber < matches[b].MatchNumber })
		out.Rounds[i].Matches = matches
		if strings.TrimSpace(out.Rounds[i].Name) == "" {
			out.Rounds[i].Name = RoundName(len(matches))
		}
	}

	if len(out.Rounds) == 0 {
		return out
	}
	last := out.Rounds[len(out.Rounds)-1]
	for n, r := len(last.Matches)/2, last.RoundNumber+1; n >= 1; n, r = n/2, r+1 {
		round := models.ParsedRound{RoundNumber: r, Name: RoundName(n), Matches: make([]models.ParsedMatch, 0, n)}
		for m := 1; m <= n; m++ {
			round.Matches = append(round.Matches, models.ParsedMatch{
				MatchNumber: m,
				Player1Name: models.PlayerTBD,
				Player2Name: models.PlayerTBD,
			})
		}
		out.Rounds = append(out.Rounds, round)
	}
	return out
}

func sortedRounds(rounds []models.ParsedRound) []models.ParsedRound {
	out := make([]models.ParsedRound, len(rounds))
	copy(out, rounds)
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out
}
