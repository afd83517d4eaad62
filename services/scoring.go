package services

import "github.com/Dosada05/bracket-picks/models"

// ScorePick grades one prediction against a finalized match with the round's stored rule.
// The result depends only on its arguments, so scoring the same match again yields the same fields.
func ScorePick(pick models.MatchPick, match *models.Match, rule models.ScoringRule) models.MatchPick {
	winnerCorrect := match.WinnerName != nil && pick.PredictedWinner == *match.WinnerName
	exact := winnerCorrect &&
		match.SetsWon != nil && match.SetsLost != nil &&
		pick.PredictedSetsWon == *match.SetsWon &&
		pick.PredictedSetsLost == *match.SetsLost

	points := 0
	if winnerCorrect {
		points += rule.PointsPerWinner
	}
	if exact {
		points += rule.PointsExactScore
	}

	pick.IsWinnerCorrect = boolPtr(winnerCorrect)
	pick.IsExactScore = boolPtr(exact)
	pick.PointsEarned = points
	return pick
}

// TotalsFromMatchPicks folds a round pick's predictions into its aggregate row.
// Unscored predictions count for nothing.
func TotalsFromMatchPicks(picks []models.MatchPick) models.PickTotals {
	var totals models.PickTotals
	for _, p := range picks {
		if !p.IsScored() {
			continue
		}
		totals.TotalPoints += p.PointsEarned
		if *p.IsWinnerCorrect {
			totals.CorrectWinners++
		}
		if p.IsExactScore != nil && *p.IsExactScore {
			totals.ExactScores++
		}
	}
	return totals
}
