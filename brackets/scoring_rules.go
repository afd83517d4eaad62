package brackets

import "github.com/Dosada05/bracket-picks/models"

// BasePointsPerWinner is what a correct winner is worth in round 1 of the default schedule.
const BasePointsPerWinner = 10

// ExactScoreBonus is ceil(pointsPerWinner * 1.5), computed in integers.
func ExactScoreBonus(pointsPerWinner int) int {
	return (pointsPerWinner*3 + 1) / 2
}

// DefaultScoringRule is the progressive schedule: every round is worth more than the one before.
func DefaultScoringRule(roundNumber int) models.ScoringRule {
	if roundNumber < 1 {
		roundNumber = 1
	}
	perWinner := BasePointsPerWinner * roundNumber
	return models.ScoringRule{
		PointsPerWinner:  perWinner,
		PointsExactScore: ExactScoreBonus(perWinner),
	}
}
