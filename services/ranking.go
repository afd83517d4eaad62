package services

import (
	"sort"
	"strconv"
	"time"

	"github.com/Dosada05/bracket-picks/brackets"
	"github.com/Dosada05/bracket-picks/models"
)

// DefaultProgressionTopN is how many leaders a progression follows when no users are requested.
const DefaultProgressionTopN = 5

// entryLess is the leaderboard order: points desc, earliest submission asc (missing last), user id asc.
// No two distinct users compare equal.
func entryLess(a, b *models.LeaderboardEntry) bool {
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	as, bs := a.EarliestSubmission, b.EarliestSubmission
	switch {
	case as != nil && bs != nil && !as.Equal(*bs):
		return as.Before(*bs)
	case as != nil && bs == nil:
		return true
	case as == nil && bs != nil:
		return false
	}
	return a.UserID < b.UserID
}

// RankEntries sorts the aggregated rows, fills the derived rates and assigns rank = position.
func RankEntries(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	ranked := make([]models.LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.Slice(ranked, func(i, j int) bool { return entryLess(&ranked[i], &ranked[j]) })

	for i := range ranked {
		e := &ranked[i]
		e.Rank = i + 1
		e.Accuracy, e.ExactScoreRate = 0, 0
		if e.TotalPredictions > 0 {
			e.Accuracy = float64(e.CorrectWinners) / float64(e.TotalPredictions)
			e.ExactScoreRate = float64(e.ExactScores) / float64(e.TotalPredictions)
		}
	}
	return ranked
}

type ProgressionInput struct {
	TournamentID int
	// Finalized matches in finalize order.
	Matches []models.Match
	Scored  []models.ScoredPick
	// Earliest final submission per user, the leaderboard tie-break.
	Submitted map[int]*time.Time
	UserIDs   []int
	TopN      int
	ByRound   bool
}

// BuildProgression replays the finalized matches in order and records, after every match
// (or every round), the cumulative points and the cumulative rank of each followed user.
// Ranks are taken among everyone with a scored final prediction and break ties the way the
// leaderboard does, so the last point matches the final standings.
func BuildProgression(in ProgressionInput) models.Progression {
	pointsByMatch := make(map[int]map[int]int)
	participants := make(map[int]bool)
	for _, sp := range in.Scored {
		participants[sp.UserID] = true
		if pointsByMatch[sp.MatchID] == nil {
			pointsByMatch[sp.MatchID] = make(map[int]int)
		}
		pointsByMatch[sp.MatchID][sp.UserID] += sp.PointsEarned
	}

	users := make([]int, 0, len(participants))
	for id := range participants {
		users = append(users, id)
	}
	sort.Ints(users)

	followed := in.UserIDs
	if len(followed) == 0 {
		followed = topUsers(users, in.Matches, pointsByMatch, in.Submitted, in.TopN)
	}

	out := models.Progression{TournamentID: in.TournamentID, UserIDs: followed, Points: make([]models.ProgressionPoint, 0)}
	cumulative := make(map[int]int, len(users))

	snapshot := func(label string, roundNumber int, matchID *int) {
		ranks := rankByPoints(users, cumulative, in.Submitted)
		point := models.ProgressionPoint{Label: label, RoundNumber: roundNumber, MatchID: matchID, Users: make([]models.ProgressionUser, 0, len(followed))}
		for _, id := range followed {
			point.Users = append(point.Users, models.ProgressionUser{UserID: id, CumulativePoints: cumulative[id], Rank: ranks[id]})
		}
		out.Points = append(out.Points, point)
	}

	if in.ByRound {
		byRound := make(map[int][]models.Match)
		roundNumbers := make([]int, 0)
		for _, m := range in.Matches {
			if _, ok := byRound[m.RoundNumber]; !ok {
				roundNumbers = append(roundNumbers, m.RoundNumber)
			}
			byRound[m.RoundNumber] = append(byRound[m.RoundNumber], m)
		}
		sort.Ints(roundNumbers)
		for _, rn := range roundNumbers {
			for _, m := range byRound[rn] {
				for uid, p := range pointsByMatch[m.ID] {
					cumulative[uid] += p
				}
			}
			snapshot("R"+strconv.Itoa(rn), rn, nil)
		}
		return out
	}

	for _, m := range in.Matches {
		for uid, p := range pointsByMatch[m.ID] {
			cumulative[uid] += p
		}
		snapshot(brackets.MatchUID(m.RoundNumber, m.MatchNumber), m.RoundNumber, intPtr(m.ID))
	}
	return out
}

// rankByPoints returns each user's position in leaderboard order for the given points.
func rankByPoints(users []int, points map[int]int, submitted map[int]*time.Time) map[int]int {
	entries := make([]models.LeaderboardEntry, len(users))
	for i, id := range users {
		entries[i] = models.LeaderboardEntry{UserID: id, TotalPoints: points[id], EarliestSubmission: submitted[id]}
	}
	sort.Slice(entries, func(i, j int) bool { return entryLess(&entries[i], &entries[j]) })
	ranks := make(map[int]int, len(entries))
	for i, e := range entries {
		ranks[e.UserID] = i + 1
	}
	return ranks
}

func topUsers(users []int, matches []models.Match, pointsByMatch map[int]map[int]int, submitted map[int]*time.Time, n int) []int {
	if n <= 0 {
		n = DefaultProgressionTopN
	}
	final := make(map[int]int, len(users))
	for _, m := range matches {
		for uid, p := range pointsByMatch[m.ID] {
			final[uid] += p
		}
	}
	ranks := rankByPoints(users, final, submitted)
	top := make([]int, len(users))
	copy(top, users)
	sort.Slice(top, func(i, j int) bool { return ranks[top[i]] < ranks[top[j]] })
	if len(top) > n {
		top = top[:n]
	}
	return top
}
