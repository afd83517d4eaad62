package services

import (
	"context"
	"errors"

	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/repositories"
)

// ComputeStreak folds a user's scored predictions, already in bracket history order,
// into the streak row. A correct winner extends the current streak, a miss resets it.
func ComputeStreak(userID int, events []models.StreakEvent) models.UserStreak {
	s := models.UserStreak{UserID: userID}
	for _, ev := range events {
		if ev.IsWinnerCorrect {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 0
		}
		if s.CurrentStreak > s.LongestStreak {
			s.LongestStreak = s.CurrentStreak
		}
		s.LastMatchID = intPtr(ev.MatchID)
	}
	return s
}

func sameStreak(a, b *models.UserStreak) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.CurrentStreak != b.CurrentStreak || a.LongestStreak != b.LongestStreak {
		return false
	}
	if a.LastMatchID == nil || b.LastMatchID == nil {
		return a.LastMatchID == b.LastMatchID
	}
	return *a.LastMatchID == *b.LastMatchID
}

// refoldStreaks recomputes each user's streak from source rows. An unchanged fold is not rewritten.
func refoldStreaks(
	ctx context.Context,
	exec repositories.SQLExecutor,
	pickRepo repositories.PickRepository,
	streakRepo repositories.StreakRepository,
	userIDs []int,
) error {
	for _, userID := range userIDs {
		events, err := pickRepo.ListUserStreakEvents(ctx, exec, userID)
		if err != nil {
			return err
		}
		next := ComputeStreak(userID, events)

		current, err := streakRepo.Get(ctx, exec, userID)
		if err != nil && !errors.Is(err, repositories.ErrStreakNotFound) {
			return err
		}
		if current != nil && sameStreak(current, &next) {
			continue
		}
		if err := streakRepo.Upsert(ctx, exec, &next); err != nil {
			return err
		}
	}
	return nil
}

// scoredUsers returns the distinct users of picks already ordered by user.
func scoredUsers(picks []models.ScoredPick) []int {
	users := make([]int, 0)
	for _, p := range picks {
		if n := len(users); n == 0 || users[n-1] != p.UserID {
			users = append(users, p.UserID)
		}
	}
	return users
}
