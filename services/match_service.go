package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/bracket-picks/brackets"
	"github.com/Dosada05/bracket-picks/metrics"
	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/repositories"
)

type FinalizeMatchInput struct {
	WinnerName   string `json:"winner_name"`
	FinalScore   string `json:"final_score"`
	SetsWon      int    `json:"sets_won"`
	SetsLost     int    `json:"sets_lost"`
	IsRetirement bool   `json:"is_retirement"`
}

type FinalizeResult struct {
	Match          *models.Match `json:"match"`
	Replayed       bool          `json:"replayed"`
	Advanced       bool          `json:"advanced"`
	PicksScored    int           `json:"picks_scored"`
	RoundFinalized bool          `json:"round_finalized"`
}

type RecalculationReport struct {
	TournamentID    int  `json:"tournament_id"`
	RoundsProcessed int  `json:"rounds_processed"`
	MatchesRescored int  `json:"matches_rescored"`
	PicksRescored   int  `json:"picks_rescored"`
	UsersRefreshed  int  `json:"users_refreshed"`
	FailedRound     *int `json:"failed_round,omitempty"`
}

type MatchService interface {
	FinalizeMatch(ctx context.Context, adminID, matchID int, input FinalizeMatchInput) (*FinalizeResult, error)
	UpdateScoringRule(ctx context.Context, roundID int, rule models.ScoringRule) (*models.Round, error)
	RecalculateRound(ctx context.Context, roundID int) (*RecalculationReport, error)
	RecalculateTournament(ctx context.Context, tournamentID int) (*RecalculationReport, error)
}

type matchService struct {
	tx             repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	pickRepo       repositories.PickRepository
	streakRepo     repositories.StreakRepository
	bracketService BracketService
	leaderboards   *leaderboardInvalidator
	publisher      EventPublisher
	logger         *slog.Logger
	now            func() time.Time
}

func NewMatchService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	pickRepo repositories.PickRepository,
	streakRepo repositories.StreakRepository,
	bracketService BracketService,
	cache LeaderboardCache,
	publisher EventPublisher,
	logger *slog.Logger,
) MatchService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &matchService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		pickRepo:       pickRepo,
		streakRepo:     streakRepo,
		bracketService: bracketService,
		leaderboards:   newLeaderboardInvalidator(cache, logger),
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
	}
}

// FinalizeMatch records a result and, in the same transaction, advances the winner, scores every
// final prediction, refolds the affected streaks and closes the round once nothing is pending.
// Re-sending the identical result replays the pipeline; a different result is a conflict.
func (s *matchService) FinalizeMatch(ctx context.Context, adminID, matchID int, input FinalizeMatchInput) (*FinalizeResult, error) {
	result := &FinalizeResult{}
	var tournamentID int

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.LockByID(ctx, exec, matchID)
		if err != nil {
			return mapRepoError(err)
		}
		round, err := s.roundRepo.GetByID(ctx, exec, match.RoundID)
		if err != nil {
			return mapRepoError(err)
		}
		t, err := s.tournamentRepo.GetByID(ctx, exec, round.TournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		if t.IsDeleted() {
			return ErrTournamentNotFound
		}
		if t.Status == models.StatusArchived {
			return fmt.Errorf("%w: tournament %d is archived", ErrTournamentNotActive, t.ID)
		}
		tournamentID = t.ID

		if match.IsFinalized() {
			if !sameResult(match, input) {
				return fmt.Errorf("%w: match %d won by %s %s", ErrMatchResultConflict, match.ID, derefString(match.WinnerName), derefString(match.FinalScore))
			}
			result.Replayed = true
		} else {
			if err := brackets.ValidateResult(match, t.Format, input.WinnerName, input.SetsWon, input.SetsLost); err != nil {
				return wrapCategory(ErrIntegrity, err)
			}
			score := input.FinalScore
			if score == "" {
				score = brackets.FormatScore(input.SetsWon, input.SetsLost, input.IsRetirement)
			}
			now := s.now().UTC()
			match.WinnerName = &input.WinnerName
			match.FinalScore = &score
			match.SetsWon = intPtr(input.SetsWon)
			match.SetsLost = intPtr(input.SetsLost)
			match.IsRetirement = input.IsRetirement
			match.FinalizedAt = &now
			match.FinalizedBy = intPtr(adminID)
			if err := s.matchRepo.Finalize(ctx, exec, match); err != nil {
				return mapRepoError(err)
			}
		}

		advanced, err := s.bracketService.PropagateWinner(ctx, exec, match, round)
		if err != nil {
			return err
		}
		result.Advanced = advanced

		scored, users, err := s.scoreMatch(ctx, exec, match, round)
		if err != nil {
			return err
		}
		result.PicksScored = scored

		if err := refoldStreaks(ctx, exec, s.pickRepo, s.streakRepo, users); err != nil {
			return err
		}

		closed, err := s.finalizeRoundIfDone(ctx, exec, round)
		if err != nil {
			return err
		}
		result.RoundFinalized = closed
		result.Match = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		metrics.MatchesFinalized.Inc()
	}
	s.logger.Info("match finalized",
		slog.Int("tournament_id", tournamentID),
		slog.Int("match_id", matchID),
		slog.Int("admin_id", adminID),
		slog.Bool("replayed", result.Replayed),
		slog.Int("picks_scored", result.PicksScored),
		slog.Bool("round_finalized", result.RoundFinalized),
	)

	s.leaderboards.invalidate(ctx)
	s.publisher.PublishTournamentEvent(tournamentID, brackets.MessageMatchFinalized, result)
	s.publisher.PublishTournamentEvent(tournamentID, brackets.MessageLeaderboardUpdated, map[string]int{"tournament_id": tournamentID})
	return result, nil
}

func sameResult(m *models.Match, in FinalizeMatchInput) bool {
	if derefString(m.WinnerName) != in.WinnerName || m.IsRetirement != in.IsRetirement {
		return false
	}
	if m.SetsWon == nil || m.SetsLost == nil || *m.SetsWon != in.SetsWon || *m.SetsLost != in.SetsLost {
		return false
	}
	return in.FinalScore == "" || in.FinalScore == derefString(m.FinalScore)
}

// scoreMatch grades every final prediction for the match and recomputes the totals of each
// touched round pick from its predictions. It returns the graded count and the affected users.
func (s *matchService) scoreMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, round *models.Round) (int, []int, error) {
	picks, err := s.pickRepo.ListScorableByMatch(ctx, exec, match.ID)
	if err != nil {
		return 0, nil, err
	}

	touched := make(map[int]bool)
	userSet := make(map[int]bool)
	for i := range picks {
		scored := ScorePick(picks[i], match, round.ScoringRule)
		if err := s.pickRepo.UpdateMatchPickScore(ctx, exec, &scored); err != nil {
			return 0, nil, err
		}
		touched[scored.UserRoundPickID] = true
		userSet[scored.UserID] = true
	}

	pickIDs := make([]int, 0, len(touched))
	for id := range touched {
		pickIDs = append(pickIDs, id)
	}
	sort.Ints(pickIDs)
	for _, id := range pickIDs {
		mps, err := s.pickRepo.ListMatchPicks(ctx, exec, id)
		if err != nil {
			return 0, nil, err
		}
		if err := s.pickRepo.UpdateTotals(ctx, exec, id, TotalsFromMatchPicks(mps)); err != nil {
			return 0, nil, err
		}
	}

	users := make([]int, 0, len(userSet))
	for id := range userSet {
		users = append(users, id)
	}
	sort.Ints(users)

	metrics.PicksScored.Add(float64(len(picks)))
	return len(picks), users, nil
}

func (s *matchService) finalizeRoundIfDone(ctx context.Context, exec repositories.SQLExecutor, round *models.Round) (bool, error) {
	if round.IsFinalized {
		return false, nil
	}
	pending, err := s.matchRepo.CountPendingInRound(ctx, exec, round.ID)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}
	if err := s.roundRepo.SetFinalized(ctx, exec, round.ID, true); err != nil {
		return false, mapRepoError(err)
	}
	round.IsFinalized = true
	return true, nil
}

// UpdateScoringRule stores a new rule for the round. Existing scores stay as they are until
// RecalculateRound or RecalculateTournament is run.
func (s *matchService) UpdateScoringRule(ctx context.Context, roundID int, rule models.ScoringRule) (*models.Round, error) {
	if rule.PointsPerWinner < 0 || rule.PointsExactScore < 0 {
		return nil, ErrInvalidScoringRule
	}
	round, err := s.roundRepo.GetByID(ctx, nil, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if err := s.roundRepo.UpdateScoringRule(ctx, nil, roundID, rule); err != nil {
		return nil, mapRepoError(err)
	}
	round.ScoringRule = rule
	s.logger.Info("scoring rule updated",
		slog.Int("round_id", roundID),
		slog.Int("points_per_winner", rule.PointsPerWinner),
		slog.Int("points_exact_score", rule.PointsExactScore),
	)
	return round, nil
}

func (s *matchService) RecalculateRound(ctx context.Context, roundID int) (*RecalculationReport, error) {
	round, err := s.roundRepo.GetByID(ctx, nil, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	report := &RecalculationReport{TournamentID: round.TournamentID}
	if err := s.recalculateRound(ctx, round.ID, report); err != nil {
		return report, err
	}
	s.leaderboards.invalidate(ctx)
	s.publisher.PublishTournamentEvent(round.TournamentID, brackets.MessageLeaderboardUpdated, report)
	return report, nil
}

// RecalculateTournament rescores every round in its own transaction, in round order.
// A failure leaves the rounds before it rescored.
func (s *matchService) RecalculateTournament(ctx context.Context, tournamentID int) (*RecalculationReport, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if t.IsDeleted() {
		return nil, ErrTournamentNotFound
	}
	rounds, err := s.roundRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds of tournament %d: %w", tournamentID, err)
	}

	report := &RecalculationReport{TournamentID: tournamentID}
	for _, round := range rounds {
		if err := s.recalculateRound(ctx, round.ID, report); err != nil {
			report.FailedRound = intPtr(round.RoundNumber)
			s.leaderboards.invalidate(ctx)
			return report, fmt.Errorf("recalculation of tournament %d stopped at round %d: %w", tournamentID, round.RoundNumber, err)
		}
	}
	s.leaderboards.invalidate(ctx)
	s.publisher.PublishTournamentEvent(tournamentID, brackets.MessageLeaderboardUpdated, report)
	return report, nil
}

func (s *matchService) recalculateRound(ctx context.Context, roundID int, report *RecalculationReport) error {
	var matchesRescored, picksRescored, usersRefreshed int
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		matchesRescored, picksRescored, usersRefreshed = 0, 0, 0
		round, err := s.roundRepo.GetByID(ctx, exec, roundID)
		if err != nil {
			return mapRepoError(err)
		}
		matches, err := s.matchRepo.ListByRound(ctx, exec, roundID)
		if err != nil {
			return err
		}

		userSet := make(map[int]bool)
		for i := range matches {
			m := &matches[i]
			if !m.IsFinalized() {
				continue
			}
			scored, users, err := s.scoreMatch(ctx, exec, m, round)
			if err != nil {
				s.logger.Error("rescoring failed",
					slog.Int("tournament_id", round.TournamentID),
					slog.Int("round_id", round.ID),
					slog.Int("match_id", m.ID),
					slog.Any("error", err),
				)
				return err
			}
			matchesRescored++
			picksRescored += scored
			for _, u := range users {
				userSet[u] = true
			}
		}

		users := make([]int, 0, len(userSet))
		for u := range userSet {
			users = append(users, u)
		}
		sort.Ints(users)
		if err := refoldStreaks(ctx, exec, s.pickRepo, s.streakRepo, users); err != nil {
			return err
		}
		usersRefreshed = len(users)

		_, err = s.finalizeRoundIfDone(ctx, exec, round)
		return err
	})
	if err != nil {
		return err
	}

	report.RoundsProcessed++
	report.MatchesRescored += matchesRescored
	report.PicksRescored += picksRescored
	report.UsersRefreshed += usersRefreshed
	s.logger.Info("round recalculated", slog.Int("round_id", roundID), slog.Int("matches", matchesRescored), slog.Int("picks", picksRescored))
	return nil
}
