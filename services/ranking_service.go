package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/bracket-picks/metrics"
	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/repositories"
)

const (
	leaderboardKeyPrefix  = "leaderboard:"
	DefaultLeaderboardTTL = 5 * time.Minute
)

func globalLeaderboardKey() string { return leaderboardKeyPrefix + "global" }
func tournamentLeaderboardKey(id int) string { return fmt.Sprintf("%stournament:%d", leaderboardKeyPrefix, id) }
func roundLeaderboardKey(id int) string { return fmt.Sprintf("%sround:%d", leaderboardKeyPrefix, id) }

// leaderboardInvalidator drops every cached board. Writers call it after their commit.
type leaderboardInvalidator struct {
	cache  LeaderboardCache
	logger *slog.Logger
}

func newLeaderboardInvalidator(cache LeaderboardCache, logger *slog.Logger) *leaderboardInvalidator {
	if cache == nil {
		cache = noopCache{}
	}
	return &leaderboardInvalidator{cache: cache, logger: logger}
}

func (l *leaderboardInvalidator) invalidate(ctx context.Context) {
	if err := l.cache.DeleteByPrefix(ctx, leaderboardKeyPrefix); err != nil {
		l.logger.Warn("failed to invalidate leaderboard cache", slog.Any("error", err))
	}
}

type RankingService interface {
	GlobalLeaderboard(ctx context.Context) (*models.Leaderboard, error)
	TournamentLeaderboard(ctx context.Context, tournamentID int) (*models.Leaderboard, error)
	RoundLeaderboard(ctx context.Context, roundID int) (*models.Leaderboard, error)
	UserStats(ctx context.Context, userID int, tournamentID *int) (*models.UserStats, error)
	Progression(ctx context.Context, tournamentID int, userIDs []int, topN int, byRound bool) (*models.Progression, error)
	Streak(ctx context.Context, userID int) (*models.UserStreak, error)
}

type rankingService struct {
	tournamentRepo  repositories.TournamentRepository
	roundRepo       repositories.RoundRepository
	matchRepo       repositories.MatchRepository
	pickRepo        repositories.PickRepository
	streakRepo      repositories.StreakRepository
	leaderboardRepo repositories.LeaderboardRepository
	cache           LeaderboardCache
	cacheTTL        time.Duration
	logger          *slog.Logger
}

func NewRankingService(
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	pickRepo repositories.PickRepository,
	streakRepo repositories.StreakRepository,
	leaderboardRepo repositories.LeaderboardRepository,
	cache LeaderboardCache,
	cacheTTL time.Duration,
	logger *slog.Logger,
) RankingService {
	if cache == nil {
		cache = noopCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultLeaderboardTTL
	}
	return &rankingService{
		tournamentRepo:  tournamentRepo,
		roundRepo:       roundRepo,
		matchRepo:       matchRepo,
		pickRepo:        pickRepo,
		streakRepo:      streakRepo,
		leaderboardRepo: leaderboardRepo,
		cache:           cache,
		cacheTTL:        cacheTTL,
		logger:          logger,
	}
}

func (s *rankingService) GlobalLeaderboard(ctx context.Context) (*models.Leaderboard, error) {
	return s.leaderboard(ctx, globalLeaderboardKey(), models.ScopeGlobal, repositories.LeaderboardFilter{})
}

func (s *rankingService) TournamentLeaderboard(ctx context.Context, tournamentID int) (*models.Leaderboard, error) {
	if _, err := s.liveTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.leaderboard(ctx, tournamentLeaderboardKey(tournamentID), models.ScopeTournament,
		repositories.LeaderboardFilter{TournamentID: intPtr(tournamentID)})
}

func (s *rankingService) RoundLeaderboard(ctx context.Context, roundID int) (*models.Leaderboard, error) {
	round, err := s.roundRepo.GetByID(ctx, nil, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if _, err := s.liveTournament(ctx, round.TournamentID); err != nil {
		return nil, err
	}
	return s.leaderboard(ctx, roundLeaderboardKey(roundID), models.ScopeRound,
		repositories.LeaderboardFilter{TournamentID: intPtr(round.TournamentID), RoundID: intPtr(roundID)})
}

func (s *rankingService) liveTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if t.IsDeleted() {
		return nil, ErrTournamentNotFound
	}
	return t, nil
}

func (s *rankingService) leaderboard(ctx context.Context, key string, scope models.LeaderboardScope, filter repositories.LeaderboardFilter) (*models.Leaderboard, error) {
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	entries, err := s.leaderboardRepo.Aggregate(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s leaderboard: %w", scope, err)
	}
	board := &models.Leaderboard{
		Scope:        scope,
		TournamentID: filter.TournamentID,
		RoundID:      filter.RoundID,
		Entries:      RankEntries(entries),
	}

	if data, err := json.Marshal(board); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache leaderboard", slog.String("key", key), slog.Any("error", err))
		}
	}
	return board, nil
}

func (s *rankingService) fromCache(ctx context.Context, key string) (*models.Leaderboard, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.LeaderboardCache.WithLabelValues("error").Inc()
		s.logger.Warn("leaderboard cache read failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	if !ok {
		metrics.LeaderboardCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	var board models.Leaderboard
	if err := json.Unmarshal(data, &board); err != nil {
		metrics.LeaderboardCache.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.LeaderboardCache.WithLabelValues("hit").Inc()
	return &board, true
}

// UserStats returns the user's leaderboard entry (global, or for one tournament) and streak.
// Entry is nil when the user has no final picks in scope.
func (s *rankingService) UserStats(ctx context.Context, userID int, tournamentID *int) (*models.UserStats, error) {
	stats := &models.UserStats{UserID: userID, TournamentID: tournamentID}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var (
			board *models.Leaderboard
			err   error
		)
		if tournamentID != nil {
			board, err = s.TournamentLeaderboard(gCtx, *tournamentID)
		} else {
			board, err = s.GlobalLeaderboard(gCtx)
		}
		if err != nil {
			return err
		}
		for i := range board.Entries {
			if board.Entries[i].UserID == userID {
				entry := board.Entries[i]
				stats.Entry = &entry
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		streak, err := s.Streak(gCtx, userID)
		if err != nil {
			return err
		}
		stats.Streak = *streak
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *rankingService) Progression(ctx context.Context, tournamentID int, userIDs []int, topN int, byRound bool) (*models.Progression, error) {
	if _, err := s.liveTournament(ctx, tournamentID); err != nil {
		return nil, err
	}

	var (
		matches []models.Match
		scored  []models.ScoredPick
		board   *models.Leaderboard
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, err := s.matchRepo.ListFinalizedByTournament(gCtx, nil, tournamentID)
		matches = ms
		return err
	})
	g.Go(func() error {
		sp, err := s.pickRepo.ListScoredPicksByTournament(gCtx, nil, tournamentID)
		scored = sp
		return err
	})
	g.Go(func() error {
		lb, err := s.TournamentLeaderboard(gCtx, tournamentID)
		board = lb
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load progression data for tournament %d: %w", tournamentID, err)
	}

	submitted := make(map[int]*time.Time, len(board.Entries))
	for _, e := range board.Entries {
		submitted[e.UserID] = e.EarliestSubmission
	}

	p := BuildProgression(ProgressionInput{
		TournamentID: tournamentID,
		Matches:      matches,
		Scored:       scored,
		Submitted:    submitted,
		UserIDs:      userIDs,
		TopN:         topN,
		ByRound:      byRound,
	})
	return &p, nil
}

// Streak returns the stored streak, or a zero streak for a user with no scored picks.
func (s *rankingService) Streak(ctx context.Context, userID int) (*models.UserStreak, error) {
	streak, err := s.streakRepo.Get(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrStreakNotFound) {
			return &models.UserStreak{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to load streak of user %d: %w", userID, err)
	}
	return streak, nil
}
