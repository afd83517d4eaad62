package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/bracket-picks/brackets"
	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/repositories"
)

// DefaultTournamentFormat is used when a parsed draw does not say how many sets are played.
const DefaultTournamentFormat = models.FormatBestOf5

// RoundScheduleInput changes the pick window of a round. Nil fields stay as they are;
// ReopenSubmissions clears submissionsClosedAt.
type RoundScheduleInput struct {
	OpensAt             *time.Time `json:"opens_at"`
	Deadline            *time.Time `json:"deadline"`
	SubmissionsClosedAt *time.Time `json:"submissions_closed_at"`
	ReopenSubmissions   bool       `json:"reopen_submissions"`
}

type TournamentService interface {
	CommitDraw(ctx context.Context, draw models.ParsedDraw) (*models.Tournament, error)
	ReplaceDraw(ctx context.Context, tournamentID int, draw models.ParsedDraw) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	ActivateRound(ctx context.Context, tournamentID, roundNumber int) (*models.Round, error)
	CloseSubmissions(ctx context.Context, roundID int) (*models.Round, error)
	UpdateRoundSchedule(ctx context.Context, roundID int, input RoundScheduleInput) (*models.Round, error)
	ArchiveTournament(ctx context.Context, tournamentID int) (*models.Tournament, error)
	// DeleteTournament soft-deletes a tournament that has predictions and removes it otherwise.
	DeleteTournament(ctx context.Context, tournamentID int) (soft bool, err error)
}

type tournamentService struct {
	tx             repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	pickRepo       repositories.PickRepository
	streakRepo     repositories.StreakRepository
	archiver       DrawArchiver
	leaderboards   *leaderboardInvalidator
	logger         *slog.Logger
	now            func() time.Time
}

func NewTournamentService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	pickRepo repositories.PickRepository,
	streakRepo repositories.StreakRepository,
	archiver DrawArchiver,
	cache LeaderboardCache,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		pickRepo:       pickRepo,
		streakRepo:     streakRepo,
		archiver:       archiver,
		leaderboards:   newLeaderboardInvalidator(cache, logger),
		logger:         logger,
		now:            time.Now,
	}
}

func prepareDraw(draw models.ParsedDraw) (models.ParsedDraw, error) {
	if draw.Format == "" {
		draw.Format = DefaultTournamentFormat
	}
	if err := brackets.ValidateDraw(draw); err != nil {
		return models.ParsedDraw{}, wrapCategory(ErrValidationFailed, err)
	}
	return brackets.ExpandDraw(draw), nil
}

func namePtr(name string) *string {
	if name == "" {
		name = models.PlayerTBD
	}
	return &name
}

// CommitDraw creates the tournament with every round down to the Final. Rounds after the
// ones in the draw start as TBD matches; each round gets the default progressive scoring rule.
func (s *tournamentService) CommitDraw(ctx context.Context, draw models.ParsedDraw) (*models.Tournament, error) {
	expanded, err := prepareDraw(draw)
	if err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		Name:   expanded.TournamentName,
		Year:   expanded.Year,
		Format: expanded.Format,
		Status: models.StatusDraft,
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.Create(ctx, exec, tournament); err != nil {
			return mapRepoError(err)
		}
		tournament.Rounds = make([]models.Round, 0, len(expanded.Rounds))
		for _, pr := range expanded.Rounds {
			round := models.Round{
				TournamentID: tournament.ID,
				RoundNumber:  pr.RoundNumber,
				Name:         pr.Name,
				MatchCount:   len(pr.Matches),
				ScoringRule:  brackets.DefaultScoringRule(pr.RoundNumber),
			}
			if err := s.roundRepo.Create(ctx, exec, &round); err != nil {
				return mapRepoError(err)
			}
			round.Matches = make([]models.Match, 0, len(pr.Matches))
			for _, pm := range pr.Matches {
				m := models.Match{
					RoundID:     round.ID,
					MatchNumber: pm.MatchNumber,
					Player1Name: namePtr(pm.Player1Name),
					Player1Seed: pm.Player1Seed,
					Player2Name: namePtr(pm.Player2Name),
					Player2Seed: pm.Player2Seed,
					Status:      models.MatchStatusPending,
					RoundNumber: round.RoundNumber,
				}
				if err := s.matchRepo.Create(ctx, exec, &m); err != nil {
					return mapRepoError(err)
				}
				round.Matches = append(round.Matches, m)
			}
			tournament.Rounds = append(tournament.Rounds, round)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("draw committed",
		slog.Int("tournament_id", tournament.ID),
		slog.String("name", tournament.Name),
		slog.Int("rounds", len(tournament.Rounds)),
	)
	s.archive(ctx, tournament.ID, draw)
	return tournament, nil
}

// ReplaceDraw rewrites the player slots of an existing bracket. The new draw must have the same
// shape, and the bracket must not have a single finalized match.
func (s *tournamentService) ReplaceDraw(ctx context.Context, tournamentID int, draw models.ParsedDraw) (*models.Tournament, error) {
	expanded, err := prepareDraw(draw)
	if err != nil {
		return nil, err
	}

	var tournament *models.Tournament
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		if t.IsDeleted() {
			return ErrTournamentNotFound
		}
		locked, err := s.tournamentRepo.HasFinalizedMatches(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if locked {
			return ErrDrawLocked
		}

		rounds, err := s.roundRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if len(rounds) != len(expanded.Rounds) {
			return fmt.Errorf("%w: %d rounds, bracket has %d", ErrDrawShapeMismatch, len(expanded.Rounds), len(rounds))
		}
		if t.Format != expanded.Format && draw.Format != "" {
			return fmt.Errorf("%w: format %s, bracket is %s", ErrDrawShapeMismatch, expanded.Format, t.Format)
		}

		for i := range rounds {
			pr := expanded.Rounds[i]
			if rounds[i].MatchCount != len(pr.Matches) {
				return fmt.Errorf("%w: round %d has %d matches, bracket has %d", ErrDrawShapeMismatch, pr.RoundNumber, len(pr.Matches), rounds[i].MatchCount)
			}
			matches, err := s.matchRepo.ListByRound(ctx, exec, rounds[i].ID)
			if err != nil {
				return err
			}
			byNumber := make(map[int]*models.Match, len(matches))
			for j := range matches {
				byNumber[matches[j].MatchNumber] = &matches[j]
			}
			for _, pm := range pr.Matches {
				m, ok := byNumber[pm.MatchNumber]
				if !ok {
					return fmt.Errorf("%w: %s is missing", ErrDrawShapeMismatch, brackets.MatchUID(pr.RoundNumber, pm.MatchNumber))
				}
				m.Player1Name, m.Player1Seed = namePtr(pm.Player1Name), pm.Player1Seed
				m.Player2Name, m.Player2Seed = namePtr(pm.Player2Name), pm.Player2Seed
				if err := s.matchRepo.UpdatePlayers(ctx, exec, m); err != nil {
					return mapRepoError(err)
				}
			}
			rounds[i].Matches = matches
		}
		t.Rounds = rounds
		tournament = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("draw replaced", slog.Int("tournament_id", tournamentID))
	s.archive(ctx, tournamentID, draw)
	return tournament, nil
}

// archive uploads the raw draw. The commit has already happened, so a failure is only logged.
func (s *tournamentService) archive(ctx context.Context, tournamentID int, draw models.ParsedDraw) {
	if s.archiver == nil {
		return
	}
	key, err := s.archiver.ArchiveDraw(ctx, tournamentID, draw)
	if err != nil {
		s.logger.Warn("failed to archive draw", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	s.logger.Debug("draw archived", slog.Int("tournament_id", tournamentID), slog.String("key", key))
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

// ActivateRound makes round N the only active round and the tournament's current round.
// A draft tournament becomes active with its first activated round.
func (s *tournamentService) ActivateRound(ctx context.Context, tournamentID, roundNumber int) (*models.Round, error) {
	var round *models.Round
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		if t.IsDeleted() {
			return ErrTournamentNotFound
		}
		if !isValidStatusTransition(t.Status, models.StatusActive) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusActive)
		}

		r, err := s.roundRepo.GetByNumber(ctx, exec, tournamentID, roundNumber)
		if err != nil {
			return mapRepoError(err)
		}
		if r.IsFinalized {
			return ErrRoundFinalized
		}

		if err := s.roundRepo.DeactivateAll(ctx, exec, tournamentID); err != nil {
			return err
		}
		if err := s.roundRepo.SetActive(ctx, exec, r.ID, true); err != nil {
			return mapRepoError(err)
		}
		if err := s.tournamentRepo.SetCurrentRound(ctx, exec, tournamentID, intPtr(roundNumber)); err != nil {
			return mapRepoError(err)
		}
		if t.Status != models.StatusActive {
			if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.StatusActive); err != nil {
				return mapRepoError(err)
			}
		}
		r.IsActive = true
		round = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("round activated", slog.Int("tournament_id", tournamentID), slog.Int("round_number", roundNumber))
	return round, nil
}

// CloseSubmissions stamps submissionsClosedAt with the current time unless it is already in the past.
func (s *tournamentService) CloseSubmissions(ctx context.Context, roundID int) (*models.Round, error) {
	round, err := s.roundRepo.GetByID(ctx, nil, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	now := s.now().UTC()
	if round.SubmissionsClosedAt != nil && !round.SubmissionsClosedAt.After(now) {
		return round, nil
	}
	round.SubmissionsClosedAt = &now
	if err := s.roundRepo.UpdateSchedule(ctx, nil, round); err != nil {
		return nil, mapRepoError(err)
	}
	s.logger.Info("round submissions closed", slog.Int("round_id", roundID))
	return round, nil
}

func (s *tournamentService) UpdateRoundSchedule(ctx context.Context, roundID int, input RoundScheduleInput) (*models.Round, error) {
	round, err := s.roundRepo.GetByID(ctx, nil, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if input.OpensAt != nil {
		round.OpensAt = input.OpensAt
	}
	if input.Deadline != nil {
		round.Deadline = input.Deadline
	}
	if input.SubmissionsClosedAt != nil {
		round.SubmissionsClosedAt = input.SubmissionsClosedAt
	}
	if input.ReopenSubmissions {
		round.SubmissionsClosedAt = nil
	}
	if round.OpensAt != nil && round.Deadline != nil && !round.OpensAt.Before(*round.Deadline) {
		return nil, fmt.Errorf("%w: opens_at must be before deadline", ErrInvalidSchedule)
	}
	if err := s.roundRepo.UpdateSchedule(ctx, nil, round); err != nil {
		return nil, mapRepoError(err)
	}
	return round, nil
}

func (s *tournamentService) ArchiveTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	var tournament *models.Tournament
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		if t.IsDeleted() {
			return ErrTournamentNotFound
		}
		if !isValidStatusTransition(t.Status, models.StatusArchived) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusArchived)
		}
		if err := s.roundRepo.DeactivateAll(ctx, exec, tournamentID); err != nil {
			return err
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.StatusArchived); err != nil {
			return mapRepoError(err)
		}
		t.Status = models.StatusArchived
		tournament = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tournament archived", slog.Int("tournament_id", tournamentID))
	return tournament, nil
}

func (s *tournamentService) DeleteTournament(ctx context.Context, tournamentID int) (bool, error) {
	soft := false
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		if t.IsDeleted() {
			return ErrTournamentNotFound
		}
		hasPicks, err := s.tournamentRepo.HasPredictions(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if hasPicks {
			soft = true
			// Серии глобальные: после скрытия турнира его матчи выпадают из истории участников.
			scored, err := s.pickRepo.ListScoredPicksByTournament(ctx, exec, tournamentID)
			if err != nil {
				return err
			}
			if err := s.tournamentRepo.SoftDelete(ctx, exec, tournamentID, s.now().UTC()); err != nil {
				return mapRepoError(err)
			}
			return refoldStreaks(ctx, exec, s.pickRepo, s.streakRepo, scoredUsers(scored))
		}
		return mapRepoError(s.tournamentRepo.Delete(ctx, exec, tournamentID))
	})
	if err != nil {
		return false, err
	}
	s.leaderboards.invalidate(ctx)
	s.logger.Info("tournament deleted", slog.Int("tournament_id", tournamentID), slog.Bool("soft", soft))
	return soft, nil
}
