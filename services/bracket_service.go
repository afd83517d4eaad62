package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/bracket-picks/brackets"
	"github.com/Dosada05/bracket-picks/metrics"
	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/repositories"
)

// BackfillReport describes a bulk advancement run. On failure FailedRound/FailedMatch point
// at the place to resume from; earlier rounds stay committed.
type BackfillReport struct {
	TournamentID    int  `json:"tournament_id"`
	RoundsProcessed int  `json:"rounds_processed"`
	SlotsWritten    int  `json:"slots_written"`
	FailedRound     *int `json:"failed_round,omitempty"`
	FailedMatch     *int `json:"failed_match,omitempty"`
}

type BracketService interface {
	// PropagateWinner writes the winner of a finalized match into its next-round slot using exec.
	// It reports whether the destination changed.
	PropagateWinner(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, round *models.Round) (bool, error)
	BackfillAdvancement(ctx context.Context, tournamentID int) (*BackfillReport, error)
	GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

type bracketService struct {
	tx             repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	publisher      EventPublisher
	logger         *slog.Logger
}

func NewBracketService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) BracketService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &bracketService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *bracketService) PropagateWinner(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, round *models.Round) (bool, error) {
	adv, ok, err := brackets.AdvancementFor(match, round.MatchCount)
	if err != nil {
		return false, fmt.Errorf("cannot advance match %d: %w", match.ID, err)
	}
	// У финала нет следующего раунда: победитель турнира уже записан в матче.
	if !ok {
		return false, nil
	}

	next, err := s.roundRepo.GetByNumber(ctx, exec, round.TournamentID, round.RoundNumber+1)
	if err != nil {
		return false, fmt.Errorf("next round after %d of tournament %d: %w", round.RoundNumber, round.TournamentID, mapRepoError(err))
	}
	dest, err := s.matchRepo.GetByRoundAndNumber(ctx, exec, next.ID, adv.MatchNumber)
	if err != nil {
		return false, fmt.Errorf("destination match %s: %w", brackets.MatchUID(next.RoundNumber, adv.MatchNumber), mapRepoError(err))
	}

	if dest.IsFinalized() {
		occupant := brackets.SlotOccupant(dest, adv.Slot)
		if occupant == nil || *occupant != adv.PlayerName {
			return false, fmt.Errorf("%w: match %d %s holds %q, winner of match %d is %q",
				ErrAdvancementConflict, dest.ID, adv.Slot, derefString(occupant), match.ID, adv.PlayerName)
		}
		return false, nil
	}

	if !brackets.ApplyAdvancement(dest, adv) {
		return false, nil
	}
	if err := s.matchRepo.UpdatePlayerSlot(ctx, exec, dest.ID, int(adv.Slot), adv.PlayerName, adv.PlayerSeed); err != nil {
		return false, fmt.Errorf("failed to advance winner of match %d: %w", match.ID, err)
	}
	metrics.SlotsAdvanced.Inc()
	return true, nil
}

// BackfillAdvancement re-propagates every finalized match, one transaction per round in ascending
// order. Each round is read inside its own transaction, after the previous one has committed.
func (s *bracketService) BackfillAdvancement(ctx context.Context, tournamentID int) (*BackfillReport, error) {
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

	report := &BackfillReport{TournamentID: tournamentID}
	log := s.logger.With(slog.Int("tournament_id", tournamentID))

	for i := range rounds {
		round := rounds[i]
		if round.IsFinal() {
			continue
		}

		written := 0
		var failedMatch *models.Match
		txErr := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			written = 0
			matches, err := s.matchRepo.ListByRound(ctx, exec, round.ID)
			if err != nil {
				return err
			}
			for j := range matches {
				m := &matches[j]
				if !m.IsFinalized() {
					continue
				}
				changed, err := s.PropagateWinner(ctx, exec, m, &round)
				if err != nil {
					failedMatch = m
					return err
				}
				if changed {
					written++
				}
			}
			return nil
		})
		if txErr != nil {
			report.FailedRound = intPtr(round.RoundNumber)
			attrs := []any{slog.Int("round_id", round.ID), slog.Int("round_number", round.RoundNumber), slog.Any("error", txErr)}
			if failedMatch != nil {
				report.FailedMatch = intPtr(failedMatch.ID)
				attrs = append(attrs, slog.Int("match_id", failedMatch.ID), slog.Int("match_number", failedMatch.MatchNumber))
			}
			log.Error("backfill stopped", attrs...)
			return report, fmt.Errorf("backfill of tournament %d stopped at round %d: %w", tournamentID, round.RoundNumber, txErr)
		}

		report.RoundsProcessed++
		report.SlotsWritten += written
		log.Info("backfill round committed", slog.Int("round_number", round.RoundNumber), slog.Int("slots_written", written))
	}

	if report.SlotsWritten > 0 {
		s.publisher.PublishTournamentEvent(tournamentID, brackets.MessageBracketUpdated, report)
	}
	return report, nil
}

// GetBracket loads a live tournament with its rounds and their matches.
func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	var (
		tournament *models.Tournament
		rounds     []models.Round
		matches    []models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.tournamentRepo.GetByID(gCtx, nil, tournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		tournament = t
		return nil
	})
	g.Go(func() error {
		rs, err := s.roundRepo.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load rounds of tournament %d: %w", tournamentID, err)
		}
		rounds = rs
		return nil
	})
	g.Go(func() error {
		ms, err := s.matchRepo.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load matches of tournament %d: %w", tournamentID, err)
		}
		matches = ms
		return nil
	})
	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to load bracket", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		}
		return nil, err
	}
	if tournament.IsDeleted() {
		return nil, ErrTournamentNotFound
	}

	attachMatches(rounds, matches)
	tournament.Rounds = rounds
	return tournament, nil
}

func attachMatches(rounds []models.Round, matches []models.Match) {
	index := make(map[int]int, len(rounds))
	for i := range rounds {
		index[rounds[i].ID] = i
		rounds[i].Matches = make([]models.Match, 0, rounds[i].MatchCount)
	}
	for _, m := range matches {
		if i, ok := index[m.RoundID]; ok {
			rounds[i].Matches = append(rounds[i].Matches, m)
		}
	}
}
