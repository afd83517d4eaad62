package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/bracket-picks/brackets"
	"github.com/Dosada05/bracket-picks/metrics"
	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/repositories"
)

type PickInput struct {
	MatchID           int    `json:"match_id"`
	PredictedWinner   string `json:"predicted_winner"`
	PredictedSetsWon  int    `json:"predicted_sets_won"`
	PredictedSetsLost int    `json:"predicted_sets_lost"`
}

type PickService interface {
	// SaveDraft replaces the user's draft predictions for the round. Partial drafts are allowed.
	SaveDraft(ctx context.Context, userID, roundID int, picks []PickInput) (*models.UserRoundPick, error)
	// SubmitFinal stores a prediction for every match of the round and locks the picks.
	SubmitFinal(ctx context.Context, userID, roundID int, picks []PickInput) (*models.UserRoundPick, error)
	GetPicks(ctx context.Context, viewerID, ownerID, roundID int) (*models.UserRoundPick, error)
	ComparePicks(ctx context.Context, viewerID, otherID, tournamentID int) ([]models.RoundPickComparison, error)
}

type pickService struct {
	tx             repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	pickRepo       repositories.PickRepository
	leaderboards   *leaderboardInvalidator
	logger         *slog.Logger
	now            func() time.Time
}

func NewPickService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	pickRepo repositories.PickRepository,
	cache LeaderboardCache,
	logger *slog.Logger,
) PickService {
	return &pickService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		pickRepo:       pickRepo,
		leaderboards:   newLeaderboardInvalidator(cache, logger),
		logger:         logger,
		now:            time.Now,
	}
}

func (s *pickService) SaveDraft(ctx context.Context, userID, roundID int, picks []PickInput) (*models.UserRoundPick, error) {
	return s.save(ctx, userID, roundID, picks, false)
}

func (s *pickService) SubmitFinal(ctx context.Context, userID, roundID int, picks []PickInput) (*models.UserRoundPick, error) {
	return s.save(ctx, userID, roundID, picks, true)
}

// save runs the whole transition in one transaction: window check, row lock on (user, round),
// validation, then delete-and-insert of the predictions. Nothing is written when any step fails.
func (s *pickService) save(ctx context.Context, userID, roundID int, inputs []PickInput, final bool) (*models.UserRoundPick, error) {
	var pick *models.UserRoundPick

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		round, err := s.roundRepo.GetByID(ctx, exec, roundID)
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
		now := s.now().UTC()
		if err := pickWindowOpen(t, round, now); err != nil {
			return err
		}

		existing, err := s.pickRepo.GetForUpdate(ctx, exec, userID, roundID)
		if err != nil && !errors.Is(err, repositories.ErrPickNotFound) {
			return err
		}
		if existing != nil && !existing.IsDraft {
			return ErrPickAlreadyFinal
		}

		matches, err := s.matchRepo.ListByRound(ctx, exec, roundID)
		if err != nil {
			return err
		}
		matchPicks, err := validatePicks(inputs, matches, t.Format)
		if err != nil {
			return err
		}
		if final && len(matchPicks) != len(matches) {
			return fmt.Errorf("%w: %d of %d matches predicted", ErrIncompleteFinal, len(matchPicks), len(matches))
		}

		if existing == nil {
			existing = &models.UserRoundPick{UserID: userID, RoundID: roundID, IsDraft: true}
			if final {
				existing.IsDraft = false
				existing.SubmittedAt = &now
			}
			if err := s.pickRepo.Create(ctx, exec, existing); err != nil {
				return mapRepoError(err)
			}
		} else if final {
			existing.IsDraft = false
			existing.SubmittedAt = &now
			if err := s.pickRepo.UpdateState(ctx, exec, existing); err != nil {
				return mapRepoError(err)
			}
		} else if err := s.pickRepo.UpdateState(ctx, exec, existing); err != nil {
			return mapRepoError(err)
		}

		if err := s.pickRepo.ReplaceMatchPicks(ctx, exec, existing.ID, matchPicks); err != nil {
			return mapRepoError(err)
		}
		existing.MatchPicks = matchPicks
		existing.TotalPoints, existing.CorrectWinners, existing.ExactScores = 0, 0, 0
		pick = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := "draft"
	if final {
		kind = "final"
		s.leaderboards.invalidate(ctx)
	}
	metrics.PicksSaved.WithLabelValues(kind).Inc()
	s.logger.Info("round picks saved",
		slog.Int("user_id", userID),
		slog.Int("round_id", roundID),
		slog.String("kind", kind),
		slog.Int("predictions", len(pick.MatchPicks)),
	)
	return pick, nil
}

// validatePicks checks every prediction against the round's matches and the format.
func validatePicks(inputs []PickInput, matches []models.Match, format models.TournamentFormat) ([]models.MatchPick, error) {
	byID := make(map[int]*models.Match, len(matches))
	for i := range matches {
		byID[matches[i].ID] = &matches[i]
	}

	seen := make(map[int]bool, len(inputs))
	out := make([]models.MatchPick, 0, len(inputs))
	for _, in := range inputs {
		m, ok := byID[in.MatchID]
		if !ok {
			return nil, fmt.Errorf("%w: match %d", ErrMatchNotInRound, in.MatchID)
		}
		if seen[in.MatchID] {
			return nil, fmt.Errorf("%w: match %d", ErrDuplicatePrediction, in.MatchID)
		}
		seen[in.MatchID] = true
		if m.IsFinalized() {
			return nil, fmt.Errorf("%w: match %d", ErrMatchAlreadyFinalized, in.MatchID)
		}
		if err := brackets.ValidatePrediction(m, format, in.PredictedWinner, in.PredictedSetsWon, in.PredictedSetsLost); err != nil {
			return nil, wrapCategory(ErrValidationFailed, err)
		}
		out = append(out, models.MatchPick{
			MatchID:           in.MatchID,
			PredictedWinner:   in.PredictedWinner,
			PredictedSetsWon:  in.PredictedSetsWon,
			PredictedSetsLost: in.PredictedSetsLost,
		})
	}
	return out, nil
}

// GetPicks returns ownerID's picks for the round. Anyone may read their own picks; someone
// else's final picks are visible only once the viewer has submitted final picks for that round.
func (s *pickService) GetPicks(ctx context.Context, viewerID, ownerID, roundID int) (*models.UserRoundPick, error) {
	if _, err := s.roundRepo.GetByID(ctx, nil, roundID); err != nil {
		return nil, mapRepoError(err)
	}

	if viewerID != ownerID {
		own, err := s.pickRepo.Get(ctx, nil, viewerID, roundID)
		if err != nil && !errors.Is(err, repositories.ErrPickNotFound) {
			return nil, err
		}
		if own == nil || own.IsDraft {
			return nil, ErrPicksHidden
		}
	}

	pick, err := s.pickRepo.Get(ctx, nil, ownerID, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if viewerID != ownerID && pick.IsDraft {
		return nil, ErrPickNotFound
	}
	mps, err := s.pickRepo.ListMatchPicks(ctx, nil, pick.ID)
	if err != nil {
		return nil, err
	}
	pick.MatchPicks = mps
	return pick, nil
}

// ComparePicks lines up two users' predictions match by match, over the rounds where both
// have final picks.
func (s *pickService) ComparePicks(ctx context.Context, viewerID, otherID, tournamentID int) ([]models.RoundPickComparison, error) {
	var (
		t           *models.Tournament
		rounds      []models.Round
		matches     []models.Match
		viewerPicks []models.UserRoundPick
		otherPicks  []models.UserRoundPick
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t, err = s.tournamentRepo.GetByID(gCtx, nil, tournamentID)
		return mapRepoError(err)
	})
	g.Go(func() (err error) {
		rounds, err = s.roundRepo.ListByTournament(gCtx, nil, tournamentID)
		return err
	})
	g.Go(func() (err error) {
		matches, err = s.matchRepo.ListByTournament(gCtx, nil, tournamentID)
		return err
	})
	g.Go(func() (err error) {
		viewerPicks, err = s.pickRepo.ListFinalByUserAndTournament(gCtx, nil, viewerID, tournamentID)
		return err
	})
	g.Go(func() (err error) {
		otherPicks, err = s.pickRepo.ListFinalByUserAndTournament(gCtx, nil, otherID, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if t.IsDeleted() {
		return nil, ErrTournamentNotFound
	}

	viewerByRound := indexPicksByRound(viewerPicks)
	otherByRound := indexPicksByRound(otherPicks)
	attachMatches(rounds, matches)

	out := make([]models.RoundPickComparison, 0)
	for _, r := range rounds {
		vp, okV := viewerByRound[r.ID]
		op, okO := otherByRound[r.ID]
		if !okV || !okO {
			continue
		}
		cmp := models.RoundPickComparison{
			RoundID:      r.ID,
			RoundNumber:  r.RoundNumber,
			RoundName:    r.Name,
			ViewerPoints: vp.TotalPoints,
			OtherPoints:  op.TotalPoints,
			Matches:      make([]models.MatchPickComparison, 0, len(r.Matches)),
		}
		vByMatch := indexMatchPicks(vp.MatchPicks)
		oByMatch := indexMatchPicks(op.MatchPicks)
		for _, m := range r.Matches {
			cmp.Matches = append(cmp.Matches, models.MatchPickComparison{
				Match:      m,
				ViewerPick: vByMatch[m.ID],
				OtherPick:  oByMatch[m.ID],
			})
		}
		out = append(out, cmp)
	}
	return out, nil
}

func indexPicksByRound(picks []models.UserRoundPick) map[int]*models.UserRoundPick {
	out := make(map[int]*models.UserRoundPick, len(picks))
	for i := range picks {
		if !picks[i].IsDraft {
			out[picks[i].RoundID] = &picks[i]
		}
	}
	return out
}

func indexMatchPicks(picks []models.MatchPick) map[int]*models.MatchPick {
	out := make(map[int]*models.MatchPick, len(picks))
	for i := range picks {
		out[picks[i].MatchID] = &picks[i]
	}
	return out
}
