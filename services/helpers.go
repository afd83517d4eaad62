package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/repositories"
)

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusDraft:    {models.StatusActive, models.StatusArchived},
		models.StatusActive:   {models.StatusArchived},
		models.StatusArchived: {},
	}
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// mapRepoError переводит ошибки репозиториев в ошибки сервисного слоя.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrRoundNotFound):
		return ErrRoundNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrPickNotFound):
		return ErrPickNotFound
	case errors.Is(err, repositories.ErrPickConflict):
		return ErrPickConflict
	case errors.Is(err, repositories.ErrMatchPickDuplicate):
		return ErrDuplicatePrediction
	case errors.Is(err, repositories.ErrRoundActiveConflict):
		return ErrRoundActiveConflict
	case errors.Is(err, repositories.ErrTournamentInvalidFormat):
		return ErrInvalidTournamentFormat
	}
	return err
}

// pickWindowOpen checks that the round accepts picks at now.
func pickWindowOpen(t *models.Tournament, r *models.Round, now time.Time) error {
	if t.IsDeleted() || t.Status != models.StatusActive {
		return fmt.Errorf("%w: tournament %d is not active", ErrWindowNotOpen, t.ID)
	}
	if r.IsFinalized {
		return ErrWindowClosed
	}
	if !r.IsActive {
		return ErrWindowNotOpen
	}
	if r.OpensAt != nil && now.Before(*r.OpensAt) {
		return ErrWindowNotOpen
	}
	if r.Deadline != nil && !now.Before(*r.Deadline) {
		return ErrWindowClosed
	}
	if r.SubmissionsClosedAt != nil && !now.Before(*r.SubmissionsClosedAt) {
		return ErrWindowClosed
	}
	return nil
}
