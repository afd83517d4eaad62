package services

import (
	"errors"
	"fmt"
)

// Категории ошибок. Каждая конкретная ошибка оборачивает одну из них,
// handlers классифицируют по ним через errors.Is.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Входные данные отклонены, состояние не изменилось
	ErrValidationFailed = errors.New("validation failed")

	// Операция недопустима в текущем состоянии
	ErrStateConflict = errors.New("state conflict")

	// Результат противоречит формату турнира
	ErrIntegrity = errors.New("integrity violation")

	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)

var (
	ErrTournamentNotFound = fmt.Errorf("%w: tournament not found", ErrNotFound)
	ErrRoundNotFound      = fmt.Errorf("%w: round not found", ErrNotFound)
	ErrMatchNotFound      = fmt.Errorf("%w: match not found", ErrNotFound)
	ErrPickNotFound       = fmt.Errorf("%w: picks not found", ErrNotFound)
)

var (
	ErrMatchNotInRound         = fmt.Errorf("%w: match does not belong to the round", ErrValidationFailed)
	ErrDuplicatePrediction     = fmt.Errorf("%w: more than one prediction for a match", ErrValidationFailed)
	ErrMatchAlreadyFinalized   = fmt.Errorf("%w: match is already finalized", ErrValidationFailed)
	ErrWindowNotOpen           = fmt.Errorf("%w: pick window is not open", ErrValidationFailed)
	ErrWindowClosed            = fmt.Errorf("%w: pick window is closed", ErrValidationFailed)
	ErrIncompleteFinal         = fmt.Errorf("%w: final picks must cover every match of the round", ErrValidationFailed)
	ErrInvalidScoringRule      = fmt.Errorf("%w: scoring rule points must not be negative", ErrValidationFailed)
	ErrInvalidSchedule         = fmt.Errorf("%w: invalid round schedule", ErrValidationFailed)
	ErrInvalidTournamentFormat = fmt.Errorf("%w: invalid tournament format", ErrValidationFailed)
)

var (
	ErrDrawLocked                        = fmt.Errorf("%w: draw cannot change once a match is finalized", ErrStateConflict)
	ErrDrawShapeMismatch                 = fmt.Errorf("%w: new draw does not match the existing bracket", ErrStateConflict)
	ErrPickAlreadyFinal                  = fmt.Errorf("%w: picks for this round are already final", ErrStateConflict)
	ErrPicksHidden                       = fmt.Errorf("%w: submit your own final picks to view others", ErrStateConflict)
	ErrMatchResultConflict               = fmt.Errorf("%w: match is already finalized with a different result", ErrStateConflict)
	ErrTournamentInvalidStatusTransition = fmt.Errorf("%w: invalid tournament status transition", ErrStateConflict)
	ErrTournamentNotActive               = fmt.Errorf("%w: tournament is not active", ErrStateConflict)
	ErrRoundFinalized                    = fmt.Errorf("%w: round is already finalized", ErrStateConflict)
	ErrRoundActiveConflict               = fmt.Errorf("%w: another round is already active", ErrStateConflict)
	ErrPickConflict                      = fmt.Errorf("%w: picks for this round were saved concurrently, retry", ErrStateConflict)
)

var ErrAdvancementConflict = fmt.Errorf("%w: destination slot is finalized with a different player", ErrIntegrity)

// Ошибки пакета brackets (ErrInvalidDraw, ErrInvalidPrediction, ErrInvalidResult)
// оборачиваются в категорию на границе сервиса.

// wrapCategory attaches a category to an error from a lower layer, keeping both matchable.
func wrapCategory(category, err error) error {
	return fmt.Errorf("%w: %w", category, err)
}
