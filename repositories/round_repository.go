package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-picks/models"
)

var (
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundNumberConflict = errors.New("round number already exists in tournament")
	ErrRoundActiveConflict = errors.New("another round of the tournament is already active")
)

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.Round) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error)
	GetByNumber(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (*models.Round, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Round, error)
	DeactivateAll(ctx context.Context, exec SQLExecutor, tournamentID int) error
	SetActive(ctx context.Context, exec SQLExecutor, id int, active bool) error
	SetFinalized(ctx context.Context, exec SQLExecutor, id int, finalized bool) error
	UpdateSchedule(ctx context.Context, exec SQLExecutor, round *models.Round) error
	UpdateScoringRule(ctx context.Context, exec SQLExecutor, id int, rule models.ScoringRule) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const roundColumns = `id, tournament_id, round_number, name, match_count, is_active, is_finalized,
	opens_at, deadline, submissions_closed_at, points_per_winner, points_exact_score, created_at`

func scanRound(row interface{ Scan(...interface{}) error }, rd *models.Round) error {
	return row.Scan(
		&rd.ID, &rd.TournamentID, &rd.RoundNumber, &rd.Name, &rd.MatchCount, &rd.IsActive, &rd.IsFinalized,
		&rd.OpensAt, &rd.Deadline, &rd.SubmissionsClosedAt,
		&rd.ScoringRule.PointsPerWinner, &rd.ScoringRule.PointsExactScore, &rd.CreatedAt,
	)
}

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, rd *models.Round) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO rounds (
			tournament_id, round_number, name, match_count, is_active, is_finalized,
			opens_at, deadline, submissions_closed_at, points_per_winner, points_exact_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		rd.TournamentID, rd.RoundNumber, rd.Name, rd.MatchCount, rd.IsActive, rd.IsFinalized,
		rd.OpensAt, rd.Deadline, rd.SubmissionsClosedAt,
		rd.ScoringRule.PointsPerWinner, rd.ScoringRule.PointsExactScore,
	).Scan(&rd.ID, &rd.CreatedAt)
	return r.handleRoundError(err)
}

func (r *postgresRoundRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error) {
	rd := &models.Round{}
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	if err := scanRound(r.getExecutor(exec).QueryRowContext(ctx, query, id), rd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return rd, nil
}

func (r *postgresRoundRepository) GetByNumber(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (*models.Round, error) {
	rd := &models.Round{}
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE tournament_id = $1 AND round_number = $2`
	if err := scanRound(r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, roundNumber), rd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return rd, nil
}

func (r *postgresRoundRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE tournament_id = $1 ORDER BY round_number ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	rounds := make([]models.Round, 0)
	for rows.Next() {
		var rd models.Round
		if scanErr := scanRound(rows, &rd); scanErr != nil {
			return nil, fmt.Errorf("failed to scan round: %w", scanErr)
		}
		rounds = append(rounds, rd)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return rounds, nil
}

func (r *postgresRoundRepository) DeactivateAll(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE rounds SET is_active = FALSE WHERE tournament_id = $1 AND is_active`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to deactivate rounds of tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresRoundRepository) SetActive(ctx context.Context, exec SQLExecutor, id int, active bool) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE rounds SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return r.handleRoundError(err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) SetFinalized(ctx context.Context, exec SQLExecutor, id int, finalized bool) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE rounds SET is_finalized = $1 WHERE id = $2`, finalized, id)
	if err != nil {
		return fmt.Errorf("failed to update round %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

// UpdateSchedule writes the three window timestamps of the round as given.
func (r *postgresRoundRepository) UpdateSchedule(ctx context.Context, exec SQLExecutor, rd *models.Round) error {
	query := `UPDATE rounds SET opens_at = $1, deadline = $2, submissions_closed_at = $3 WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, rd.OpensAt, rd.Deadline, rd.SubmissionsClosedAt, rd.ID)
	if err != nil {
		return fmt.Errorf("failed to update schedule of round %d: %w", rd.ID, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) UpdateScoringRule(ctx context.Context, exec SQLExecutor, id int, rule models.ScoringRule) error {
	query := `UPDATE rounds SET points_per_winner = $1, points_exact_score = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, rule.PointsPerWinner, rule.PointsExactScore, id)
	if err != nil {
		return fmt.Errorf("failed to update scoring rule of round %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) handleRoundError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := pqConstraint(err, pqUniqueViolation); ok {
		switch constraint {
		case "rounds_tournament_id_round_number_key":
			return ErrRoundNumberConflict
		case "rounds_one_active_per_tournament":
			return ErrRoundActiveConflict
		}
	}
	if _, ok := pqConstraint(err, pqForeignKeyViolation); ok {
		return ErrTournamentNotFound
	}
	return err
}
