package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Dosada05/bracket-picks/models"
)

var (
	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentInvalidFormat = errors.New("invalid tournament format")
	ErrTournamentInUse         = errors.New("tournament is in use (rounds/picks exist)")
)

type ListTournamentsFilter struct {
	Status         *models.TournamentStatus
	Year           *int
	IncludeDeleted bool
	Limit          int
	Offset         int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	SetCurrentRound(ctx context.Context, exec SQLExecutor, id int, roundNumber *int) error
	SoftDelete(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	HasPredictions(ctx context.Context, exec SQLExecutor, id int) (bool, error)
	HasFinalizedMatches(ctx context.Context, exec SQLExecutor, id int) (bool, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, name, year, format, status, current_round_number, deleted_at, created_at`

func scanTournament(row interface{ Scan(...interface{}) error }, t *models.Tournament) error {
	return row.Scan(&t.ID, &t.Name, &t.Year, &t.Format, &t.Status, &t.CurrentRoundNumber, &t.DeletedAt, &t.CreatedAt)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournaments (name, year, format, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, t.Name, t.Year, t.Format, t.Status).Scan(&t.ID, &t.CreatedAt)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.get(ctx, exec, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

// LockByID reads the tournament row with FOR UPDATE; it serializes round transitions and draw re-uploads.
func (r *postgresTournamentRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.get(ctx, exec, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresTournamentRepository) get(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	qb := psql.Select(tournamentColumns).From("tournaments")
	if !filter.IncludeDeleted {
		qb = qb.Where(sq.Eq{"deleted_at": nil})
	}
	if filter.Status != nil {
		qb = qb.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.Year != nil {
		qb = qb.Where(sq.Eq{"year": *filter.Year})
	}
	qb = qb.OrderBy("year DESC", "created_at DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build tournaments query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournaments SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetCurrentRound(ctx context.Context, exec SQLExecutor, id int, roundNumber *int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournaments SET current_round_number = $1 WHERE id = $2`, roundNumber, id)
	if err != nil {
		return fmt.Errorf("failed to set current round of tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SoftDelete(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournaments SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// Delete removes the tournament together with its rounds and matches (ON DELETE CASCADE).
func (r *postgresTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) HasPredictions(ctx context.Context, exec SQLExecutor, id int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_round_picks urp
			JOIN rounds r ON r.id = urp.round_id
			WHERE r.tournament_id = $1
		)`
	var exists bool
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check predictions of tournament %d: %w", id, err)
	}
	return exists, nil
}

func (r *postgresTournamentRepository) HasFinalizedMatches(ctx context.Context, exec SQLExecutor, id int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM matches m
			JOIN rounds r ON r.id = m.round_id
			WHERE r.tournament_id = $1 AND m.status = $2
		)`
	var exists bool
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, id, models.MatchStatusFinalized).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check finalized matches of tournament %d: %w", id, err)
	}
	return exists, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := pqConstraint(err, pqCheckViolation); ok && constraint == "tournaments_format_check" {
		return ErrTournamentInvalidFormat
	}
	if _, ok := pqConstraint(err, pqForeignKeyViolation); ok {
		return ErrTournamentInUse
	}
	return err
}
