package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-picks/models"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchNumberConflict = errors.New("match number already exists in round")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetByRoundAndNumber(ctx context.Context, exec SQLExecutor, roundID, matchNumber int) (*models.Match, error)
	ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Match, error)
	// ListFinalizedByTournament returns finalized matches in finalize order:
	// finalized_at, round_number, match_number.
	ListFinalizedByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Match, error)
	UpdatePlayers(ctx context.Context, exec SQLExecutor, match *models.Match) error
	// UpdatePlayerSlot writes one slot (1 or 2) and leaves the other as it is.
	UpdatePlayerSlot(ctx context.Context, exec SQLExecutor, matchID, slot int, name string, seed *int) error
	Finalize(ctx context.Context, exec SQLExecutor, match *models.Match) error
	CountPendingInRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `m.id, m.round_id, m.match_number, m.player1_name, m.player1_seed, m.player2_name, m.player2_seed,
	m.status, m.winner_name, m.final_score, m.sets_won, m.sets_lost, m.is_retirement,
	m.finalized_at, m.finalized_by, m.created_at, r.round_number`

const matchFrom = ` FROM matches m JOIN rounds r ON r.id = m.round_id`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.RoundID, &m.MatchNumber, &m.Player1Name, &m.Player1Seed, &m.Player2Name, &m.Player2Seed,
		&m.Status, &m.WinnerName, &m.FinalScore, &m.SetsWon, &m.SetsLost, &m.IsRetirement,
		&m.FinalizedAt, &m.FinalizedBy, &m.CreatedAt, &m.RoundNumber,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	if m.Status == "" {
		m.Status = models.MatchStatusPending
	}
	query := `
		INSERT INTO matches (round_id, match_number, player1_name, player1_seed, player2_name, player2_seed, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		m.RoundID, m.MatchNumber, m.Player1Name, m.Player1Seed, m.Player2Name, m.Player2Seed, m.Status,
	).Scan(&m.ID, &m.CreatedAt)
	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) getOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Match, error) {
	m := &models.Match{}
	if err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, args...), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.getOne(ctx, exec, `SELECT `+matchColumns+matchFrom+` WHERE m.id = $1`, id)
}

// LockByID блокирует строку матча до конца транзакции (финализация).
func (r *postgresMatchRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.getOne(ctx, exec, `SELECT `+matchColumns+matchFrom+` WHERE m.id = $1 FOR UPDATE OF m`, id)
}

func (r *postgresMatchRepository) GetByRoundAndNumber(ctx context.Context, exec SQLExecutor, roundID, matchNumber int) (*models.Match, error) {
	return r.getOne(ctx, exec, `SELECT `+matchColumns+matchFrom+` WHERE m.round_id = $1 AND m.match_number = $2`, roundID, matchNumber)
}

func (r *postgresMatchRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]models.Match, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := scanMatch(rows, &m); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]models.Match, error) {
	return r.list(ctx, exec, `SELECT `+matchColumns+matchFrom+` WHERE m.round_id = $1 ORDER BY m.match_number`, roundID)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Match, error) {
	return r.list(ctx, exec, `SELECT `+matchColumns+matchFrom+` WHERE r.tournament_id = $1 ORDER BY r.round_number, m.match_number`, tournamentID)
}

func (r *postgresMatchRepository) ListFinalizedByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + matchFrom + `
		WHERE r.tournament_id = $1 AND m.status = $2
		ORDER BY m.finalized_at, r.round_number, m.match_number`
	return r.list(ctx, exec, query, tournamentID, models.MatchStatusFinalized)
}

// UpdatePlayers writes both player slots of a pending match.
func (r *postgresMatchRepository) UpdatePlayers(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches SET player1_name = $1, player1_seed = $2, player2_name = $3, player2_seed = $4
		WHERE id = $5`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, m.Player1Name, m.Player1Seed, m.Player2Name, m.Player2Seed, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update players of match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdatePlayerSlot(ctx context.Context, exec SQLExecutor, matchID, slot int, name string, seed *int) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE matches SET player1_name = $1, player1_seed = $2 WHERE id = $3`
	case 2:
		query = `UPDATE matches SET player2_name = $1, player2_seed = $2 WHERE id = $3`
	default:
		return fmt.Errorf("invalid slot %d for match %d", slot, matchID)
	}
	result, err := r.getExecutor(exec).ExecContext(ctx, query, name, seed, matchID)
	if err != nil {
		return fmt.Errorf("failed to update slot %d of match %d: %w", slot, matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Finalize(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches SET
			status = $1, winner_name = $2, final_score = $3, sets_won = $4, sets_lost = $5,
			is_retirement = $6, finalized_at = $7, finalized_by = $8
		WHERE id = $9`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		models.MatchStatusFinalized, m.WinnerName, m.FinalScore, m.SetsWon, m.SetsLost,
		m.IsRetirement, m.FinalizedAt, m.FinalizedBy, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize match %d: %w", m.ID, err)
	}
	m.Status = models.MatchStatusFinalized
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountPendingInRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM matches WHERE round_id = $1 AND status <> $2`
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, roundID, models.MatchStatusFinalized).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending matches of round %d: %w", roundID, err)
	}
	return n, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := pqConstraint(err, pqUniqueViolation); ok && constraint == "matches_round_id_match_number_key" {
		return ErrMatchNumberConflict
	}
	if _, ok := pqConstraint(err, pqForeignKeyViolation); ok {
		return ErrRoundNotFound
	}
	return err
}
