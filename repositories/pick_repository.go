package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-picks/models"
)

var (
	ErrPickNotFound       = errors.New("round pick not found")
	ErrPickConflict       = errors.New("round pick already exists for this user")
	ErrMatchPickDuplicate = errors.New("duplicate prediction for match")
)

type PickRepository interface {
	Get(ctx context.Context, exec SQLExecutor, userID, roundID int) (*models.UserRoundPick, error)
	GetForUpdate(ctx context.Context, exec SQLExecutor, userID, roundID int) (*models.UserRoundPick, error)
	Create(ctx context.Context, exec SQLExecutor, pick *models.UserRoundPick) error
	UpdateState(ctx context.Context, exec SQLExecutor, pick *models.UserRoundPick) error
	UpdateTotals(ctx context.Context, exec SQLExecutor, pickID int, totals models.PickTotals) error

	ListMatchPicks(ctx context.Context, exec SQLExecutor, pickID int) ([]models.MatchPick, error)
	ReplaceMatchPicks(ctx context.Context, exec SQLExecutor, pickID int, picks []models.MatchPick) error
	// ListScorableByMatch returns predictions for the match that belong to final round picks.
	ListScorableByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.MatchPick, error)
	UpdateMatchPickScore(ctx context.Context, exec SQLExecutor, pick *models.MatchPick) error

	ListFinalByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) ([]models.UserRoundPick, error)
	ListScoredPicksByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.ScoredPick, error)
	ListUserStreakEvents(ctx context.Context, exec SQLExecutor, userID int) ([]models.StreakEvent, error)
}

type postgresPickRepository struct {
	db *sql.DB
}

func NewPostgresPickRepository(db *sql.DB) PickRepository {
	return &postgresPickRepository{db: db}
}

func (r *postgresPickRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const pickColumns = `id, user_id, round_id, is_draft, submitted_at, total_points, correct_winners, exact_scores, created_at, updated_at`

func scanPick(row interface{ Scan(...interface{}) error }, p *models.UserRoundPick) error {
	return row.Scan(&p.ID, &p.UserID, &p.RoundID, &p.IsDraft, &p.SubmittedAt,
		&p.TotalPoints, &p.CorrectWinners, &p.ExactScores, &p.CreatedAt, &p.UpdatedAt)
}

const matchPickColumns = `mp.id, mp.user_round_pick_id, mp.match_id, mp.predicted_winner, mp.predicted_sets_won,
	mp.predicted_sets_lost, mp.is_winner_correct, mp.is_exact_score, mp.points_earned`

func scanMatchPick(row interface{ Scan(...interface{}) error }, mp *models.MatchPick, extra ...interface{}) error {
	dest := []interface{}{&mp.ID, &mp.UserRoundPickID, &mp.MatchID, &mp.PredictedWinner, &mp.PredictedSetsWon,
		&mp.PredictedSetsLost, &mp.IsWinnerCorrect, &mp.IsExactScore, &mp.PointsEarned}
	return row.Scan(append(dest, extra...)...)
}

func (r *postgresPickRepository) Get(ctx context.Context, exec SQLExecutor, userID, roundID int) (*models.UserRoundPick, error) {
	return r.getOne(ctx, exec, `SELECT `+pickColumns+` FROM user_round_picks WHERE user_id = $1 AND round_id = $2`, userID, roundID)
}

// GetForUpdate блокирует строку (user, round), чтобы параллельные сохранения шли по очереди.
func (r *postgresPickRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, userID, roundID int) (*models.UserRoundPick, error) {
	return r.getOne(ctx, exec, `SELECT `+pickColumns+` FROM user_round_picks WHERE user_id = $1 AND round_id = $2 FOR UPDATE`, userID, roundID)
}

func (r *postgresPickRepository) getOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.UserRoundPick, error) {
	p := &models.UserRoundPick{}
	if err := scanPick(r.getExecutor(exec).QueryRowContext(ctx, query, args...), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPickNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPickRepository) Create(ctx context.Context, exec SQLExecutor, p *models.UserRoundPick) error {
	query := `
		INSERT INTO user_round_picks (user_id, round_id, is_draft, submitted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, p.UserID, p.RoundID, p.IsDraft, p.SubmittedAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return r.handlePickError(err)
}

func (r *postgresPickRepository) UpdateState(ctx context.Context, exec SQLExecutor, p *models.UserRoundPick) error {
	query := `
		UPDATE user_round_picks SET is_draft = $1, submitted_at = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, p.IsDraft, p.SubmittedAt, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPickNotFound
		}
		return fmt.Errorf("failed to update round pick %d: %w", p.ID, err)
	}
	return nil
}

// UpdateTotals overwrites the aggregate columns; callers always pass a full recomputation.
func (r *postgresPickRepository) UpdateTotals(ctx context.Context, exec SQLExecutor, pickID int, totals models.PickTotals) error {
	query := `
		UPDATE user_round_picks SET total_points = $1, correct_winners = $2, exact_scores = $3, updated_at = NOW()
		WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, totals.TotalPoints, totals.CorrectWinners, totals.ExactScores, pickID)
	if err != nil {
		return fmt.Errorf("failed to update totals of round pick %d: %w", pickID, err)
	}
	return checkAffectedRows(result, ErrPickNotFound)
}

func (r *postgresPickRepository) ListMatchPicks(ctx context.Context, exec SQLExecutor, pickID int) ([]models.MatchPick, error) {
	query := `
		SELECT ` + matchPickColumns + `
		FROM match_picks mp
		JOIN matches m ON m.id = mp.match_id
		WHERE mp.user_round_pick_id = $1
		ORDER BY m.match_number`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pickID)
	if err != nil {
		return nil, fmt.Errorf("failed to list match picks of round pick %d: %w", pickID, err)
	}
	defer rows.Close()

	picks := make([]models.MatchPick, 0)
	for rows.Next() {
		var mp models.MatchPick
		if scanErr := scanMatchPick(rows, &mp); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match pick: %w", scanErr)
		}
		picks = append(picks, mp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return picks, nil
}

// ReplaceMatchPicks deletes every prediction of the round pick and inserts picks in its place.
func (r *postgresPickRepository) ReplaceMatchPicks(ctx context.Context, exec SQLExecutor, pickID int, picks []models.MatchPick) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM match_picks WHERE user_round_pick_id = $1`, pickID); err != nil {
		return fmt.Errorf("failed to clear match picks of round pick %d: %w", pickID, err)
	}

	query := `
		INSERT INTO match_picks (user_round_pick_id, match_id, predicted_winner, predicted_sets_won, predicted_sets_lost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	for i := range picks {
		mp := &picks[i]
		mp.UserRoundPickID = pickID
		err := executor.QueryRowContext(ctx, query, pickID, mp.MatchID, mp.PredictedWinner, mp.PredictedSetsWon, mp.PredictedSetsLost).Scan(&mp.ID)
		if err != nil {
			return r.handlePickError(err)
		}
	}
	return nil
}

func (r *postgresPickRepository) ListScorableByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.MatchPick, error) {
	query := `
		SELECT ` + matchPickColumns + `, urp.user_id
		FROM match_picks mp
		JOIN user_round_picks urp ON urp.id = mp.user_round_pick_id
		WHERE mp.match_id = $1 AND urp.is_draft = FALSE
		ORDER BY mp.id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions of match %d: %w", matchID, err)
	}
	defer rows.Close()

	picks := make([]models.MatchPick, 0)
	for rows.Next() {
		var mp models.MatchPick
		if scanErr := scanMatchPick(rows, &mp, &mp.UserID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match pick: %w", scanErr)
		}
		picks = append(picks, mp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return picks, nil
}

func (r *postgresPickRepository) UpdateMatchPickScore(ctx context.Context, exec SQLExecutor, mp *models.MatchPick) error {
	query := `UPDATE match_picks SET is_winner_correct = $1, is_exact_score = $2, points_earned = $3 WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, mp.IsWinnerCorrect, mp.IsExactScore, mp.PointsEarned, mp.ID)
	if err != nil {
		return fmt.Errorf("failed to score match pick %d: %w", mp.ID, err)
	}
	return checkAffectedRows(result, ErrPickNotFound)
}

func (r *postgresPickRepository) ListFinalByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) ([]models.UserRoundPick, error) {
	query := `
		SELECT urp.id, urp.user_id, urp.round_id, urp.is_draft, urp.submitted_at, urp.total_points,
			urp.correct_winners, urp.exact_scores, urp.created_at, urp.updated_at
		FROM user_round_picks urp
		JOIN rounds r ON r.id = urp.round_id
		WHERE urp.user_id = $1 AND r.tournament_id = $2 AND urp.is_draft = FALSE
		ORDER BY r.round_number`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, userID, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list final picks of user %d: %w", userID, err)
	}
	picks := make([]models.UserRoundPick, 0)
	for rows.Next() {
		var p models.UserRoundPick
		if scanErr := scanPick(rows, &p); scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan round pick: %w", scanErr)
		}
		picks = append(picks, p)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range picks {
		mps, err := r.ListMatchPicks(ctx, exec, picks[i].ID)
		if err != nil {
			return nil, err
		}
		picks[i].MatchPicks = mps
	}
	return picks, nil
}

func (r *postgresPickRepository) ListScoredPicksByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.ScoredPick, error) {
	query := `
		SELECT urp.user_id, mp.match_id, mp.points_earned
		FROM match_picks mp
		JOIN user_round_picks urp ON urp.id = mp.user_round_pick_id
		JOIN rounds r ON r.id = urp.round_id
		WHERE r.tournament_id = $1 AND urp.is_draft = FALSE AND mp.is_winner_correct IS NOT NULL
		ORDER BY urp.user_id, mp.match_id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scored picks of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	scored := make([]models.ScoredPick, 0)
	for rows.Next() {
		var sp models.ScoredPick
		if scanErr := rows.Scan(&sp.UserID, &sp.MatchID, &sp.PointsEarned); scanErr != nil {
			return nil, fmt.Errorf("failed to scan scored pick: %w", scanErr)
		}
		scored = append(scored, sp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return scored, nil
}

// ListUserStreakEvents returns every scored final prediction of the user across live tournaments,
// ordered by finalized_at, round_number, match_number.
func (r *postgresPickRepository) ListUserStreakEvents(ctx context.Context, exec SQLExecutor, userID int) ([]models.StreakEvent, error) {
	query := `
		SELECT mp.match_id, mp.is_winner_correct
		FROM match_picks mp
		JOIN user_round_picks urp ON urp.id = mp.user_round_pick_id
		JOIN matches m ON m.id = mp.match_id
		JOIN rounds r ON r.id = m.round_id
		JOIN tournaments t ON t.id = r.tournament_id
		WHERE urp.user_id = $1 AND urp.is_draft = FALSE
			AND mp.is_winner_correct IS NOT NULL AND t.deleted_at IS NULL
		ORDER BY m.finalized_at, r.round_number, m.match_number, m.id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streak events of user %d: %w", userID, err)
	}
	defer rows.Close()

	events := make([]models.StreakEvent, 0)
	for rows.Next() {
		var ev models.StreakEvent
		if scanErr := rows.Scan(&ev.MatchID, &ev.IsWinnerCorrect); scanErr != nil {
			return nil, fmt.Errorf("failed to scan streak event: %w", scanErr)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *postgresPickRepository) handlePickError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := pqConstraint(err, pqUniqueViolation); ok {
		switch constraint {
		case "user_round_picks_user_id_round_id_key":
			return ErrPickConflict
		case "match_picks_user_round_pick_id_match_id_key":
			return ErrMatchPickDuplicate
		}
	}
	if constraint, ok := pqConstraint(err, pqForeignKeyViolation); ok {
		if constraint == "match_picks_match_id_fkey" {
			return ErrMatchNotFound
		}
		return ErrRoundNotFound
	}
	return err
}
