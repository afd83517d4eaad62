package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-picks/models"
)

var ErrStreakNotFound = errors.New("streak not found")

type StreakRepository interface {
	Get(ctx context.Context, exec SQLExecutor, userID int) (*models.UserStreak, error)
	Upsert(ctx context.Context, exec SQLExecutor, streak *models.UserStreak) error
}

type postgresStreakRepository struct {
	db *sql.DB
}

func NewPostgresStreakRepository(db *sql.DB) StreakRepository {
	return &postgresStreakRepository{db: db}
}

func (r *postgresStreakRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStreakRepository) Get(ctx context.Context, exec SQLExecutor, userID int) (*models.UserStreak, error) {
	query := `SELECT user_id, current_streak, longest_streak, last_match_id, updated_at FROM user_streaks WHERE user_id = $1`
	s := &models.UserStreak{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, userID).
		Scan(&s.UserID, &s.CurrentStreak, &s.LongestStreak, &s.LastMatchID, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStreakNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresStreakRepository) Upsert(ctx context.Context, exec SQLExecutor, s *models.UserStreak) error {
	query := `
		INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_match_id, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_match_id = EXCLUDED.last_match_id,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, s.UserID, s.CurrentStreak, s.LongestStreak, s.LastMatchID).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert streak of user %d: %w", s.UserID, err)
	}
	return nil
}
