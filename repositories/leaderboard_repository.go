package repositories

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Dosada05/bracket-picks/models"
)

// LeaderboardFilter narrows the aggregation. Both nil means the global board.
type LeaderboardFilter struct {
	TournamentID *int
	RoundID      *int
}

type LeaderboardRepository interface {
	// Aggregate sums final round picks per user. Entries come back unranked and unordered.
	Aggregate(ctx context.Context, filter LeaderboardFilter) ([]models.LeaderboardEntry, error)
}

type postgresLeaderboardRepository struct {
	db *sql.DB
}

func NewPostgresLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &postgresLeaderboardRepository{db: db}
}

func aggregateQuery(filter LeaderboardFilter) sq.SelectBuilder {
	scored := psql.Select("user_round_pick_id", "COUNT(*) AS cnt").
		From("match_picks").
		Where(sq.NotEq{"is_winner_correct": nil}).
		GroupBy("user_round_pick_id")

	qb := psql.Select(
		"urp.user_id",
		"COALESCE(SUM(urp.total_points), 0)",
		"COALESCE(SUM(urp.correct_winners), 0)",
		"COALESCE(SUM(urp.exact_scores), 0)",
		"COALESCE(SUM(sc.cnt), 0)",
		"MIN(urp.submitted_at)",
	).
		From("user_round_picks urp").
		Join("rounds r ON r.id = urp.round_id").
		Join("tournaments t ON t.id = r.tournament_id").
		JoinClause(scored.Prefix("LEFT JOIN (").Suffix(") sc ON sc.user_round_pick_id = urp.id")).
		Where(sq.Eq{"urp.is_draft": false, "t.deleted_at": nil})

	if filter.TournamentID != nil {
		qb = qb.Where(sq.Eq{"r.tournament_id": *filter.TournamentID})
	}
	if filter.RoundID != nil {
		qb = qb.Where(sq.Eq{"urp.round_id": *filter.RoundID})
	}
	return qb.GroupBy("urp.user_id")
}

func (r *postgresLeaderboardRepository) Aggregate(ctx context.Context, filter LeaderboardFilter) ([]models.LeaderboardEntry, error) {
	query, args, err := aggregateQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0)
	for rows.Next() {
		var e models.LeaderboardEntry
		if scanErr := rows.Scan(&e.UserID, &e.TotalPoints, &e.CorrectWinners, &e.ExactScores, &e.TotalPredictions, &e.EarliestSubmission); scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
