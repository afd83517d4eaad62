package repositories

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPickErrorMapping(t *testing.T) {
	r := &postgresPickRepository{}

	err := r.handlePickError(&pq.Error{Code: pqUniqueViolation, Constraint: "user_round_picks_user_id_round_id_key"})
	assert.ErrorIs(t, err, ErrPickConflict)

	err = r.handlePickError(&pq.Error{Code: pqUniqueViolation, Constraint: "match_picks_user_round_pick_id_match_id_key"})
	assert.ErrorIs(t, err, ErrMatchPickDuplicate)

	err = r.handlePickError(&pq.Error{Code: pqForeignKeyViolation, Constraint: "match_picks_match_id_fkey"})
	assert.ErrorIs(t, err, ErrMatchNotFound)

	other := errors.New("connection reset")
	assert.Same(t, other, r.handlePickError(other))
	assert.NoError(t, r.handlePickError(nil))
}

func TestRoundErrorMapping(t *testing.T) {
	r := &postgresRoundRepository{}

	assert.ErrorIs(t, r.handleRoundError(&pq.Error{Code: pqUniqueViolation, Constraint: "rounds_one_active_per_tournament"}), ErrRoundActiveConflict)
	assert.ErrorIs(t, r.handleRoundError(&pq.Error{Code: pqUniqueViolation, Constraint: "rounds_tournament_id_round_number_key"}), ErrRoundNumberConflict)
	assert.ErrorIs(t, r.handleRoundError(&pq.Error{Code: pqForeignKeyViolation}), ErrTournamentNotFound)
}
