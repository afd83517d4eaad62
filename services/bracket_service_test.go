package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/bracket-picks/brackets"
	"github.com/Dosada05/bracket-picks/models"
)

func TestPropagateWinner_RoundOf32(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.seedActive(t, 16, models.FormatBestOf5)
	rounds := env.rounds(t, tournament.ID)
	r32, r16 := rounds[0], rounds[1]
	require.Equal(t, 16, r32.MatchCount)

	first := env.roundMatches(t, r32.ID)
	m5, m6 := first[4], first[5]
	require.Equal(t, "P9", *m5.Player1Name)

	_, err := env.matches.FinalizeMatch(ctx, 1, m5.ID, FinalizeMatchInput{WinnerName: "P9", SetsWon: 3, SetsLost: 1})
	require.NoError(t, err)
	_, err = env.matches.FinalizeMatch(ctx, 1, m6.ID, FinalizeMatchInput{WinnerName: "P12", SetsWon: 3, SetsLost: 2})
	require.NoError(t, err)

	dest, err := env.matchRepo.GetByRoundAndNumber(ctx, nil, r16.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "P9", *dest.Player1Name)
	require.NotNil(t, dest.Player1Seed)
	assert.Equal(t, 9, *dest.Player1Seed)
	assert.Equal(t, "P12", *dest.Player2Name)
	assert.Nil(t, dest.Player2Seed)

	// Повторная запись ничего не меняет.
	finalized := env.match(t, m5.ID)
	changed, err := env.brackets.PropagateWinner(ctx, nil, finalized, &r32)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, *dest, *env.match(t, dest.ID))

	others, err := env.matchRepo.GetByRoundAndNumber(ctx, nil, r16.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, models.PlayerTBD, *others.Player1Name)
}

func TestPropagateWinner_FinalHasNoDestination(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.seedActive(t, 1, models.FormatBestOf3)
	rounds := env.rounds(t, tournament.ID)
	require.Len(t, rounds, 1)

	final := env.roundMatches(t, rounds[0].ID)[0]
	res, err := env.matches.FinalizeMatch(context.Background(), 1, final.ID, FinalizeMatchInput{WinnerName: "P2", SetsWon: 2, SetsLost: 0})
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.True(t, res.RoundFinalized)
}

func TestPropagateWinner_FinalizedDestinationConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.seedActive(t, 2, models.FormatBestOf5)
	rounds := env.rounds(t, tournament.ID)
	first := env.roundMatches(t, rounds[0].ID)
	final := env.roundMatches(t, rounds[1].ID)[0]

	env.setPlayers(t, final.ID, "P2", "P3")
	env.forceFinalize(t, final.ID, "P2")
	env.forceFinalize(t, first[0].ID, "P1")

	_, err := env.brackets.PropagateWinner(ctx, nil, env.match(t, first[0].ID), &rounds[0])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAdvancementConflict)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, "P2", *env.match(t, final.ID).Player1Name)
}

func TestBackfillAdvancement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.seedActive(t, 4, models.FormatBestOf5)
	rounds := env.rounds(t, tournament.ID)
	first := env.roundMatches(t, rounds[0].ID)
	second := env.roundMatches(t, rounds[1].ID)
	final := env.roundMatches(t, rounds[2].ID)[0]

	for _, m := range first {
		env.forceFinalize(t, m.ID, *m.Player1Name)
	}
	// Semifinal 1 already carries its players and result; semifinal 2 is still TBD.
	env.setPlayers(t, second[0].ID, "P1", "P3")
	env.forceFinalize(t, second[0].ID, "P1")

	report, err := env.brackets.BackfillAdvancement(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RoundsProcessed)
	assert.Equal(t, 3, report.SlotsWritten)
	assert.Nil(t, report.FailedRound)

	sf2 := env.match(t, second[1].ID)
	assert.Equal(t, "P5", *sf2.Player1Name)
	assert.Equal(t, "P7", *sf2.Player2Name)
	assert.Equal(t, "P1", *env.match(t, final.ID).Player1Name)
	assert.Equal(t, models.PlayerTBD, *env.match(t, final.ID).Player2Name)

	again, err := env.brackets.BackfillAdvancement(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Zero(t, again.SlotsWritten)

	bracketEvents := 0
	for _, ev := range env.publisher.events {
		if ev.Type == brackets.MessageBracketUpdated {
			bracketEvents++
		}
	}
	assert.Equal(t, 1, bracketEvents)
}

func TestBackfillAdvancement_StopsAtFailingRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.seedActive(t, 4, models.FormatBestOf5)
	rounds := env.rounds(t, tournament.ID)
	first := env.roundMatches(t, rounds[0].ID)
	second := env.roundMatches(t, rounds[1].ID)
	final := env.roundMatches(t, rounds[2].ID)[0]

	for _, m := range first {
		env.forceFinalize(t, m.ID, *m.Player1Name)
	}
	env.setPlayers(t, second[0].ID, "P1", "P3")
	env.forceFinalize(t, second[0].ID, "P1")
	env.setPlayers(t, final.ID, "P99", models.PlayerTBD)
	env.forceFinalize(t, final.ID, "P99")

	report, err := env.brackets.BackfillAdvancement(ctx, tournament.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAdvancementConflict)
	require.NotNil(t, report)
	require.NotNil(t, report.FailedRound)
	assert.Equal(t, 2, *report.FailedRound)
	require.NotNil(t, report.FailedMatch)
	assert.Equal(t, second[0].ID, *report.FailedMatch)
	assert.Equal(t, 1, report.RoundsProcessed)
	assert.Equal(t, 2, report.SlotsWritten)

	// Round 1 committed before the failure.
	sf2 := env.match(t, second[1].ID)
	assert.Equal(t, "P5", *sf2.Player1Name)
	assert.Equal(t, "P7", *sf2.Player2Name)
}

func TestGetBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.seedActive(t, 4, models.FormatBestOf3)

	bracket, err := env.brackets.GetBracket(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, bracket.Rounds, 3)
	for i, want := range []int{4, 2, 1} {
		assert.Len(t, bracket.Rounds[i].Matches, want)
		assert.Equal(t, want, bracket.Rounds[i].MatchCount)
	}
	assert.True(t, bracket.Rounds[0].IsActive)

	_, err = env.brackets.GetBracket(ctx, 999)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
