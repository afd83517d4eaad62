package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/repositories"
)

// memStore is an in-memory stand-in for the Postgres schema. Rows are stored by value so a
// snapshot is a copy of the maps; a failed transaction restores the snapshot.
type memStore struct {
	mu          sync.Mutex
	nextID      int
	tournaments map[int]models.Tournament
	rounds      map[int]models.Round
	matches     map[int]models.Match
	picks       map[int]models.UserRoundPick
	matchPicks  map[int]models.MatchPick
	streaks     map[int]models.UserStreak

	// failures injects an error into the named operation, e.g. "UpdatePlayerSlot".
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		tournaments: map[int]models.Tournament{},
		rounds:      map[int]models.Round{},
		matches:     map[int]models.Match{},
		picks:       map[int]models.UserRoundPick{},
		matchPicks:  map[int]models.MatchPick{},
		streaks:     map[int]models.UserStreak{},
		failures:    map[string]error{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) fail(op string) error {
	return s.failures[op]
}

type memSnapshot struct {
	nextID      int
	tournaments map[int]models.Tournament
	rounds      map[int]models.Round
	matches     map[int]models.Match
	picks       map[int]models.UserRoundPick
	matchPicks  map[int]models.MatchPick
	streaks     map[int]models.UserStreak
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		nextID:      s.nextID,
		tournaments: copyMap(s.tournaments),
		rounds:      copyMap(s.rounds),
		matches:     copyMap(s.matches),
		picks:       copyMap(s.picks),
		matchPicks:  copyMap(s.matchPicks),
		streaks:     copyMap(s.streaks),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.tournaments = snap.tournaments
	s.rounds = snap.rounds
	s.matches = snap.matches
	s.picks = snap.picks
	s.matchPicks = snap.matchPicks
	s.streaks = snap.streaks
}

type memTransactor struct {
	store *memStore
	runs  int
}

func (t *memTransactor) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.runs++
	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// --- tournaments ---

type fakeTournamentRepo struct{ s *memStore }

func (r fakeTournamentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !t.Format.IsValid() {
		return repositories.ErrTournamentInvalidFormat
	}
	t.ID = r.s.id()
	t.CreatedAt = time.Now()
	row := *t
	row.Rounds = nil
	r.s.tournaments[t.ID] = row
	return nil
}

func (r fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &t, nil
}

func (r fakeTournamentRepo) LockByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.s.tournaments {
		if t.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeTournamentRepo) update(id int, fn func(t *models.Tournament)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	fn(&t)
	r.s.tournaments[id] = t
	return nil
}

func (r fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	return r.update(id, func(t *models.Tournament) { t.Status = status })
}

func (r fakeTournamentRepo) SetCurrentRound(ctx context.Context, exec repositories.SQLExecutor, id int, roundNumber *int) error {
	return r.update(id, func(t *models.Tournament) { t.CurrentRoundNumber = roundNumber })
}

func (r fakeTournamentRepo) SoftDelete(ctx context.Context, exec repositories.SQLExecutor, id int, at time.Time) error {
	return r.update(id, func(t *models.Tournament) { t.DeletedAt = &at })
}

func (r fakeTournamentRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.s.tournaments, id)
	for rid, rd := range r.s.rounds {
		if rd.TournamentID != id {
			continue
		}
		delete(r.s.rounds, rid)
		for mid, m := range r.s.matches {
			if m.RoundID == rid {
				delete(r.s.matches, mid)
			}
		}
	}
	return nil
}

func (r fakeTournamentRepo) HasPredictions(ctx context.Context, exec repositories.SQLExecutor, id int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.picks {
		if r.s.rounds[p.RoundID].TournamentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeTournamentRepo) HasFinalizedMatches(ctx context.Context, exec repositories.SQLExecutor, id int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.matches {
		if m.IsFinalized() && r.s.rounds[m.RoundID].TournamentID == id {
			return true, nil
		}
	}
	return false, nil
}

// --- rounds ---

type fakeRoundRepo struct{ s *memStore }

func (r fakeRoundRepo) Create(ctx context.Context, exec repositories.SQLExecutor, rd *models.Round) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.rounds {
		if other.TournamentID == rd.TournamentID && other.RoundNumber == rd.RoundNumber {
			return repositories.ErrRoundNumberConflict
		}
	}
	rd.ID = r.s.id()
	row := *rd
	row.Matches = nil
	r.s.rounds[rd.ID] = row
	return nil
}

func (r fakeRoundRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Round, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rd, ok := r.s.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	return &rd, nil
}

func (r fakeRoundRepo) GetByNumber(ctx context.Context, exec repositories.SQLExecutor, tournamentID, roundNumber int) (*models.Round, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rd := range r.s.rounds {
		if rd.TournamentID == tournamentID && rd.RoundNumber == roundNumber {
			return &rd, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (r fakeRoundRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.Round, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Round, 0)
	for _, rd := range r.s.rounds {
		if rd.TournamentID == tournamentID {
			out = append(out, rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r fakeRoundRepo) update(id int, fn func(rd *models.Round) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rd, ok := r.s.rounds[id]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	if err := fn(&rd); err != nil {
		return err
	}
	r.s.rounds[id] = rd
	return nil
}

func (r fakeRoundRepo) DeactivateAll(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, rd := range r.s.rounds {
		if rd.TournamentID == tournamentID && rd.IsActive {
			rd.IsActive = false
			r.s.rounds[id] = rd
		}
	}
	return nil
}

func (r fakeRoundRepo) SetActive(ctx context.Context, exec repositories.SQLExecutor, id int, active bool) error {
	r.s.mu.Lock()
	target, ok := r.s.rounds[id]
	if ok && active {
		for oid, other := range r.s.rounds {
			if oid != id && other.TournamentID == target.TournamentID && other.IsActive {
				r.s.mu.Unlock()
				return repositories.ErrRoundActiveConflict
			}
		}
	}
	r.s.mu.Unlock()
	return r.update(id, func(rd *models.Round) error { rd.IsActive = active; return nil })
}

func (r fakeRoundRepo) SetFinalized(ctx context.Context, exec repositories.SQLExecutor, id int, finalized bool) error {
	return r.update(id, func(rd *models.Round) error { rd.IsFinalized = finalized; return nil })
}

func (r fakeRoundRepo) UpdateSchedule(ctx context.Context, exec repositories.SQLExecutor, in *models.Round) error {
	return r.update(in.ID, func(rd *models.Round) error {
		rd.OpensAt, rd.Deadline, rd.SubmissionsClosedAt = in.OpensAt, in.Deadline, in.SubmissionsClosedAt
		return nil
	})
}

func (r fakeRoundRepo) UpdateScoringRule(ctx context.Context, exec repositories.SQLExecutor, id int, rule models.ScoringRule) error {
	return r.update(id, func(rd *models.Round) error { rd.ScoringRule = rule; return nil })
}

// --- matches ---

type fakeMatchRepo struct{ s *memStore }

func (r fakeMatchRepo) withRound(m models.Match) models.Match {
	m.RoundNumber = r.s.rounds[m.RoundID].RoundNumber
	return m
}

func (r fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rounds[m.RoundID]; !ok {
		return repositories.ErrRoundNotFound
	}
	if m.Status == "" {
		m.Status = models.MatchStatusPending
	}
	m.ID = r.s.id()
	r.s.matches[m.ID] = *m
	return nil
}

func (r fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	m = r.withRound(m)
	return &m, nil
}

func (r fakeMatchRepo) LockByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, exec, id)
}

func (r fakeMatchRepo) GetByRoundAndNumber(ctx context.Context, exec repositories.SQLExecutor, roundID, matchNumber int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.matches {
		if m.RoundID == roundID && m.MatchNumber == matchNumber {
			m = r.withRound(m)
			return &m, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r fakeMatchRepo) filter(keep func(m models.Match) bool) []models.Match {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Match, 0)
	for _, m := range r.s.matches {
		if keep(m) {
			out = append(out, r.withRound(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out
}

func (r fakeMatchRepo) ListByRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) ([]models.Match, error) {
	if err := r.s.fail("ListByRound"); err != nil {
		return nil, err
	}
	return r.filter(func(m models.Match) bool { return m.RoundID == roundID }), nil
}

func (r fakeMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.Match, error) {
	return r.filter(func(m models.Match) bool { return r.s.rounds[m.RoundID].TournamentID == tournamentID }), nil
}

func (r fakeMatchRepo) ListFinalizedByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.Match, error) {
	out := r.filter(func(m models.Match) bool {
		return m.IsFinalized() && r.s.rounds[m.RoundID].TournamentID == tournamentID
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.FinalizedAt.Equal(*b.FinalizedAt) {
			return a.FinalizedAt.Before(*b.FinalizedAt)
		}
		if a.RoundNumber != b.RoundNumber {
			return a.RoundNumber < b.RoundNumber
		}
		return a.MatchNumber < b.MatchNumber
	})
	return out, nil
}

func (r fakeMatchRepo) update(id int, fn func(m *models.Match)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	fn(&m)
	r.s.matches[id] = m
	return nil
}

func (r fakeMatchRepo) UpdatePlayers(ctx context.Context, exec repositories.SQLExecutor, in *models.Match) error {
	return r.update(in.ID, func(m *models.Match) {
		m.Player1Name, m.Player1Seed, m.Player2Name, m.Player2Seed = in.Player1Name, in.Player1Seed, in.Player2Name, in.Player2Seed
	})
}

func (r fakeMatchRepo) UpdatePlayerSlot(ctx context.Context, exec repositories.SQLExecutor, matchID, slot int, name string, seed *int) error {
	if err := r.s.fail("UpdatePlayerSlot"); err != nil {
		return err
	}
	return r.update(matchID, func(m *models.Match) {
		if slot == 1 {
			m.Player1Name, m.Player1Seed = &name, seed
		} else {
			m.Player2Name, m.Player2Seed = &name, seed
		}
	})
}

func (r fakeMatchRepo) Finalize(ctx context.Context, exec repositories.SQLExecutor, in *models.Match) error {
	in.Status = models.MatchStatusFinalized
	return r.update(in.ID, func(m *models.Match) {
		m.Status = models.MatchStatusFinalized
		m.WinnerName, m.FinalScore = in.WinnerName, in.FinalScore
		m.SetsWon, m.SetsLost, m.IsRetirement = in.SetsWon, in.SetsLost, in.IsRetirement
		m.FinalizedAt, m.FinalizedBy = in.FinalizedAt, in.FinalizedBy
	})
}

func (r fakeMatchRepo) CountPendingInRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) (int, error) {
	n := 0
	for _, m := range r.filter(func(m models.Match) bool { return m.RoundID == roundID }) {
		if !m.IsFinalized() {
			n++
		}
	}
	return n, nil
}

// --- picks ---

type fakePickRepo struct{ s *memStore }

func (r fakePickRepo) Get(ctx context.Context, exec repositories.SQLExecutor, userID, roundID int) (*models.UserRoundPick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.picks {
		if p.UserID == userID && p.RoundID == roundID {
			return &p, nil
		}
	}
	return nil, repositories.ErrPickNotFound
}

func (r fakePickRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, userID, roundID int) (*models.UserRoundPick, error) {
	return r.Get(ctx, exec, userID, roundID)
}

func (r fakePickRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.UserRoundPick) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.picks {
		if other.UserID == p.UserID && other.RoundID == p.RoundID {
			return repositories.ErrPickConflict
		}
	}
	p.ID = r.s.id()
	row := *p
	row.MatchPicks = nil
	r.s.picks[p.ID] = row
	return nil
}

func (r fakePickRepo) UpdateState(ctx context.Context, exec repositories.SQLExecutor, in *models.UserRoundPick) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.picks[in.ID]
	if !ok {
		return repositories.ErrPickNotFound
	}
	p.IsDraft, p.SubmittedAt = in.IsDraft, in.SubmittedAt
	r.s.picks[in.ID] = p
	return nil
}

func (r fakePickRepo) UpdateTotals(ctx context.Context, exec repositories.SQLExecutor, pickID int, totals models.PickTotals) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.picks[pickID]
	if !ok {
		return repositories.ErrPickNotFound
	}
	p.TotalPoints, p.CorrectWinners, p.ExactScores = totals.TotalPoints, totals.CorrectWinners, totals.ExactScores
	r.s.picks[pickID] = p
	return nil
}

func (r fakePickRepo) ListMatchPicks(ctx context.Context, exec repositories.SQLExecutor, pickID int) ([]models.MatchPick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.matchPicksOf(pickID), nil
}

// matchPicksOf expects r.s.mu to be held.
func (r fakePickRepo) matchPicksOf(pickID int) []models.MatchPick {
	out := make([]models.MatchPick, 0)
	for _, mp := range r.s.matchPicks {
		if mp.UserRoundPickID == pickID {
			out = append(out, mp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.matches[out[i].MatchID].MatchNumber < r.s.matches[out[j].MatchID].MatchNumber
	})
	return out
}

func (r fakePickRepo) ReplaceMatchPicks(ctx context.Context, exec repositories.SQLExecutor, pickID int, picks []models.MatchPick) error {
	if err := r.s.fail("ReplaceMatchPicks"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, mp := range r.s.matchPicks {
		if mp.UserRoundPickID == pickID {
			delete(r.s.matchPicks, id)
		}
	}
	seen := map[int]bool{}
	for i := range picks {
		if seen[picks[i].MatchID] {
			return repositories.ErrMatchPickDuplicate
		}
		seen[picks[i].MatchID] = true
		picks[i].ID = r.s.id()
		picks[i].UserRoundPickID = pickID
		r.s.matchPicks[picks[i].ID] = picks[i]
	}
	return nil
}

func (r fakePickRepo) ListScorableByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]models.MatchPick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.MatchPick, 0)
	for _, mp := range r.s.matchPicks {
		p := r.s.picks[mp.UserRoundPickID]
		if mp.MatchID == matchID && !p.IsDraft {
			mp.UserID = p.UserID
			out = append(out, mp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakePickRepo) UpdateMatchPickScore(ctx context.Context, exec repositories.SQLExecutor, in *models.MatchPick) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	mp, ok := r.s.matchPicks[in.ID]
	if !ok {
		return repositories.ErrPickNotFound
	}
	mp.IsWinnerCorrect, mp.IsExactScore, mp.PointsEarned = in.IsWinnerCorrect, in.IsExactScore, in.PointsEarned
	r.s.matchPicks[in.ID] = mp
	return nil
}

func (r fakePickRepo) ListFinalByUserAndTournament(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int) ([]models.UserRoundPick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.UserRoundPick, 0)
	for _, p := range r.s.picks {
		if p.UserID == userID && !p.IsDraft && r.s.rounds[p.RoundID].TournamentID == tournamentID {
			p.MatchPicks = r.matchPicksOf(p.ID)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.rounds[out[i].RoundID].RoundNumber < r.s.rounds[out[j].RoundID].RoundNumber
	})
	return out, nil
}

func (r fakePickRepo) ListScoredPicksByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.ScoredPick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.ScoredPick, 0)
	for _, mp := range r.s.matchPicks {
		p := r.s.picks[mp.UserRoundPickID]
		if p.IsDraft || !mp.IsScored() || r.s.rounds[p.RoundID].TournamentID != tournamentID {
			continue
		}
		out = append(out, models.ScoredPick{UserID: p.UserID, MatchID: mp.MatchID, PointsEarned: mp.PointsEarned})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].MatchID < out[j].MatchID
	})
	return out, nil
}

func (r fakePickRepo) ListUserStreakEvents(ctx context.Context, exec repositories.SQLExecutor, userID int) ([]models.StreakEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	type row struct {
		m  models.Match
		rn int
		ok bool
	}
	rows := make([]row, 0)
	for _, mp := range r.s.matchPicks {
		p := r.s.picks[mp.UserRoundPickID]
		if p.UserID != userID || p.IsDraft || !mp.IsScored() {
			continue
		}
		m := r.s.matches[mp.MatchID]
		rd := r.s.rounds[m.RoundID]
		if t := r.s.tournaments[rd.TournamentID]; t.IsDeleted() {
			continue
		}
		rows = append(rows, row{m: m, rn: rd.RoundNumber, ok: *mp.IsWinnerCorrect})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.m.FinalizedAt.Equal(*b.m.FinalizedAt) {
			return a.m.FinalizedAt.Before(*b.m.FinalizedAt)
		}
		if a.rn != b.rn {
			return a.rn < b.rn
		}
		if a.m.MatchNumber != b.m.MatchNumber {
			return a.m.MatchNumber < b.m.MatchNumber
		}
		return a.m.ID < b.m.ID
	})
	out := make([]models.StreakEvent, 0, len(rows))
	for _, rw := range rows {
		out = append(out, models.StreakEvent{MatchID: rw.m.ID, IsWinnerCorrect: rw.ok})
	}
	return out, nil
}

// --- streaks ---

type fakeStreakRepo struct {
	s       *memStore
	upserts *int
}

func (r fakeStreakRepo) Get(ctx context.Context, exec repositories.SQLExecutor, userID int) (*models.UserStreak, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.streaks[userID]
	if !ok {
		return nil, repositories.ErrStreakNotFound
	}
	return &st, nil
}

func (r fakeStreakRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, st *models.UserStreak) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st.UpdatedAt = time.Now()
	r.s.streaks[st.UserID] = *st
	if r.upserts != nil {
		*r.upserts++
	}
	return nil
}

// --- leaderboard ---

type fakeLeaderboardRepo struct {
	s     *memStore
	calls *int
}

func (r fakeLeaderboardRepo) Aggregate(ctx context.Context, filter repositories.LeaderboardFilter) ([]models.LeaderboardEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.calls != nil {
		*r.calls++
	}
	byUser := map[int]*models.LeaderboardEntry{}
	for _, p := range r.s.picks {
		if p.IsDraft {
			continue
		}
		rd := r.s.rounds[p.RoundID]
		if t := r.s.tournaments[rd.TournamentID]; t.IsDeleted() {
			continue
		}
		if filter.TournamentID != nil && rd.TournamentID != *filter.TournamentID {
			continue
		}
		if filter.RoundID != nil && p.RoundID != *filter.RoundID {
			continue
		}
		e, ok := byUser[p.UserID]
		if !ok {
			e = &models.LeaderboardEntry{UserID: p.UserID}
			byUser[p.UserID] = e
		}
		e.TotalPoints += p.TotalPoints
		e.CorrectWinners += p.CorrectWinners
		e.ExactScores += p.ExactScores
		for _, mp := range r.s.matchPicks {
			if mp.UserRoundPickID == p.ID && mp.IsScored() {
				e.TotalPredictions++
			}
		}
		if p.SubmittedAt != nil && (e.EarliestSubmission == nil || p.SubmittedAt.Before(*e.EarliestSubmission)) {
			at := *p.SubmittedAt
			e.EarliestSubmission = &at
		}
	}
	out := make([]models.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, *e)
	}
	return out, nil
}

// --- collaborators ---

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

type publishedEvent struct {
	TournamentID int
	Type         string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishTournamentEvent(tournamentID int, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{TournamentID: tournamentID, Type: eventType})
}

type fakeArchiver struct {
	keys []string
	err  error
}

func (a *fakeArchiver) ArchiveDraw(ctx context.Context, tournamentID int, draw models.ParsedDraw) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := "draws/" + draw.TournamentName
	a.keys = append(a.keys, key)
	return key, nil
}

// testClock advances one second on every reading so finalize timestamps are distinct.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var errInjected = errors.New("injected failure")

// --- environment ---

type testEnv struct {
	store     *memStore
	tx        *memTransactor
	clock     *testClock
	cache     *fakeCache
	publisher *fakePublisher
	archiver  *fakeArchiver
	aggCalls  int
	upserts   int

	tournamentRepo fakeTournamentRepo
	roundRepo      fakeRoundRepo
	matchRepo      fakeMatchRepo
	pickRepo       fakePickRepo

	tournaments TournamentService
	brackets    BracketService
	matches     MatchService
	picks       PickService
	ranking     RankingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	env := &testEnv{
		store:     store,
		tx:        &memTransactor{store: store},
		clock:     &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)},
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		archiver:  &fakeArchiver{},
	}
	env.tournamentRepo = fakeTournamentRepo{s: store}
	env.roundRepo = fakeRoundRepo{s: store}
	env.matchRepo = fakeMatchRepo{s: store}
	env.pickRepo = fakePickRepo{s: store}
	streakRepo := fakeStreakRepo{s: store, upserts: &env.upserts}
	leaderboardRepo := fakeLeaderboardRepo{s: store, calls: &env.aggCalls}

	env.tournaments = NewTournamentService(env.tx, env.tournamentRepo, env.roundRepo, env.matchRepo, env.pickRepo, streakRepo,
		env.archiver, env.cache, logger)
	env.tournaments.(*tournamentService).now = env.clock.Now

	env.brackets = NewBracketService(env.tx, env.tournamentRepo, env.roundRepo, env.matchRepo, env.publisher, logger)

	env.matches = NewMatchService(env.tx, env.tournamentRepo, env.roundRepo, env.matchRepo, env.pickRepo, streakRepo,
		env.brackets, env.cache, env.publisher, logger)
	env.matches.(*matchService).now = env.clock.Now

	env.picks = NewPickService(env.tx, env.tournamentRepo, env.roundRepo, env.matchRepo, env.pickRepo, env.cache, logger)
	env.picks.(*pickService).now = env.clock.Now

	env.ranking = NewRankingService(env.tournamentRepo, env.roundRepo, env.matchRepo, env.pickRepo, streakRepo,
		leaderboardRepo, env.cache, time.Minute, logger)
	return env
}

// drawOf builds a first round of n matches named "P1".."P2n"; odd players are seeded.
func drawOf(n int, format models.TournamentFormat) models.ParsedDraw {
	round := models.ParsedRound{RoundNumber: 1}
	for m := 1; m <= n; m++ {
		round.Matches = append(round.Matches, models.ParsedMatch{
			MatchNumber: m,
			Player1Name: playerName(2*m - 1),
			Player1Seed: intPtr(2*m - 1),
			Player2Name: playerName(2 * m),
		})
	}
	return models.ParsedDraw{TournamentName: "Test Open", Year: 2026, Format: format, Rounds: []models.ParsedRound{round}}
}

func playerName(i int) string {
	return "P" + strconv.Itoa(i)
}

func strPtr(s string) *string { return &s }

// seedActive commits a draw with n first-round matches and activates round 1.
func (env *testEnv) seedActive(t *testing.T, n int, format models.TournamentFormat) *models.Tournament {
	t.Helper()
	ctx := context.Background()
	tournament, err := env.tournaments.CommitDraw(ctx, drawOf(n, format))
	require.NoError(t, err)
	_, err = env.tournaments.ActivateRound(ctx, tournament.ID, 1)
	require.NoError(t, err)
	return tournament
}

func (env *testEnv) roundMatches(t *testing.T, roundID int) []models.Match {
	t.Helper()
	ms, err := env.matchRepo.ListByRound(context.Background(), nil, roundID)
	require.NoError(t, err)
	return ms
}

func (env *testEnv) match(t *testing.T, id int) *models.Match {
	t.Helper()
	m, err := env.matchRepo.GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return m
}

// predictAll picks the player1 of every match of the round to win in straight sets.
func predictAll(matches []models.Match, format models.TournamentFormat) []PickInput {
	out := make([]PickInput, 0, len(matches))
	for _, m := range matches {
		out = append(out, PickInput{MatchID: m.ID, PredictedWinner: *m.Player1Name, PredictedSetsWon: format.SetsToWin()})
	}
	return out
}

// forceFinalize records a result straight into the store, skipping advancement and scoring.
func (env *testEnv) forceFinalize(t *testing.T, matchID int, winner string) {
	t.Helper()
	at := env.clock.Now()
	err := env.matchRepo.Finalize(context.Background(), nil, &models.Match{
		ID:          matchID,
		WinnerName:  &winner,
		FinalScore:  strPtr("3-0"),
		SetsWon:     intPtr(3),
		SetsLost:    intPtr(0),
		FinalizedAt: &at,
	})
	require.NoError(t, err)
}

func (env *testEnv) setPlayers(t *testing.T, matchID int, p1, p2 string) {
	t.Helper()
	err := env.matchRepo.UpdatePlayers(context.Background(), nil, &models.Match{ID: matchID, Player1Name: &p1, Player2Name: &p2})
	require.NoError(t, err)
}

func (env *testEnv) rounds(t *testing.T, tournamentID int) []models.Round {
	t.Helper()
	rs, err := env.roundRepo.ListByTournament(context.Background(), nil, tournamentID)
	require.NoError(t, err)
	return rs
}
