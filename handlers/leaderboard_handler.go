package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dosada05/bracket-picks/services"
)

const maxProgressionUsers = 50

type LeaderboardHandler struct {
	rankingService services.RankingService
}

func NewLeaderboardHandler(rs services.RankingService) *LeaderboardHandler {
	return &LeaderboardHandler{rankingService: rs}
}

// GlobalHandler обрабатывает GET /leaderboard
func (h *LeaderboardHandler) GlobalHandler(w http.ResponseWriter, r *http.Request) {
	board, err := h.rankingService.GlobalLeaderboard(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TournamentHandler обрабатывает GET /tournaments/{tournamentID}/leaderboard
func (h *LeaderboardHandler) TournamentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	board, err := h.rankingService.TournamentLeaderboard(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RoundHandler обрабатывает GET /rounds/{roundID}/leaderboard
func (h *LeaderboardHandler) RoundHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	board, err := h.rankingService.RoundLeaderboard(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UserStatsHandler обрабатывает GET /users/{userID}/stats?tournament_id=
func (h *LeaderboardHandler) UserStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var tournamentID *int
	if id, ok, err := queryInt(r, "tournament_id"); err != nil || ok && id == 0 {
		badRequestResponse(w, r, errors.New("invalid tournament_id query parameter"))
		return
	} else if ok {
		tournamentID = &id
	}

	stats, err := h.rankingService.UserStats(r.Context(), userID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StreakHandler обрабатывает GET /users/{userID}/streak
func (h *LeaderboardHandler) StreakHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	streak, err := h.rankingService.Streak(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"streak": streak}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ProgressionHandler обрабатывает GET /tournaments/{tournamentID}/progression?users=1,2&top=5&by=round
func (h *LeaderboardHandler) ProgressionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userIDs, err := parseIDList(r.URL.Query().Get("users"))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	topN, _, err := queryInt(r, "top")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var byRound bool
	switch by := r.URL.Query().Get("by"); by {
	case "", "match":
	case "round":
		byRound = true
	default:
		badRequestResponse(w, r, errors.New("invalid by query parameter, expected match or round"))
		return
	}

	progression, err := h.rankingService.Progression(r.Context(), id, userIDs, topN, byRound)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"progression": progression}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// parseIDList разбирает "1,2,3"; пустая строка даёт nil.
func parseIDList(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) > maxProgressionUsers {
		return nil, errors.New("too many users requested")
	}
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, errors.New("invalid users query parameter")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
