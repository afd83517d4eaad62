package handlers

import (
	"net/http"

	"github.com/Dosada05/bracket-picks/models"
	"github.com/Dosada05/bracket-picks/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// FinalizeHandler обрабатывает POST /admin/matches/{matchID}/finalize
func (h *MatchHandler) FinalizeHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input services.FinalizeMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.matchService.FinalizeMatch(r.Context(), adminID, matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateScoringRuleHandler обрабатывает PUT /admin/rounds/{roundID}/scoring-rule.
// Уже начисленные очки не пересчитываются, для этого есть recalculate.
func (h *MatchHandler) UpdateScoringRuleHandler(w http.ResponseWriter, r *http.Request) {
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var rule models.ScoringRule
	if err := readJSON(w, r, &rule); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	round, err := h.matchService.UpdateScoringRule(r.Context(), roundID, rule)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"round": round}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecalculateRoundHandler обрабатывает POST /admin/rounds/{roundID}/recalculate
func (h *MatchHandler) RecalculateRoundHandler(w http.ResponseWriter, r *http.Request) {
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.matchService.RecalculateRound(r.Context(), roundID)
	if err != nil {
		if report == nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		partialReportResponse(w, r, err, report)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
