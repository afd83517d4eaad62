package handlers

import (
	"net/http"

	"github.com/Dosada05/bracket-picks/services"
)

type PickHandler struct {
	pickService services.PickService
}

func NewPickHandler(ps services.PickService) *PickHandler {
	return &PickHandler{pickService: ps}
}

type savePicksRequest struct {
	Picks []services.PickInput `json:"picks"`
}

// SaveDraftHandler обрабатывает PUT /rounds/{roundID}/picks/draft
func (h *PickHandler) SaveDraftHandler(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, false)
}

// SubmitFinalHandler обрабатывает POST /rounds/{roundID}/picks/final
func (h *PickHandler) SubmitFinalHandler(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, true)
}

func (h *PickHandler) save(w http.ResponseWriter, r *http.Request, final bool) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req savePicksRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	save := h.pickService.SaveDraft
	status := http.StatusOK
	if final {
		save = h.pickService.SubmitFinal
		status = http.StatusCreated
	}
	picks, err := save(r.Context(), userID, roundID, req.Picks)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, status, jsonResponse{"picks": picks}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetPicksHandler обрабатывает GET /rounds/{roundID}/picks/{userID}.
// Чужие прогнозы видны только после отправки своих финальных.
func (h *PickHandler) GetPicksHandler(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	ownerID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	picks, err := h.pickService.GetPicks(r.Context(), viewerID, ownerID, roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"picks": picks}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CompareHandler обрабатывает GET /tournaments/{tournamentID}/compare/{userID}
func (h *PickHandler) CompareHandler(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	otherID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rounds, err := h.pickService.ComparePicks(r.Context(), viewerID, otherID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rounds": rounds}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
