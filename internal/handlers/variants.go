package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhortlabs/zhort/internal/models"
	"github.com/zhortlabs/zhort/internal/variants"
)

type VariantHandler struct {
	DB       *sql.DB
	Selector *variants.Selector
}

type variantRequest struct {
	TargetURL  string `json:"target_url"`
	Percentage int    `json:"percentage"`
}

type winnerRequest struct {
	VariantID int64 `json:"variant_id"`
	Auto      bool  `json:"auto"`
}

// Create adds an A/B variant to a link.
func (h *VariantHandler) Create(w http.ResponseWriter, r *http.Request) {
	linkID, ok := linkIDParam(w, r)
	if !ok {
		return
	}

	var req variantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !validDestination(req.TargetURL) {
		jsonError(w, "target_url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}

	v := &models.Variant{LinkID: linkID, TargetURL: req.TargetURL, Percentage: req.Percentage}
	if err := models.CreateVariant(h.DB, v); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *VariantHandler) List(w http.ResponseWriter, r *http.Request) {
	linkID, ok := linkIDParam(w, r)
	if !ok {
		return
	}
	vs, err := models.VariantsForLink(h.DB, linkID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if vs == nil {
		vs = []models.Variant{}
	}
	writeJSON(w, http.StatusOK, vs)
}

// Convert records a conversion for a variant. Called by the destination
// site, never by the redirect path.
func (h *VariantHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.Selector.TrackConversion(id); err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "not found", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Winner pins a variant explicitly, or picks the best-converting one when
// auto is set. The winner takes all subsequent traffic.
func (h *VariantHandler) Winner(w http.ResponseWriter, r *http.Request) {
	linkID, ok := linkIDParam(w, r)
	if !ok {
		return
	}

	var req winnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Auto {
		winner, err := h.Selector.SetWinnerAuto(linkID)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, winner)
		return
	}

	if req.VariantID == 0 {
		jsonError(w, "variant_id or auto is required", http.StatusBadRequest)
		return
	}
	if err := h.Selector.PinWinner(linkID, req.VariantID); err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "variant not found", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	v, err := models.GetVariant(h.DB, req.VariantID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func linkIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
