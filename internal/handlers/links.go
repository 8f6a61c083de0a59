package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhortlabs/zhort/internal/access"
	"github.com/zhortlabs/zhort/internal/cache"
	"github.com/zhortlabs/zhort/internal/code"
	"github.com/zhortlabs/zhort/internal/config"
	"github.com/zhortlabs/zhort/internal/models"
	"github.com/zhortlabs/zhort/internal/ratelimit"
	"github.com/zhortlabs/zhort/internal/safety"
	"github.com/zhortlabs/zhort/internal/webhooks"
)

type LinkHandler struct {
	DB      *sql.DB
	Cfg     *config.Config
	Links   *cache.LinkCache
	Configs *cache.ConfigCache
	Safety  *safety.Checker
	Limiter *ratelimit.Limiter
	Hooks   *webhooks.Dispatcher
}

type linkRequest struct {
	Code        string `json:"code"`
	Destination string `json:"destination"`
	Password    string `json:"password"`
	ExpiresAt   string `json:"expires_at"`
	OwnerID     *int64 `json:"owner_id"`
	TeamID      *int64 `json:"team_id"`
	IsPublic    bool   `json:"is_public"`

	// Masking fields are pointers so a partial update can leave them alone.
	EnableFrame      *bool   `json:"enable_frame"`
	EnableSplash     *bool   `json:"enable_splash"`
	SplashDurationMs *int    `json:"splash_duration_ms"`
	SplashHTML       *string `json:"splash_html"`
}

func (req *linkRequest) applyMasking(m *models.MaskingConfig) {
	if req.EnableFrame != nil {
		m.EnableFrame = *req.EnableFrame
	}
	if req.EnableSplash != nil {
		m.EnableSplash = *req.EnableSplash
	}
	if req.SplashDurationMs != nil {
		m.SplashDurationMs = *req.SplashDurationMs
	}
	if req.SplashHTML != nil {
		m.SplashHTML = *req.SplashHTML
	}
}

type listResponse struct {
	Links  []models.Link `json:"links"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Create handles authenticated link creation.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, ratelimit.ActionCreateAuth)
}

// CreateAnonymous is the public creation endpoint, registered only when
// anonymous creation is enabled. It shares the flow but draws from the
// stricter per-IP budget.
func (h *LinkHandler) CreateAnonymous(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, ratelimit.ActionCreateAnon)
}

func (h *LinkHandler) create(w http.ResponseWriter, r *http.Request, action string) {
	rl := h.Limiter.Check(clientIP(r), action)
	setRateLimitHeaders(w, &rl)
	if !rl.Allowed {
		jsonError(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if !validDestination(req.Destination) {
		jsonError(w, "destination must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}
	if h.Safety.IsBlocked(req.Destination) {
		jsonError(w, "destination is not allowed", http.StatusUnprocessableEntity)
		return
	}

	if req.Code != "" {
		if err := code.ValidateCustom(req.Code); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		exists, err := models.CodeExists(h.DB, req.Code)
		if err != nil {
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		if exists {
			jsonError(w, "code already in use", http.StatusConflict)
			return
		}
	} else {
		generated, err := h.generateCode()
		if err != nil {
			jsonError(w, "failed to generate code", http.StatusInternalServerError)
			return
		}
		req.Code = generated
	}

	link := &models.Link{
		Code:        req.Code,
		Destination: req.Destination,
		OwnerID:     req.OwnerID,
		TeamID:      req.TeamID,
		IsPublic:    req.IsPublic,
	}
	req.applyMasking(&link.Masking)

	if req.Password != "" {
		hash, err := access.HashPassword(req.Password)
		if err != nil {
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		link.PasswordHash = hash
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			jsonError(w, "expires_at must be RFC3339", http.StatusBadRequest)
			return
		}
		link.ExpiresAt = &t
	}

	if err := models.CreateLink(h.DB, link); err != nil {
		jsonError(w, "failed to create link: "+err.Error(), http.StatusInternalServerError)
		return
	}
	link.FillShortURL(h.Cfg.BaseURL)

	if link.OwnerID != nil {
		h.Hooks.Dispatch(*link.OwnerID, models.EventLinkCreated, link)
	}

	writeJSON(w, http.StatusCreated, link)
}

// generateCode retries on the rare collision with an existing code.
func (h *LinkHandler) generateCode() (string, error) {
	for i := 0; i < 10; i++ {
		candidate, err := code.Generate()
		if err != nil {
			return "", err
		}
		exists, err := models.CodeExists(h.DB, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", errors.New("could not find a free code")
}

func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 25
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	links, total, err := models.ListLinks(h.DB, limit, offset)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if links == nil {
		links = []models.Link{}
	}
	for i := range links {
		links[i].FillShortURL(h.Cfg.BaseURL)
	}

	writeJSON(w, http.StatusOK, listResponse{Links: links, Total: total, Limit: limit, Offset: offset})
}

func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}
	link.FillShortURL(h.Cfg.BaseURL)
	writeJSON(w, http.StatusOK, link)
}

func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}
	oldCode := link.Code

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Destination != "" {
		if !validDestination(req.Destination) {
			jsonError(w, "destination must be an absolute http(s) URL", http.StatusBadRequest)
			return
		}
		if h.Safety.IsBlocked(req.Destination) {
			jsonError(w, "destination is not allowed", http.StatusUnprocessableEntity)
			return
		}
		link.Destination = req.Destination
	}
	if req.Code != "" && req.Code != link.Code {
		if err := code.ValidateCustom(req.Code); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		exists, err := models.CodeExists(h.DB, req.Code)
		if err != nil {
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		if exists {
			jsonError(w, "code already in use", http.StatusConflict)
			return
		}
		link.Code = req.Code
	}
	if req.Password != "" {
		hash, err := access.HashPassword(req.Password)
		if err != nil {
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		link.PasswordHash = hash
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			jsonError(w, "expires_at must be RFC3339", http.StatusBadRequest)
			return
		}
		link.ExpiresAt = &t
	}
	req.applyMasking(&link.Masking)

	if err := models.UpdateLink(h.DB, link); err != nil {
		jsonError(w, "failed to update: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.Links.Invalidate(oldCode)
	h.Links.Invalidate(link.Code)
	h.Configs.Invalidate(link.ID)

	link.FillShortURL(h.Cfg.BaseURL)
	writeJSON(w, http.StatusOK, link)
}

// Archive soft-deletes: the code stops resolving but the click history
// stays queryable.
func (h *LinkHandler) Archive(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}

	if err := models.ArchiveLink(h.DB, link.ID); err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.Links.Invalidate(link.Code)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LinkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}

	stats, err := models.LinkStatsFor(h.DB, link.ID, link.CreatedAt)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *LinkHandler) loadLink(w http.ResponseWriter, r *http.Request) (*models.Link, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}
	link := &models.Link{ID: id}
	if err := models.GetLinkByID(h.DB, link); err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "not found", http.StatusNotFound)
			return nil, false
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return link, true
}

func validDestination(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
