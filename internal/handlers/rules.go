package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zhortlabs/zhort/internal/cache"
	"github.com/zhortlabs/zhort/internal/models"
)

// RuleHandler manages a link's redirect rules and schedules. Writes
// invalidate the config cache so the hot path picks them up.
type RuleHandler struct {
	DB      *sql.DB
	Configs *cache.ConfigCache
}

type ruleRequest struct {
	RuleType  string `json:"rule_type"`
	Condition string `json:"condition"`
	TargetURL string `json:"target_url"`
	Priority  int    `json:"priority"`
}

type scheduleRequest struct {
	ActiveFrom  string `json:"active_from"`
	ActiveUntil string `json:"active_until"`
	Timezone    string `json:"timezone"`
	FallbackURL string `json:"fallback_url"`
}

func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	linkID, ok := linkIDParam(w, r)
	if !ok {
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !validDestination(req.TargetURL) {
		jsonError(w, "target_url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}

	rule := &models.RedirectRule{
		LinkID:    linkID,
		RuleType:  req.RuleType,
		Condition: req.Condition,
		TargetURL: req.TargetURL,
		Priority:  req.Priority,
	}
	if err := models.CreateRule(h.DB, rule); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Configs.Invalidate(linkID)
	writeJSON(w, http.StatusCreated, rule)
}

func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	linkID, ok := linkIDParam(w, r)
	if !ok {
		return
	}
	rules, err := models.RulesForLink(h.DB, linkID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []models.RedirectRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *RuleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	linkID, ok := linkIDParam(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ActiveFrom == "" && req.ActiveUntil == "" {
		jsonError(w, "at least one of active_from, active_until is required", http.StatusBadRequest)
		return
	}
	if req.FallbackURL != "" && !validDestination(req.FallbackURL) {
		jsonError(w, "fallback_url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}

	sched := &models.Schedule{
		LinkID:      linkID,
		Timezone:    req.Timezone,
		FallbackURL: req.FallbackURL,
		IsActive:    true,
	}
	if req.ActiveFrom != "" {
		t, err := time.Parse(time.RFC3339, req.ActiveFrom)
		if err != nil {
			jsonError(w, "active_from must be RFC3339", http.StatusBadRequest)
			return
		}
		sched.ActiveFrom = &t
	}
	if req.ActiveUntil != "" {
		t, err := time.Parse(time.RFC3339, req.ActiveUntil)
		if err != nil {
			jsonError(w, "active_until must be RFC3339", http.StatusBadRequest)
			return
		}
		sched.ActiveUntil = &t
	}
	if sched.ActiveFrom != nil && sched.ActiveUntil != nil && sched.ActiveUntil.Before(*sched.ActiveFrom) {
		jsonError(w, "active_until must be after active_from", http.StatusBadRequest)
		return
	}

	if err := models.CreateSchedule(h.DB, sched); err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.Configs.Invalidate(linkID)
	writeJSON(w, http.StatusCreated, sched)
}
