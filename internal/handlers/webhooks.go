package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zhortlabs/zhort/internal/models"
)

type WebhookHandler struct {
	DB *sql.DB
}

type webhookRequest struct {
	OwnerID int64    `json:"owner_id"`
	URL     string   `json:"url"`
	Secret  string   `json:"secret"`
	Events  []string `json:"events"`
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !validDestination(req.URL) {
		jsonError(w, "url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}
	if req.Secret == "" {
		jsonError(w, "secret is required", http.StatusBadRequest)
		return
	}
	if len(req.Events) == 0 {
		jsonError(w, "at least one event is required", http.StatusBadRequest)
		return
	}

	hook := &models.Webhook{
		OwnerID:  req.OwnerID,
		URL:      req.URL,
		Secret:   req.Secret,
		Events:   req.Events,
		IsActive: true,
	}
	if err := models.CreateWebhook(h.DB, hook); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, hook)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil {
		jsonError(w, "owner_id is required", http.StatusBadRequest)
		return
	}
	hooks, err := models.WebhooksForOwner(h.DB, ownerID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if hooks == nil {
		hooks = []models.Webhook{}
	}
	writeJSON(w, http.StatusOK, hooks)
}
