package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Recognized webhook event names.
const (
	EventLinkCreated  = "link.created"
	EventLinkClicked  = "link.clicked"
	EventLinkExpired  = "link.expired"
	EventPasteCreated = "paste.created"
)

// KnownEvent reports whether name is a recognized event.
func KnownEvent(name string) bool {
	switch name {
	case EventLinkCreated, EventLinkClicked, EventLinkExpired, EventPasteCreated:
		return true
	}
	return false
}

// Webhook is one subscriber endpoint. Events holds the subscribed event set.
type Webhook struct {
	ID              int64      `json:"id"`
	OwnerID         int64      `json:"owner_id"`
	URL             string     `json:"url"`
	Secret          string     `json:"-"`
	Events          []string   `json:"events"`
	IsActive        bool       `json:"is_active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func CreateWebhook(db *sql.DB, w *Webhook) error {
	for _, e := range w.Events {
		if !KnownEvent(e) {
			return fmt.Errorf("unknown event %q", e)
		}
	}
	res, err := db.Exec(
		`INSERT INTO webhooks (owner_id, url, secret, events, is_active) VALUES (?, ?, ?, ?, ?)`,
		w.OwnerID, w.URL, w.Secret, strings.Join(w.Events, ","), boolInt(w.IsActive),
	)
	if err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	w.ID, _ = res.LastInsertId()
	return nil
}

// WebhooksForEvent returns the owner's active webhooks subscribed to event.
func WebhooksForEvent(db *sql.DB, ownerID int64, event string) ([]Webhook, error) {
	hooks, err := WebhooksForOwner(db, ownerID)
	if err != nil {
		return nil, err
	}
	var subscribed []Webhook
	for _, h := range hooks {
		if !h.IsActive {
			continue
		}
		for _, e := range h.Events {
			if e == event {
				subscribed = append(subscribed, h)
				break
			}
		}
	}
	return subscribed, nil
}

func WebhooksForOwner(db *sql.DB, ownerID int64) ([]Webhook, error) {
	rows, err := db.Query(
		`SELECT id, owner_id, url, secret, events, is_active, last_triggered_at, created_at
		 FROM webhooks WHERE owner_id = ? ORDER BY id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []Webhook
	for rows.Next() {
		var h Webhook
		var events string
		var active int
		var last sql.NullTime
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.URL, &h.Secret, &events, &active, &last, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		h.IsActive = active == 1
		if events != "" {
			h.Events = strings.Split(events, ",")
		}
		if last.Valid {
			t := last.Time
			h.LastTriggeredAt = &t
		}
		hooks = append(hooks, h)
	}
	return hooks, rows.Err()
}

// TouchWebhook records a successful delivery.
func TouchWebhook(db *sql.DB, id int64, at time.Time) error {
	_, err := db.Exec(`UPDATE webhooks SET last_triggered_at = ? WHERE id = ?`, at, id)
	return err
}
