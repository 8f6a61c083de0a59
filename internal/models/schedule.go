package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Schedule is a time-window activation rule for one link. Timezone is kept
// for display only; activation compares absolute instants.
type Schedule struct {
	ID          int64      `json:"id"`
	LinkID      int64      `json:"link_id"`
	ActiveFrom  *time.Time `json:"active_from,omitempty"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
	Timezone    string     `json:"timezone"`
	FallbackURL string     `json:"fallback_url"`
	IsActive    bool       `json:"is_active"`
}

func CreateSchedule(db *sql.DB, s *Schedule) error {
	res, err := db.Exec(
		`INSERT INTO schedules (link_id, active_from, active_until, timezone, fallback_url, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.LinkID, s.ActiveFrom, s.ActiveUntil, s.Timezone, s.FallbackURL, boolInt(s.IsActive),
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	s.ID, _ = res.LastInsertId()
	return nil
}

// ActiveScheduleForLink returns the first enabled schedule for the link by
// insertion order, or nil when the link has none (always active).
func ActiveScheduleForLink(db *sql.DB, linkID int64) (*Schedule, error) {
	s := &Schedule{}
	var from, until sql.NullTime
	var active int
	err := db.QueryRow(
		`SELECT id, link_id, active_from, active_until, timezone, fallback_url, is_active
		 FROM schedules WHERE link_id = ? AND is_active = 1 ORDER BY id ASC LIMIT 1`,
		linkID,
	).Scan(&s.ID, &s.LinkID, &from, &until, &s.Timezone, &s.FallbackURL, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	s.IsActive = active == 1
	if from.Valid {
		t := from.Time
		s.ActiveFrom = &t
	}
	if until.Valid {
		t := until.Time
		s.ActiveUntil = &t
	}
	return s, nil
}
