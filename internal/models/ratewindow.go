package models

import (
	"database/sql"
	"fmt"
	"time"
)

// RateWindow is one burst record in the sliding-window counter. Multiple
// windows per (identifier, action) may coexist before pruning; counts are
// summed across them.
type RateWindow struct {
	ID          int64
	Identifier  string
	Action      string
	WindowStart time.Time
	Count       int
}

// PruneRateWindows deletes windows that started before cutoff.
func PruneRateWindows(db *sql.DB, identifier, action string, cutoff time.Time) error {
	_, err := db.Exec(
		`DELETE FROM rate_windows WHERE identifier = ? AND action = ? AND window_start < ?`,
		identifier, action, cutoff,
	)
	return err
}

// sqliteTimeLayout is the text format the driver writes when the DSN carries
// _time_format=sqlite. An aggregate expression has no declared column type,
// so MIN(window_start) scans as a raw string and is parsed here.
const sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// SumRateWindows returns the total count across surviving windows and the
// start of the oldest one. oldest is the zero time when no windows exist.
func SumRateWindows(db *sql.DB, identifier, action string) (sum int, oldest time.Time, err error) {
	var start sql.NullString
	err = db.QueryRow(
		`SELECT COALESCE(SUM(count), 0), MIN(window_start) FROM rate_windows WHERE identifier = ? AND action = ?`,
		identifier, action,
	).Scan(&sum, &start)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("sum rate windows: %w", err)
	}
	if start.Valid {
		oldest, err = time.Parse(sqliteTimeLayout, start.String)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("parse oldest window start: %w", err)
		}
	}
	return sum, oldest, nil
}

// InsertRateWindow records one request at start with count 1.
func InsertRateWindow(db *sql.DB, identifier, action string, start time.Time) error {
	_, err := db.Exec(
		`INSERT INTO rate_windows (identifier, action, window_start, count) VALUES (?, ?, ?, 1)`,
		identifier, action, start,
	)
	return err
}
