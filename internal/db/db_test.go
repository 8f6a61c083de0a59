package db

import (
	"database/sql"
	"testing"
	"time"
)

// The driver must store time.Time in SQLite's own text format, not
// time.Time.String(): the analytics queries run strftime over stored
// timestamps and column reads have to scan back into time.Time.
func TestOpen_TimeValuesRoundTrip(t *testing.T) {
	database, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	at := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
	if _, err := database.Exec(
		`INSERT INTO rate_windows (identifier, action, window_start, count) VALUES (?, ?, ?, 1)`,
		"1.2.3.4", "test", at,
	); err != nil {
		t.Fatal(err)
	}

	var got time.Time
	if err := database.QueryRow(
		`SELECT window_start FROM rate_windows`,
	).Scan(&got); err != nil {
		t.Fatalf("scan stored timestamp into time.Time: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("window_start = %v, want %v", got, at)
	}

	// strftime returns NULL for text it cannot parse as a datetime.
	var hour sql.NullString
	if err := database.QueryRow(
		`SELECT strftime('%H', window_start) FROM rate_windows`,
	).Scan(&hour); err != nil {
		t.Fatal(err)
	}
	if !hour.Valid || hour.String != "14" {
		t.Errorf("strftime hour = %+v, want %q", hour, "14")
	}
}
