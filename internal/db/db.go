package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the sqlite store of record and applies the
// schema. The resolution path reads from it on every click, so WAL mode and a
// generous page cache matter here.
func Open(path string) (*sql.DB, error) {
	// _time_format makes the driver write time.Time values in SQLite's text
	// format instead of time.Time.String(). The rate limiter scans
	// MIN(window_start) back into a time.Time and the analytics queries run
	// strftime over clicked_at; both need parseable timestamps.
	dsn := path + "?_time_format=sqlite"
	if strings.Contains(path, "?") {
		dsn = path + "&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA cache_size=-20000", // 20MB
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}
