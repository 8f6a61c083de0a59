package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Team carries the quota state for quota-bound links. A quota_limit of 0
// means unlimited.
type Team struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	UsageCount   int64      `json:"usage_count"`
	QuotaLimit   int64      `json:"quota_limit"`
	QuotaResetAt *time.Time `json:"quota_reset_at,omitempty"`
}

func CreateTeam(db *sql.DB, t *Team) error {
	res, err := db.Exec(
		`INSERT INTO teams (name, usage_count, quota_limit, quota_reset_at) VALUES (?, ?, ?, ?)`,
		t.Name, t.UsageCount, t.QuotaLimit, t.QuotaResetAt,
	)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

func GetTeam(db *sql.DB, id int64) (*Team, error) {
	t := &Team{}
	var reset sql.NullTime
	err := db.QueryRow(
		`SELECT id, name, usage_count, quota_limit, quota_reset_at FROM teams WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.UsageCount, &t.QuotaLimit, &reset)
	if err != nil {
		return nil, err
	}
	if reset.Valid {
		r := reset.Time
		t.QuotaResetAt = &r
	}
	return t, nil
}

// ResetTeamUsage zeroes usage and advances the reset date, but only if the
// stored reset date still matches expected. The condition makes the lazy
// reset idempotent under concurrent checks.
func ResetTeamUsage(db *sql.DB, id int64, expected, next time.Time) error {
	_, err := db.Exec(
		`UPDATE teams SET usage_count = 0, quota_reset_at = ? WHERE id = ? AND quota_reset_at = ?`,
		next, id, expected,
	)
	return err
}

// TryConsumeQuota atomically takes one unit of quota. The conditional UPDATE
// is the admission decision: concurrent clicks cannot under-count past the
// ceiling the way a read-then-write would.
func TryConsumeQuota(db *sql.DB, id int64) (bool, error) {
	res, err := db.Exec(
		`UPDATE teams SET usage_count = usage_count + 1 WHERE id = ? AND (quota_limit = 0 OR usage_count < quota_limit)`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// WhitelistForTeam returns the team's IP/CIDR whitelist entries. An empty
// result means the team allows all callers.
func WhitelistForTeam(db *sql.DB, teamID int64) ([]string, error) {
	rows, err := db.Query(`SELECT cidr FROM whitelist_entries WHERE team_id = ? ORDER BY id ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("query whitelist: %w", err)
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan whitelist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddWhitelistEntry appends one IP or IPv4 CIDR entry for a team.
func AddWhitelistEntry(db *sql.DB, teamID int64, cidr string) error {
	_, err := db.Exec(`INSERT INTO whitelist_entries (team_id, cidr) VALUES (?, ?)`, teamID, cidr)
	return err
}
