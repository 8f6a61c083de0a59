package models

import (
	"database/sql"
	"fmt"
)

// ReplaceBlockedDomains swaps the entire blocklist table for hostnames in one
// transaction. The upstream feed is redistributed wholesale, so a bulk
// replace beats incremental diffing.
func ReplaceBlockedDomains(db *sql.DB, hostnames []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM blocked_domains`); err != nil {
		return fmt.Errorf("clear blocklist: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO blocked_domains (hostname) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, h := range hostnames {
		if _, err := stmt.Exec(h); err != nil {
			return fmt.Errorf("insert blocked domain: %w", err)
		}
	}

	return tx.Commit()
}

// LoadBlockedDomains returns every blocklisted hostname.
func LoadBlockedDomains(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT hostname FROM blocked_domains`)
	if err != nil {
		return nil, fmt.Errorf("load blocklist: %w", err)
	}
	defer rows.Close()

	var hostnames []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan hostname: %w", err)
		}
		hostnames = append(hostnames, h)
	}
	return hostnames, rows.Err()
}
