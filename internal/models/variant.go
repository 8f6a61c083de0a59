package models

import (
	"database/sql"
	"fmt"
)

// Variant is an alternate destination URL tested against a link's original.
type Variant struct {
	ID          int64  `json:"id"`
	LinkID      int64  `json:"link_id"`
	TargetURL   string `json:"target_url"`
	Percentage  int    `json:"percentage"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
	IsWinner    bool   `json:"is_winner"`
}

func CreateVariant(db *sql.DB, v *Variant) error {
	if v.Percentage < 0 || v.Percentage > 100 {
		return fmt.Errorf("variant percentage must be 0-100, got %d", v.Percentage)
	}
	res, err := db.Exec(
		`INSERT INTO variants (link_id, target_url, percentage) VALUES (?, ?, ?)`,
		v.LinkID, v.TargetURL, v.Percentage,
	)
	if err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	v.ID, _ = res.LastInsertId()
	return nil
}

// VariantsForSelection returns the link's non-winner variants ordered by
// traffic percentage ascending (id breaks ties for a stable walk).
func VariantsForSelection(db *sql.DB, linkID int64) ([]Variant, error) {
	return queryVariants(db,
		`SELECT id, link_id, target_url, percentage, clicks, conversions, is_winner
		 FROM variants WHERE link_id = ? AND is_winner = 0 ORDER BY percentage ASC, id ASC`, linkID)
}

// VariantsForLink returns every variant for a link in insertion order.
func VariantsForLink(db *sql.DB, linkID int64) ([]Variant, error) {
	return queryVariants(db,
		`SELECT id, link_id, target_url, percentage, clicks, conversions, is_winner
		 FROM variants WHERE link_id = ? ORDER BY id ASC`, linkID)
}

// WinnerForLink returns the link's pinned winner, or nil when no variant
// carries the flag.
func WinnerForLink(db *sql.DB, linkID int64) (*Variant, error) {
	vs, err := queryVariants(db,
		`SELECT id, link_id, target_url, percentage, clicks, conversions, is_winner
		 FROM variants WHERE link_id = ? AND is_winner = 1 LIMIT 1`, linkID)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, nil
	}
	return &vs[0], nil
}

func GetVariant(db *sql.DB, id int64) (*Variant, error) {
	v := &Variant{}
	var winner int
	err := db.QueryRow(
		`SELECT id, link_id, target_url, percentage, clicks, conversions, is_winner FROM variants WHERE id = ?`, id,
	).Scan(&v.ID, &v.LinkID, &v.TargetURL, &v.Percentage, &v.Clicks, &v.Conversions, &winner)
	if err != nil {
		return nil, err
	}
	v.IsWinner = winner == 1
	return v, nil
}

// IncrementVariantClicks bumps the click counter atomically in the store.
func IncrementVariantClicks(db *sql.DB, id int64) error {
	_, err := db.Exec(`UPDATE variants SET clicks = clicks + 1 WHERE id = ?`, id)
	return err
}

// IncrementVariantConversions bumps the conversion counter atomically.
func IncrementVariantConversions(db *sql.DB, id int64) error {
	res, err := db.Exec(`UPDATE variants SET conversions = conversions + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PinWinner clears every winner flag for the link, then sets one. At most one
// variant per link carries the flag at a time.
func PinWinner(db *sql.DB, linkID, variantID int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE variants SET is_winner = 0 WHERE link_id = ?`, linkID); err != nil {
		return fmt.Errorf("clear winners: %w", err)
	}
	res, err := tx.Exec(`UPDATE variants SET is_winner = 1 WHERE id = ? AND link_id = ?`, variantID, linkID)
	if err != nil {
		return fmt.Errorf("set winner: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

func queryVariants(db *sql.DB, query string, linkID int64) ([]Variant, error) {
	rows, err := db.Query(query, linkID)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		var winner int
		if err := rows.Scan(&v.ID, &v.LinkID, &v.TargetURL, &v.Percentage, &v.Clicks, &v.Conversions, &winner); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		v.IsWinner = winner == 1
		variants = append(variants, v)
	}
	return variants, rows.Err()
}
