package models

import (
	"database/sql"
	"fmt"
	"time"
)

// MaskingConfig is the per-link presentation configuration consumed by the
// masking decider.
type MaskingConfig struct {
	EnableFrame      bool   `json:"enable_frame"`
	EnableSplash     bool   `json:"enable_splash"`
	SplashDurationMs int    `json:"splash_duration_ms"`
	SplashHTML       string `json:"splash_html"`
}

type Link struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	ShortURL    string `json:"short_url"`
	Destination string `json:"destination"`
	OwnerID     *int64 `json:"owner_id,omitempty"`
	TeamID      *int64 `json:"team_id,omitempty"`
	IsPublic    bool   `json:"is_public"`
	// PasswordHash is empty for unprotected links. Never serialized.
	PasswordHash string        `json:"-"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
	HitCount     int64         `json:"hit_count"`
	IsArchived   bool          `json:"is_archived"`
	Masking      MaskingConfig `json:"masking"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Protected reports whether the link requires a password.
func (l *Link) Protected() bool { return l.PasswordHash != "" }

// Expired reports whether the link's expiry timestamp has passed.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

func (l *Link) FillShortURL(baseURL string) {
	l.ShortURL = baseURL + "/" + l.Code
}

const linkColumns = `id, code, destination, owner_id, team_id, is_public, password_hash, expires_at, hit_count, is_archived, enable_frame, enable_splash, splash_duration_ms, splash_html, created_at, updated_at`

func CreateLink(db *sql.DB, l *Link) error {
	res, err := db.Exec(
		`INSERT INTO links (code, destination, owner_id, team_id, is_public, password_hash, expires_at, enable_frame, enable_splash, splash_duration_ms, splash_html)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Code, l.Destination, l.OwnerID, l.TeamID, boolInt(l.IsPublic),
		nullString(l.PasswordHash), l.ExpiresAt,
		boolInt(l.Masking.EnableFrame), boolInt(l.Masking.EnableSplash),
		l.Masking.SplashDurationMs, l.Masking.SplashHTML,
	)
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	id, _ := res.LastInsertId()
	l.ID = id

	// Re-read to get timestamps
	return GetLinkByID(db, l)
}

func GetLinkByID(db *sql.DB, l *Link) error {
	row := db.QueryRow(`SELECT `+linkColumns+` FROM links WHERE id = ?`, l.ID)
	return scanLink(row, l)
}

func GetLinkByCode(db *sql.DB, code string) (*Link, error) {
	l := &Link{}
	row := db.QueryRow(`SELECT `+linkColumns+` FROM links WHERE code = ?`, code)
	if err := scanLink(row, l); err != nil {
		return nil, err
	}
	return l, nil
}

func ListLinks(db *sql.DB, limit, offset int) ([]Link, int, error) {
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM links WHERE is_archived = 0`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count links: %w", err)
	}

	rows, err := db.Query(
		`SELECT `+linkColumns+` FROM links WHERE is_archived = 0 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := scanLink(rows, &l); err != nil {
			return nil, 0, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, total, rows.Err()
}

func UpdateLink(db *sql.DB, l *Link) error {
	_, err := db.Exec(
		`UPDATE links SET code = ?, destination = ?, owner_id = ?, team_id = ?, is_public = ?, password_hash = ?, expires_at = ?,
		 enable_frame = ?, enable_splash = ?, splash_duration_ms = ?, splash_html = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		l.Code, l.Destination, l.OwnerID, l.TeamID, boolInt(l.IsPublic),
		nullString(l.PasswordHash), l.ExpiresAt,
		boolInt(l.Masking.EnableFrame), boolInt(l.Masking.EnableSplash),
		l.Masking.SplashDurationMs, l.Masking.SplashHTML, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	return GetLinkByID(db, l)
}

// ArchiveLink soft-archives a link. Rows are never hard-deleted while click
// facts reference them.
func ArchiveLink(db *sql.DB, id int64) error {
	res, err := db.Exec(`UPDATE links SET is_archived = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("archive link: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementHitCount bumps the hit counter atomically in the store.
func IncrementHitCount(db *sql.DB, id int64) error {
	_, err := db.Exec(`UPDATE links SET hit_count = hit_count + 1 WHERE id = ?`, id)
	return err
}

func CodeExists(db *sql.DB, code string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM links WHERE code = ?`, code).Scan(&count)
	return count > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner, l *Link) error {
	var (
		isPublic, isArchived, frame, splash int
		ownerID, teamID                     sql.NullInt64
		passwordHash                        sql.NullString
		expiresAt                           sql.NullTime
	)
	if err := row.Scan(
		&l.ID, &l.Code, &l.Destination, &ownerID, &teamID, &isPublic,
		&passwordHash, &expiresAt, &l.HitCount, &isArchived,
		&frame, &splash, &l.Masking.SplashDurationMs, &l.Masking.SplashHTML,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return err
	}
	l.IsPublic = isPublic == 1
	l.IsArchived = isArchived == 1
	l.Masking.EnableFrame = frame == 1
	l.Masking.EnableSplash = splash == 1
	if ownerID.Valid {
		l.OwnerID = &ownerID.Int64
	}
	if teamID.Valid {
		l.TeamID = &teamID.Int64
	}
	if passwordHash.Valid {
		l.PasswordHash = passwordHash.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		l.ExpiresAt = &t
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
