package db

import "database/sql"

func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS teams (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    name           TEXT    NOT NULL DEFAULT '',
    usage_count    INTEGER NOT NULL DEFAULT 0,
    quota_limit    INTEGER NOT NULL DEFAULT 0,
    quota_reset_at DATETIME
);

CREATE TABLE IF NOT EXISTS links (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    code               TEXT    NOT NULL UNIQUE,
    destination        TEXT    NOT NULL,
    owner_id           INTEGER,
    team_id            INTEGER REFERENCES teams(id),
    is_public          INTEGER NOT NULL DEFAULT 1,
    password_hash      TEXT,
    expires_at         DATETIME,
    hit_count          INTEGER NOT NULL DEFAULT 0,
    is_archived        INTEGER NOT NULL DEFAULT 0,
    enable_frame       INTEGER NOT NULL DEFAULT 0,
    enable_splash      INTEGER NOT NULL DEFAULT 0,
    splash_duration_ms INTEGER NOT NULL DEFAULT 0,
    splash_html        TEXT    NOT NULL DEFAULT '',
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_links_code ON links(code) WHERE is_archived = 0;

CREATE TABLE IF NOT EXISTS rate_windows (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    identifier   TEXT    NOT NULL,
    action       TEXT    NOT NULL,
    window_start DATETIME NOT NULL,
    count        INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_rate_windows_key ON rate_windows(identifier, action);

CREATE TABLE IF NOT EXISTS blocked_domains (
    hostname   TEXT PRIMARY KEY,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schedules (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    link_id      INTEGER NOT NULL REFERENCES links(id),
    active_from  DATETIME,
    active_until DATETIME,
    timezone     TEXT    NOT NULL DEFAULT '',
    fallback_url TEXT    NOT NULL DEFAULT '',
    is_active    INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_schedules_link_id ON schedules(link_id);

CREATE TABLE IF NOT EXISTS variants (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    link_id     INTEGER NOT NULL REFERENCES links(id),
    target_url  TEXT    NOT NULL,
    percentage  INTEGER NOT NULL DEFAULT 0,
    clicks      INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    is_winner   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_variants_link_id ON variants(link_id);

CREATE TABLE IF NOT EXISTS redirect_rules (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    link_id    INTEGER NOT NULL REFERENCES links(id),
    rule_type  TEXT    NOT NULL,
    condition  TEXT    NOT NULL,
    target_url TEXT    NOT NULL,
    priority   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_redirect_rules_link_id ON redirect_rules(link_id);

CREATE TABLE IF NOT EXISTS clicks (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    link_id        INTEGER NOT NULL REFERENCES links(id),
    clicked_at     DATETIME NOT NULL,
    ip             TEXT,
    user_agent     TEXT,
    referer        TEXT,
    referer_domain TEXT,
    country        TEXT,
    city           TEXT,
    browser        TEXT,
    os             TEXT,
    device_type    TEXT
);

CREATE INDEX IF NOT EXISTS idx_clicks_link_id ON clicks(link_id);
CREATE INDEX IF NOT EXISTS idx_clicks_clicked_at ON clicks(clicked_at);

CREATE TABLE IF NOT EXISTS webhooks (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id          INTEGER NOT NULL,
    url               TEXT    NOT NULL,
    secret            TEXT    NOT NULL,
    events            TEXT    NOT NULL DEFAULT '',
    is_active         INTEGER NOT NULL DEFAULT 1,
    last_triggered_at DATETIME,
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_webhooks_owner_id ON webhooks(owner_id);

CREATE TABLE IF NOT EXISTS whitelist_entries (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    team_id INTEGER NOT NULL REFERENCES teams(id),
    cidr    TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_whitelist_entries_team_id ON whitelist_entries(team_id);
`
