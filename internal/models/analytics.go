package models

import (
	"database/sql"
	"fmt"
	"time"
)

// CountRow is one bucket of a breakdown (device, country, hour, ...).
type CountRow struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// LinkStats is the read-side aggregation over a link's click facts. Computed
// on demand; never part of the redirect path.
type LinkStats struct {
	TotalClicks int `json:"total_clicks"`
	UniqueIPs   int `json:"unique_ips"`

	ByDevice   []CountRow `json:"by_device"`
	ByCountry  []CountRow `json:"by_country"`
	ByBrowser  []CountRow `json:"by_browser"`
	ByOS       []CountRow `json:"by_os"`
	ByReferrer []CountRow `json:"by_referrer"`
	ByCity     []CountRow `json:"by_city"`
	ByHour     []CountRow `json:"by_hour"`
	ByWeekday  []CountRow `json:"by_weekday"`
	ByMonth    []CountRow `json:"by_month"`

	AvgClicksPerDay  float64 `json:"avg_clicks_per_day"`
	PeakHour         int     `json:"peak_hour"`
	PeakHourCount    int     `json:"peak_hour_count"`
	PeakWeekday      string  `json:"peak_weekday"`
	PeakWeekdayCount int     `json:"peak_weekday_count"`
	// GrowthRate7d compares the last 7 days of clicks to the 7 before them.
	// 1.0 means +100%.
	GrowthRate7d float64 `json:"growth_rate_7d"`
}

var weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// LinkStatsFor aggregates all click facts for one link. createdAt is the
// link's creation time, used for the clicks-per-day average.
func LinkStatsFor(db *sql.DB, linkID int64, createdAt time.Time) (*LinkStats, error) {
	s := &LinkStats{}

	if err := db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT ip) FROM clicks WHERE link_id = ?`, linkID).
		Scan(&s.TotalClicks, &s.UniqueIPs); err != nil {
		return nil, fmt.Errorf("click totals: %w", err)
	}

	var err error
	if s.ByDevice, err = breakdown(db, linkID, `device_type`); err != nil {
		return nil, err
	}
	if s.ByCountry, err = breakdown(db, linkID, `country`); err != nil {
		return nil, err
	}
	if s.ByBrowser, err = breakdown(db, linkID, `browser`); err != nil {
		return nil, err
	}
	if s.ByOS, err = breakdown(db, linkID, `os`); err != nil {
		return nil, err
	}
	if s.ByReferrer, err = breakdown(db, linkID, `referer_domain`); err != nil {
		return nil, err
	}
	if s.ByCity, err = breakdown(db, linkID, `city`); err != nil {
		return nil, err
	}
	if s.ByHour, err = timeBreakdown(db, linkID, `%H`); err != nil {
		return nil, err
	}
	if s.ByWeekday, err = timeBreakdown(db, linkID, `%w`); err != nil {
		return nil, err
	}
	if s.ByMonth, err = timeBreakdown(db, linkID, `%Y-%m`); err != nil {
		return nil, err
	}

	// Weekday buckets come back as 0-6 (Sunday first); present names instead.
	for i, row := range s.ByWeekday {
		if n := row.Key; len(n) == 1 && n[0] >= '0' && n[0] <= '6' {
			s.ByWeekday[i].Key = weekdayNames[n[0]-'0']
		}
	}

	days := time.Since(createdAt).Hours() / 24
	if days < 1 {
		days = 1
	}
	s.AvgClicksPerDay = float64(s.TotalClicks) / days

	s.PeakHour, s.PeakHourCount = peakNumeric(s.ByHour)
	s.PeakWeekday, s.PeakWeekdayCount = peak(s.ByWeekday)

	recent, err := clicksBetween(db, linkID, -7, 0)
	if err != nil {
		return nil, err
	}
	previous, err := clicksBetween(db, linkID, -14, -7)
	if err != nil {
		return nil, err
	}
	s.GrowthRate7d = growthRate(recent, previous)

	return s, nil
}

func growthRate(recent, previous int) float64 {
	if previous == 0 {
		if recent > 0 {
			return 1
		}
		return 0
	}
	return float64(recent-previous) / float64(previous)
}

// clicksBetween counts clicks in [now+fromDays, now+toDays).
func clicksBetween(db *sql.DB, linkID int64, fromDays, toDays int) (int, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM clicks WHERE link_id = ?
		 AND clicked_at >= datetime('now', ? || ' days')
		 AND clicked_at < datetime('now', ? || ' days')`,
		linkID, fromDays, toDays,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("clicks between: %w", err)
	}
	return count, nil
}

// breakdown groups clicks by one of the fixed fact columns. column is always
// a compile-time constant, never caller input.
func breakdown(db *sql.DB, linkID int64, column string) ([]CountRow, error) {
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) as cnt FROM clicks WHERE link_id = ? AND %s != '' GROUP BY %s ORDER BY cnt DESC`,
		column, column, column,
	)
	return countRows(db, query, linkID)
}

func timeBreakdown(db *sql.DB, linkID int64, format string) ([]CountRow, error) {
	query := fmt.Sprintf(
		`SELECT strftime('%s', clicked_at), COUNT(*) as cnt FROM clicks WHERE link_id = ? GROUP BY 1 ORDER BY cnt DESC`,
		format,
	)
	return countRows(db, query, linkID)
}

func countRows(db *sql.DB, query string, linkID int64) ([]CountRow, error) {
	rows, err := db.Query(query, linkID)
	if err != nil {
		return nil, fmt.Errorf("breakdown: %w", err)
	}
	defer rows.Close()

	var out []CountRow
	for rows.Next() {
		var r CountRow
		if err := rows.Scan(&r.Key, &r.Count); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// peak returns the bucket with the highest count; breakdowns are sorted
// descending so the first row wins, keeping first-seen on ties.
func peak(rows []CountRow) (string, int) {
	if len(rows) == 0 {
		return "", 0
	}
	return rows[0].Key, rows[0].Count
}

func peakNumeric(rows []CountRow) (int, int) {
	key, count := peak(rows)
	if key == "" {
		return 0, 0
	}
	hour := 0
	fmt.Sscanf(key, "%d", &hour)
	return hour, count
}
