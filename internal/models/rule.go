package models

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Redirect rule types. The set is closed; there is no user scripting.
const (
	RuleDevice = "device"
	RuleGeo    = "geo"
	RuleTime   = "time"
	RuleABTest = "ab_test"
)

// RedirectRule is one priority-ordered condition/target pair. Lower priority
// evaluates first; insertion order breaks ties.
type RedirectRule struct {
	ID        int64  `json:"id"`
	LinkID    int64  `json:"link_id"`
	RuleType  string `json:"rule_type"`
	Condition string `json:"condition"`
	TargetURL string `json:"target_url"`
	Priority  int    `json:"priority"`
}

var (
	countryRe = regexp.MustCompile(`^[A-Za-z]{2}$`)
	hoursRe   = regexp.MustCompile(`^([01]?[0-9]|2[0-3])-([01]?[0-9]|2[0-3])$`)
)

// ValidateRule checks type and condition at write time, so the hot path never
// sees a malformed rule.
func ValidateRule(r *RedirectRule) error {
	cond := strings.ToLower(strings.TrimSpace(r.Condition))
	switch r.RuleType {
	case RuleDevice:
		switch cond {
		case "mobile", "tablet", "desktop", "ios", "android":
			return nil
		}
		return fmt.Errorf("device condition must be mobile|tablet|desktop|ios|android, got %q", r.Condition)
	case RuleGeo:
		if !countryRe.MatchString(cond) {
			return fmt.Errorf("geo condition must be a two-letter country code, got %q", r.Condition)
		}
		return nil
	case RuleTime:
		if cond == "weekday" || cond == "weekend" || hoursRe.MatchString(cond) {
			return nil
		}
		return fmt.Errorf("time condition must be weekday|weekend|HH-HH, got %q", r.Condition)
	case RuleABTest:
		if cond == "a" || cond == "b" {
			return nil
		}
		return fmt.Errorf("ab_test condition must be A or B, got %q", r.Condition)
	default:
		return fmt.Errorf("unknown rule type %q", r.RuleType)
	}
}

func CreateRule(db *sql.DB, r *RedirectRule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}
	res, err := db.Exec(
		`INSERT INTO redirect_rules (link_id, rule_type, condition, target_url, priority) VALUES (?, ?, ?, ?, ?)`,
		r.LinkID, r.RuleType, r.Condition, r.TargetURL, r.Priority,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

// RulesForLink returns rules in evaluation order: priority ascending, then
// insertion order.
func RulesForLink(db *sql.DB, linkID int64) ([]RedirectRule, error) {
	rows, err := db.Query(
		`SELECT id, link_id, rule_type, condition, target_url, priority
		 FROM redirect_rules WHERE link_id = ? ORDER BY priority ASC, id ASC`,
		linkID,
	)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []RedirectRule
	for rows.Next() {
		var r RedirectRule
		if err := rows.Scan(&r.ID, &r.LinkID, &r.RuleType, &r.Condition, &r.TargetURL, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
