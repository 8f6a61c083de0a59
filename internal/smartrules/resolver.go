// Package smartrules evaluates the priority-ordered redirect rules attached
// to a link. First match wins; no match means the caller falls through to
// the link's configured destination.
package smartrules

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/zhortlabs/zhort/internal/models"
	"github.com/zhortlabs/zhort/internal/uainfo"
)

// Facts are the per-request inputs rules match against.
type Facts struct {
	UserAgent string
	Country   string
}

type Resolver struct {
	// randFloat feeds ab_test rules with a fresh uniform draw per
	// evaluation. Replaceable in tests.
	randFloat func() float64
	now       func() time.Time
}

func New() *Resolver {
	return &Resolver{randFloat: rand.Float64, now: time.Now}
}

// Match walks rules in their stored evaluation order and returns the target
// URL of the first matching rule, or "" when none match. Rules are validated
// at write time, so a malformed condition simply never matches here.
func (r *Resolver) Match(rules []models.RedirectRule, f Facts) string {
	var info uainfo.Info
	parsed := false

	for _, rule := range rules {
		cond := strings.ToLower(strings.TrimSpace(rule.Condition))
		switch rule.RuleType {
		case models.RuleDevice:
			if !parsed {
				info = uainfo.Parse(f.UserAgent)
				parsed = true
			}
			if matchDevice(cond, info) {
				return rule.TargetURL
			}
		case models.RuleGeo:
			if f.Country != "" && strings.EqualFold(cond, f.Country) {
				return rule.TargetURL
			}
		case models.RuleTime:
			if matchTime(cond, r.now()) {
				return rule.TargetURL
			}
		case models.RuleABTest:
			// A separate 50/50 mechanism, independent of variant
			// percentages: a fresh draw per evaluation.
			draw := r.randFloat()
			if (cond == "a" && draw < 0.5) || (cond == "b" && draw >= 0.5) {
				return rule.TargetURL
			}
		}
	}
	return ""
}

func matchDevice(cond string, info uainfo.Info) bool {
	switch cond {
	case uainfo.DeviceMobile, uainfo.DeviceTablet, uainfo.DeviceDesktop:
		return info.Device == cond
	case "ios", "android":
		return strings.Contains(strings.ToLower(info.OS), cond)
	}
	return false
}

// matchTime evaluates weekday/weekend/HH-HH conditions against server local
// time. Hour ranges are inclusive-start, exclusive-end; an inverted range
// wraps past midnight.
func matchTime(cond string, now time.Time) bool {
	switch cond {
	case "weekday":
		wd := now.Weekday()
		return wd >= time.Monday && wd <= time.Friday
	case "weekend":
		wd := now.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	}

	parts := strings.SplitN(cond, "-", 2)
	if len(parts) != 2 {
		return false
	}
	start, err1 := strconv.Atoi(parts[0])
	end, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || start < 0 || start > 23 || end < 0 || end > 23 {
		return false
	}

	h := now.Hour()
	if start <= end {
		return h >= start && h < end
	}
	return h >= start || h < end
}
