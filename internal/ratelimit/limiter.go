// Package ratelimit implements a sliding-window request counter backed by
// rate_windows rows. Store failures fail open: a broken database must never
// turn into a sitewide denial of service. That tradeoff is deliberate and
// every occurrence is logged.
package ratelimit

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/models"
)

// Rate-limited actions. The set is static; an unknown action is a
// programming error, not a runtime condition.
const (
	ActionCreateAnon      = "link.create.anon"
	ActionCreateAuth      = "link.create.auth"
	ActionProtectedAccess = "link.access.protected"
)

type Limit struct {
	Window time.Duration
	Max    int
}

var limits = map[string]Limit{
	ActionCreateAnon:      {Window: time.Hour, Max: 10},
	ActionCreateAuth:      {Window: time.Hour, Max: 50},
	ActionProtectedAccess: {Window: 15 * time.Minute, Max: 5},
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// Degraded marks a decision produced while the store was unavailable.
	Degraded bool
}

type Limiter struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

func New(db *sql.DB, log *zap.Logger) *Limiter {
	return &Limiter{db: db, log: log, now: time.Now}
}

// Check records one request for (identifier, action) and reports whether it
// fits inside the window. Panics on an unknown action.
func (l *Limiter) Check(identifier, action string) Result {
	limit, ok := limits[action]
	if !ok {
		panic(fmt.Sprintf("ratelimit: unknown action %q", action))
	}

	now := l.now()
	cutoff := now.Add(-limit.Window)

	if err := models.PruneRateWindows(l.db, identifier, action, cutoff); err != nil {
		return l.failOpen(action, limit, now, err)
	}

	sum, oldest, err := models.SumRateWindows(l.db, identifier, action)
	if err != nil {
		return l.failOpen(action, limit, now, err)
	}

	if sum >= limit.Max {
		return Result{
			Allowed:   false,
			Limit:     limit.Max,
			Remaining: 0,
			ResetAt:   oldest.Add(limit.Window),
		}
	}

	if err := models.InsertRateWindow(l.db, identifier, action, now); err != nil {
		return l.failOpen(action, limit, now, err)
	}

	resetAt := now.Add(limit.Window)
	if sum > 0 {
		resetAt = oldest.Add(limit.Window)
	}
	return Result{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: limit.Max - sum - 1,
		ResetAt:   resetAt,
	}
}

func (l *Limiter) failOpen(action string, limit Limit, now time.Time, err error) Result {
	l.log.Warn("rate limiter store failure, failing open",
		zap.String("action", action),
		zap.Error(err))
	return Result{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: limit.Max - 1,
		ResetAt:   now.Add(limit.Window),
		Degraded:  true,
	}
}
