// Package access implements the admission checks run before any redirect
// decision: expiry/archival, password protection, team quota and IP
// whitelisting.
package access

import (
	"database/sql"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhortlabs/zhort/internal/models"
	"github.com/zhortlabs/zhort/internal/ratelimit"
)

// Denial reasons. Only these surface to the visitor; degraded conditions are
// logged and absorbed.
type Reason string

const (
	ReasonGone             Reason = "gone"
	ReasonExpired          Reason = "expired"
	ReasonPasswordRequired Reason = "password_required"
	ReasonInvalidPassword  Reason = "invalid_password"
	ReasonRateLimited      Reason = "rate_limited"
	ReasonQuotaExceeded    Reason = "quota_exceeded"
	ReasonIPNotAllowed     Reason = "ip_not_allowed"
)

type Request struct {
	IP       string
	Password string
}

type Decision struct {
	Allowed bool
	Reason  Reason
	// Degraded marks a decision reached while some backing check was
	// unavailable and failed open.
	Degraded bool
	// RateLimit is set when the decision came from the protected-access
	// limiter, so callers can emit X-RateLimit headers.
	RateLimit *ratelimit.Result
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

type Controller struct {
	db      *sql.DB
	limiter *ratelimit.Limiter
	log     *zap.Logger
	now     func() time.Time
}

func NewController(db *sql.DB, limiter *ratelimit.Limiter, log *zap.Logger) *Controller {
	return &Controller{db: db, limiter: limiter, log: log, now: time.Now}
}

// Authorize runs the admission checks in order: lifecycle, password, quota,
// whitelist. The first denial wins.
func (c *Controller) Authorize(link *models.Link, req Request) Decision {
	if link.IsArchived {
		return deny(ReasonGone)
	}
	if link.Expired(c.now()) {
		return deny(ReasonExpired)
	}

	if link.Protected() {
		if d := c.checkPassword(link, req); !d.Allowed {
			return d
		}
	}

	degraded := false
	if link.TeamID != nil {
		d := c.checkQuota(*link.TeamID)
		if !d.Allowed {
			return d
		}
		degraded = degraded || d.Degraded

		d = c.checkWhitelist(*link.TeamID, req.IP)
		if !d.Allowed {
			return d
		}
		degraded = degraded || d.Degraded
	}

	return Decision{Allowed: true, Degraded: degraded}
}

func (c *Controller) checkPassword(link *models.Link, req Request) Decision {
	if req.Password == "" {
		return deny(ReasonPasswordRequired)
	}

	// Brute-force protection: attempts are rate limited per caller IP.
	rl := c.limiter.Check(req.IP, ratelimit.ActionProtectedAccess)
	if !rl.Allowed {
		d := deny(ReasonRateLimited)
		d.RateLimit = &rl
		return d
	}

	if err := bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(req.Password)); err != nil {
		return deny(ReasonInvalidPassword)
	}
	return allow()
}

func (c *Controller) checkQuota(teamID int64) Decision {
	team, err := models.GetTeam(c.db, teamID)
	if err != nil {
		return c.failOpen("quota team load", err)
	}

	// Lazy reset: the first check after the reset date zeroes usage as part
	// of the check and lets the request through.
	if team.QuotaResetAt != nil && c.now().After(*team.QuotaResetAt) {
		next := team.QuotaResetAt.AddDate(0, 1, 0)
		for !next.After(c.now()) {
			next = next.AddDate(0, 1, 0)
		}
		if err := models.ResetTeamUsage(c.db, teamID, *team.QuotaResetAt, next); err != nil {
			return c.failOpen("quota reset", err)
		}
	}

	allowed, err := models.TryConsumeQuota(c.db, teamID)
	if err != nil {
		return c.failOpen("quota consume", err)
	}
	if !allowed {
		return deny(ReasonQuotaExceeded)
	}
	return allow()
}

func (c *Controller) checkWhitelist(teamID int64, ip string) Decision {
	entries, err := models.WhitelistForTeam(c.db, teamID)
	if err != nil {
		return c.failOpen("whitelist load", err)
	}
	// No entries configured means allow all.
	if len(entries) == 0 {
		return allow()
	}
	if !matchesAny(ip, entries) {
		return deny(ReasonIPNotAllowed)
	}
	return allow()
}

func (c *Controller) failOpen(what string, err error) Decision {
	c.log.Warn("access check store failure, failing open",
		zap.String("check", what),
		zap.Error(err))
	return Decision{Allowed: true, Degraded: true}
}

// HashPassword produces the stored bcrypt hash for a link password.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
