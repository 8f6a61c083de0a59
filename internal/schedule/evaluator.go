// Package schedule decides whether a link is inside its activation window.
package schedule

import (
	"time"

	"github.com/zhortlabs/zhort/internal/models"
)

type Evaluation struct {
	IsActive bool
	// FallbackURL is the resolution target while inactive, when configured.
	FallbackURL string
}

// Evaluate checks now against the schedule's bounds. A nil schedule means the
// link is always active. Both bounds are optional and enforced independently.
// Comparisons use absolute instants; the stored timezone is display-only, so
// daylight-saving shifts cannot flip a decision.
func Evaluate(s *models.Schedule, now time.Time) Evaluation {
	if s == nil {
		return Evaluation{IsActive: true}
	}
	if s.ActiveFrom != nil && now.Before(*s.ActiveFrom) {
		return Evaluation{FallbackURL: s.FallbackURL}
	}
	if s.ActiveUntil != nil && now.After(*s.ActiveUntil) {
		return Evaluation{FallbackURL: s.FallbackURL}
	}
	return Evaluation{IsActive: true}
}
