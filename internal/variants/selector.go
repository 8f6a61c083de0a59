// Package variants implements weighted A/B traffic splitting across a link's
// alternate destinations.
package variants

import (
	"database/sql"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/models"
)

type Selector struct {
	db  *sql.DB
	log *zap.Logger
	// randFloat returns a uniform draw in [0,1). Replaceable in tests.
	randFloat func() float64
}

func New(db *sql.DB, log *zap.Logger) *Selector {
	return &Selector{db: db, log: log, randFloat: rand.Float64}
}

// Select picks the link's variant destination and bumps its click counter.
// A pinned winner takes all traffic; otherwise one of the non-winner
// variants is drawn proportionally to its traffic percentage. Returns ""
// when the link has no eligible variants or their percentages sum to zero;
// the caller then uses the link's stored destination.
//
// Shares are re-normalized against the configured total, so percentages need
// not sum to exactly 100.
func (s *Selector) Select(linkID int64) (string, error) {
	if winner, err := models.WinnerForLink(s.db, linkID); err != nil {
		return "", fmt.Errorf("load winner: %w", err)
	} else if winner != nil {
		s.bumpClicks(winner.ID)
		return winner.TargetURL, nil
	}

	vs, err := models.VariantsForSelection(s.db, linkID)
	if err != nil {
		return "", fmt.Errorf("load variants: %w", err)
	}

	total := 0
	for _, v := range vs {
		total += v.Percentage
	}
	if len(vs) == 0 || total <= 0 {
		return "", nil
	}

	draw := s.randFloat() * 100
	chosen := vs[len(vs)-1]
	cum := 0.0
	for _, v := range vs {
		cum += float64(v.Percentage) / float64(total) * 100
		if cum >= draw {
			chosen = v
			break
		}
	}

	s.bumpClicks(chosen.ID)
	return chosen.TargetURL, nil
}

// bumpClicks is best-effort: a lost update under contention skews reporting,
// not routing.
func (s *Selector) bumpClicks(variantID int64) {
	if err := models.IncrementVariantClicks(s.db, variantID); err != nil {
		s.log.Warn("variant click increment failed",
			zap.Int64("variant_id", variantID),
			zap.Error(err))
	}
}

// TrackConversion bumps a variant's conversion counter. Triggered by an
// external event, never by the redirect path.
func (s *Selector) TrackConversion(variantID int64) error {
	return models.IncrementVariantConversions(s.db, variantID)
}

// PinWinner marks one variant as the winner, clearing any previous one.
func (s *Selector) PinWinner(linkID, variantID int64) error {
	return models.PinWinner(s.db, linkID, variantID)
}

// SetWinnerAuto pins the variant with the best conversions/clicks ratio.
// Variants are scanned in insertion order and ties keep the first-seen
// maximum, so the outcome is deterministic.
func (s *Selector) SetWinnerAuto(linkID int64) (*models.Variant, error) {
	vs, err := models.VariantsForLink(s.db, linkID)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	if len(vs) == 0 {
		return nil, fmt.Errorf("link %d has no variants", linkID)
	}

	best := vs[0]
	bestRatio := ratio(vs[0])
	for _, v := range vs[1:] {
		if r := ratio(v); r > bestRatio {
			best, bestRatio = v, r
		}
	}

	if err := models.PinWinner(s.db, linkID, best.ID); err != nil {
		return nil, err
	}
	best.IsWinner = true
	return &best, nil
}

func ratio(v models.Variant) float64 {
	if v.Clicks == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Clicks)
}
