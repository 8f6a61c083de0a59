// Package masking turns a link's presentation config into an instruction for
// the HTTP layer: plain redirect, iframe embedding, or an interstitial
// splash. Pure decision, no side effects.
package masking

import (
	"time"

	"github.com/zhortlabs/zhort/internal/models"
)

type Mode string

const (
	// ModeRedirect is a direct 302 to the target.
	ModeRedirect Mode = "redirect"
	// ModeFrame embeds the target in an iframe on the short link's origin.
	ModeFrame Mode = "frame"
	// ModeSplash renders the splash HTML, then navigates to the target.
	ModeSplash Mode = "splash"
)

type Instruction struct {
	Mode      Mode
	TargetURL string

	SplashHTML     string
	SplashDuration time.Duration
	// FrameAfterSplash navigates inside an embedded frame once the splash
	// completes, when both splash and frame are enabled.
	FrameAfterSplash bool
}

func Decide(cfg models.MaskingConfig, targetURL string) Instruction {
	if cfg.EnableSplash {
		return Instruction{
			Mode:             ModeSplash,
			TargetURL:        targetURL,
			SplashHTML:       cfg.SplashHTML,
			SplashDuration:   time.Duration(cfg.SplashDurationMs) * time.Millisecond,
			FrameAfterSplash: cfg.EnableFrame,
		}
	}
	if cfg.EnableFrame {
		return Instruction{Mode: ModeFrame, TargetURL: targetURL}
	}
	return Instruction{Mode: ModeRedirect, TargetURL: targetURL}
}
