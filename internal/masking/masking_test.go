package masking

import (
	"testing"
	"time"

	"github.com/zhortlabs/zhort/internal/models"
)

func TestDecide_DirectRedirect(t *testing.T) {
	in := Decide(models.MaskingConfig{}, "https://example.com")
	if in.Mode != ModeRedirect {
		t.Errorf("mode = %q, want redirect", in.Mode)
	}
	if in.TargetURL != "https://example.com" {
		t.Errorf("target = %q", in.TargetURL)
	}
}

func TestDecide_FrameOnly(t *testing.T) {
	in := Decide(models.MaskingConfig{EnableFrame: true}, "https://example.com")
	if in.Mode != ModeFrame {
		t.Errorf("mode = %q, want frame", in.Mode)
	}
}

func TestDecide_SplashOnly(t *testing.T) {
	cfg := models.MaskingConfig{
		EnableSplash:     true,
		SplashDurationMs: 1500,
		SplashHTML:       "<h1>hold on</h1>",
	}
	in := Decide(cfg, "https://example.com")
	if in.Mode != ModeSplash {
		t.Fatalf("mode = %q, want splash", in.Mode)
	}
	if in.SplashDuration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", in.SplashDuration)
	}
	if in.SplashHTML != "<h1>hold on</h1>" {
		t.Errorf("html = %q", in.SplashHTML)
	}
	if in.FrameAfterSplash {
		t.Error("FrameAfterSplash = true without frame enabled")
	}
}

func TestDecide_SplashThenFrame(t *testing.T) {
	cfg := models.MaskingConfig{EnableFrame: true, EnableSplash: true, SplashDurationMs: 500}
	in := Decide(cfg, "https://example.com")
	if in.Mode != ModeSplash {
		t.Fatalf("mode = %q, want splash (splash wins when both set)", in.Mode)
	}
	if !in.FrameAfterSplash {
		t.Error("FrameAfterSplash = false, want true when both enabled")
	}
}
