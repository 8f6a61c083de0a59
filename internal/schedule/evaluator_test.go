package schedule

import (
	"testing"
	"time"

	"github.com/zhortlabs/zhort/internal/models"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func ts(t time.Time) *time.Time { return &t }

func TestEvaluate_NilScheduleAlwaysActive(t *testing.T) {
	ev := Evaluate(nil, now)
	if !ev.IsActive {
		t.Error("nil schedule should be active")
	}
}

func TestEvaluate_NoBoundsActive(t *testing.T) {
	ev := Evaluate(&models.Schedule{IsActive: true}, now)
	if !ev.IsActive {
		t.Error("schedule with no bounds should be active")
	}
}

func TestEvaluate_BeforeActiveFrom(t *testing.T) {
	s := &models.Schedule{ActiveFrom: ts(now.Add(time.Hour)), FallbackURL: "https://soon.example"}
	ev := Evaluate(s, now)
	if ev.IsActive {
		t.Fatal("should be inactive before activeFrom")
	}
	if ev.FallbackURL != "https://soon.example" {
		t.Errorf("fallback = %q, want the configured URL", ev.FallbackURL)
	}
}

func TestEvaluate_AfterActiveUntil(t *testing.T) {
	s := &models.Schedule{ActiveUntil: ts(now.Add(-time.Hour)), FallbackURL: "https://over.example"}
	ev := Evaluate(s, now)
	if ev.IsActive {
		t.Fatal("should be inactive after activeUntil")
	}
	if ev.FallbackURL != "https://over.example" {
		t.Errorf("fallback = %q, want the configured URL", ev.FallbackURL)
	}
}

func TestEvaluate_ExpiredWithoutFallback(t *testing.T) {
	s := &models.Schedule{ActiveUntil: ts(now.Add(-time.Hour))}
	ev := Evaluate(s, now)
	if ev.IsActive || ev.FallbackURL != "" {
		t.Errorf("evaluation = %+v, want inactive with empty fallback", ev)
	}
}

func TestEvaluate_InsideWindow(t *testing.T) {
	s := &models.Schedule{
		ActiveFrom:  ts(now.Add(-time.Hour)),
		ActiveUntil: ts(now.Add(time.Hour)),
	}
	if ev := Evaluate(s, now); !ev.IsActive {
		t.Error("inside both bounds should be active")
	}
}

func TestEvaluate_BoundsIndependent(t *testing.T) {
	// Only a lower bound, already passed.
	if ev := Evaluate(&models.Schedule{ActiveFrom: ts(now.Add(-time.Hour))}, now); !ev.IsActive {
		t.Error("past activeFrom with no upper bound should be active")
	}
	// Only an upper bound, not yet reached.
	if ev := Evaluate(&models.Schedule{ActiveUntil: ts(now.Add(time.Hour))}, now); !ev.IsActive {
		t.Error("future activeUntil with no lower bound should be active")
	}
}
