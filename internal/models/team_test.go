package models

import (
	"testing"
	"time"
)

func TestTryConsumeQuota_Ceiling(t *testing.T) {
	d := testDB(t)
	team := &Team{Name: "acme", QuotaLimit: 2}
	if err := CreateTeam(d, team); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		ok, err := TryConsumeQuota(d, team.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("consume %d denied under limit", i+1)
		}
	}

	ok, err := TryConsumeQuota(d, team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("consume past ceiling allowed")
	}

	got, err := GetTeam(d, team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UsageCount != 2 {
		t.Errorf("usage = %d, want 2", got.UsageCount)
	}
}

func TestTryConsumeQuota_ZeroMeansUnlimited(t *testing.T) {
	d := testDB(t)
	team := &Team{Name: "acme", QuotaLimit: 0}
	if err := CreateTeam(d, team); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		ok, err := TryConsumeQuota(d, team.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("unlimited team denied at %d", i)
		}
	}
}

func TestResetTeamUsage_ConditionalOnExpectedDate(t *testing.T) {
	d := testDB(t)
	reset := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	team := &Team{Name: "acme", QuotaLimit: 5, UsageCount: 5, QuotaResetAt: &reset}
	if err := CreateTeam(d, team); err != nil {
		t.Fatal(err)
	}

	// Wrong expected date is a no-op: someone else already reset.
	if err := ResetTeamUsage(d, team.ID, reset.AddDate(0, -1, 0), reset.AddDate(0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	got, _ := GetTeam(d, team.ID)
	if got.UsageCount != 5 {
		t.Fatalf("usage = %d after mismatched reset, want 5", got.UsageCount)
	}

	next := reset.AddDate(0, 1, 0)
	if err := ResetTeamUsage(d, team.ID, reset, next); err != nil {
		t.Fatal(err)
	}
	got, _ = GetTeam(d, team.ID)
	if got.UsageCount != 0 {
		t.Errorf("usage = %d after reset, want 0", got.UsageCount)
	}
	if got.QuotaResetAt == nil || !got.QuotaResetAt.Equal(next) {
		t.Errorf("quota_reset_at = %v, want %v", got.QuotaResetAt, next)
	}
}

func TestWhitelist(t *testing.T) {
	d := testDB(t)
	team := &Team{Name: "acme"}
	if err := CreateTeam(d, team); err != nil {
		t.Fatal(err)
	}

	entries, err := WhitelistForTeam(d, team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}

	if err := AddWhitelistEntry(d, team.ID, "10.0.0.0/8"); err != nil {
		t.Fatal(err)
	}
	if err := AddWhitelistEntry(d, team.ID, "203.0.113.9"); err != nil {
		t.Fatal(err)
	}

	entries, err = WhitelistForTeam(d, team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0] != "10.0.0.0/8" {
		t.Errorf("entries = %v", entries)
	}
}
