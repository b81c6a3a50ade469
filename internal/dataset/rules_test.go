package dataset

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trackops/exportd/internal/domain"
)

func TestAssetRulesDefaultsDateRange(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cfg := domain.ExportConfig{Format: domain.FormatCSV}

	out, err := AssetRules(cfg, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.DateRange == nil {
		t.Fatal("expected a defaulted date range")
	}
	if out.DateRange.From != now.Add(-30*24*time.Hour).Format(time.RFC3339) {
		t.Fatalf("expected from = now-30d, got %s", out.DateRange.From)
	}
	if out.DateRange.To != now.Format(time.RFC3339) {
		t.Fatalf("expected to = now, got %s", out.DateRange.To)
	}
	// the input config must stay untouched
	if cfg.DateRange != nil {
		t.Fatal("input config was mutated")
	}
}

func TestAssetRulesKeepsSuppliedRange(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	dr := &domain.DateRange{
		From: now.Add(-10 * 24 * time.Hour).Format(time.RFC3339),
		To:   now.Add(-24 * time.Hour).Format(time.RFC3339),
	}
	out, err := AssetRules(domain.ExportConfig{DateRange: dr}, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if *out.DateRange != *dr {
		t.Fatalf("supplied range was altered: %+v", out.DateRange)
	}
}

func TestValidateRange(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	ts := func(d time.Duration) string { return now.Add(d).Format(time.RFC3339) }

	cases := []struct {
		name    string
		dr      domain.DateRange
		wantErr bool
	}{
		{"valid", domain.DateRange{From: ts(-20 * day), To: ts(-day)}, false},
		{"unparseable from", domain.DateRange{From: "yesterday", To: ts(0)}, true},
		{"unparseable to", domain.DateRange{From: ts(-day), To: "tomorrow"}, true},
		{"from equals to", domain.DateRange{From: ts(-day), To: ts(-day)}, true},
		{"from after to", domain.DateRange{From: ts(-day), To: ts(-2 * day)}, true},
		{"from too old", domain.DateRange{From: ts(-800 * day), To: ts(-500 * day)}, true},
		{"to in future", domain.DateRange{From: ts(-day), To: ts(day)}, true},
		{"span too wide", domain.DateRange{From: ts(-500 * day), To: ts(-100 * day)}, true},
		{"full year span", domain.DateRange{From: ts(-365 * day), To: ts(0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRange(tc.dr, now)
			if tc.wantErr && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRangeRulesPassThrough(t *testing.T) {
	now := time.Now().UTC()
	out, err := RangeRules(domain.ExportConfig{}, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.DateRange != nil {
		t.Fatal("expected no defaulted range for scan logs")
	}
}
