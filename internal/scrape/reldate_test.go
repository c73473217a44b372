package scrape_test

import (
	"testing"
	"time"

	"jobradar/aggregator-service/internal/scrape"
)

var now = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func TestParsePostedAt_RelativePhrases(t *testing.T) {
	cases := []struct {
		text string
		want time.Time
	}{
		{"just now", now},
		{"Today", now},
		{"few seconds ago", now},
		{"yesterday", now.Add(-24 * time.Hour)},
		{"Posted a day ago", now.Add(-24 * time.Hour)},
		{"2 days ago", now.Add(-48 * time.Hour)},
		{"30+ days ago", now.Add(-30 * 24 * time.Hour)},
		{"3 hours ago", now.Add(-3 * time.Hour)},
		{"1 week ago", now.Add(-7 * 24 * time.Hour)},
		{"45 minutes ago", now.Add(-45 * time.Minute)},
	}

	for _, tc := range cases {
		got := scrape.ParsePostedAt(tc.text, now)
		if got == nil {
			t.Errorf("ParsePostedAt(%q) = nil, want %s", tc.text, tc.want)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParsePostedAt(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestParsePostedAt_MachineReadable(t *testing.T) {
	got := scrape.ParsePostedAt("2026-08-27T09:30:00Z", now)
	if got == nil || !got.Equal(time.Date(2026, 8, 27, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("RFC3339 timestamp not parsed, got %v", got)
	}

	got = scrape.ParsePostedAt("2026-08-27", now)
	if got == nil || !got.Equal(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date-only timestamp not parsed, got %v", got)
	}
}

func TestParsePostedAt_UnparseableYieldsNil(t *testing.T) {
	for _, text := range []string{"", "   ", "Hot job!", "apply before friday"} {
		if got := scrape.ParsePostedAt(text, now); got != nil {
			t.Errorf("ParsePostedAt(%q) = %s, want nil", text, got)
		}
	}
}
