package scrape

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "+" covers LinkedIn's capped "30+ days ago" variant.
	dayPattern  = regexp.MustCompile(`(\d+)\+?\s+day`)
	weekPattern = regexp.MustCompile(`(\d+)\+?\s+week`)
	hourPattern = regexp.MustCompile(`(\d+)\+?\s+hour`)
	minPattern  = regexp.MustCompile(`(\d+)\+?\s+minute`)
)

// machine-readable layouts some sources emit in datetime attributes.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParsePostedAt turns a posted-date signal into a timestamp. It accepts
// machine-readable timestamps and free-text relative phrases ("2 days ago",
// "Posted a day ago", "just now"). Unparseable input yields nil, never an
// error — age-unknown postings are handled conservatively downstream.
func ParsePostedAt(text string, now time.Time) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	for _, layout := range absoluteLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return &ts
		}
	}

	t := strings.ToLower(text)

	switch {
	case strings.Contains(t, "just now"),
		strings.Contains(t, "today"),
		strings.Contains(t, "few seconds"):
		return &now
	case strings.Contains(t, "yesterday"),
		strings.Contains(t, "a day ago"):
		ts := now.Add(-24 * time.Hour)
		return &ts
	}

	if m := dayPattern.FindStringSubmatch(t); m != nil {
		days, _ := strconv.Atoi(m[1])
		ts := now.Add(-time.Duration(days) * 24 * time.Hour)
		return &ts
	}
	if m := weekPattern.FindStringSubmatch(t); m != nil {
		weeks, _ := strconv.Atoi(m[1])
		ts := now.Add(-time.Duration(weeks) * 7 * 24 * time.Hour)
		return &ts
	}
	if m := hourPattern.FindStringSubmatch(t); m != nil {
		hours, _ := strconv.Atoi(m[1])
		ts := now.Add(-time.Duration(hours) * time.Hour)
		return &ts
	}
	if m := minPattern.FindStringSubmatch(t); m != nil {
		mins, _ := strconv.Atoi(m[1])
		ts := now.Add(-time.Duration(mins) * time.Minute)
		return &ts
	}

	return nil
}
