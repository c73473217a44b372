// Package scrape implements job posting extraction and the pagination state
// machine shared by all source adapters. Sites differ only in how they build
// target URLs and which selector rules they carry; everything else here is
// common.
package scrape

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Rules describes how to pull job records out of one site's markup. Each
// field carries an ordered fallback chain of CSS selectors; the first
// selector yielding a non-empty value wins. Upstream markup drifts across
// page variants, so a single rigid selector per field would be brittle.
type Rules struct {
	// Container matches one listing unit. May be a comma list of variants.
	Container string

	Title    []string
	Company  []string
	Location []string
	// URL selectors must match an <a>; the href attribute is taken.
	URL []string
	// Posted selectors match the element carrying the posted-date signal,
	// either a datetime attribute or relative free text.
	Posted []string

	// BaseHost resolves path-relative links, e.g. "https://www.naukri.com".
	BaseHost string
}

// Candidate is one extracted listing before source attribution. Title and
// Company are guaranteed non-empty; everything else is best-effort.
type Candidate struct {
	Title    string
	Company  string
	Location string
	URL      string
	PostedAt *time.Time
}

// Extract parses raw markup and returns every listing unit that yields the
// required fields. Units missing a title or company are dropped silently —
// they are navigation chrome or ads, not records. Pure function of its
// input; parse failures yield zero candidates, never an error.
func Extract(raw []byte, rules Rules, now time.Time) []Candidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}

	var out []Candidate
	doc.Find(rules.Container).Each(func(_ int, el *goquery.Selection) {
		title := firstText(el, rules.Title)
		company := firstText(el, rules.Company)
		if title == "" || company == "" {
			return
		}

		out = append(out, Candidate{
			Title:    title,
			Company:  company,
			Location: firstText(el, rules.Location),
			URL:      normalizeLink(firstHref(el, rules.URL), rules.BaseHost),
			PostedAt: extractPostedAt(el, rules.Posted, now),
		})
	})
	return out
}

// firstText walks the fallback chain and returns the first non-empty
// trimmed text.
func firstText(el *goquery.Selection, chain []string) string {
	for _, sel := range chain {
		if text := strings.TrimSpace(el.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstHref returns the first non-empty href in the chain.
func firstHref(el *goquery.Selection, chain []string) string {
	for _, sel := range chain {
		if href, ok := el.Find(sel).First().Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				return href
			}
		}
	}
	return ""
}

// extractPostedAt prefers a machine-readable datetime attribute on the
// matched element, falling back to its text.
func extractPostedAt(el *goquery.Selection, chain []string, now time.Time) *time.Time {
	for _, sel := range chain {
		node := el.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if attr, ok := node.Attr("datetime"); ok {
			if ts := ParsePostedAt(attr, now); ts != nil {
				return ts
			}
		}
		if ts := ParsePostedAt(node.Text(), now); ts != nil {
			return ts
		}
	}
	return nil
}

// normalizeLink turns scheme-relative and path-relative links into absolute
// URLs. Tracking fragments are left alone; canonicalisation beyond this is
// the source's problem.
func normalizeLink(link, baseHost string) string {
	switch {
	case link == "":
		return ""
	case strings.HasPrefix(link, "//"):
		return "https:" + link
	case strings.HasPrefix(link, "/") && baseHost != "":
		return baseHost + link
	}
	return link
}
