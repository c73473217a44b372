package scrape

import (
	"fmt"
	"net/url"
	"strings"

	"jobradar/aggregator-service/internal/model"
)

// LinkedIn's guest search endpoint returns server-rendered card markup
// without login. f_TPR=r604800 limits results to the past week; start is a
// result offset.
var linkedInSite = Site{
	Source:   model.SourceLinkedIn,
	PageSize: 25,
	MaxPages: 4,
	BuildTarget: func(role, location string, page int) string {
		q := url.Values{}
		q.Set("keywords", role)
		q.Set("location", location)
		q.Set("f_TPR", "r604800")
		q.Set("start", fmt.Sprintf("%d", page*25))
		return "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search?" + q.Encode()
	},
	Rules: Rules{
		Container: ".base-card, .job-card-container",
		Title:     []string{".base-search-card__title", ".job-card-container__title"},
		Company:   []string{".base-search-card__subtitle", ".job-card-container__company-name"},
		Location:  []string{".job-search-card__location", ".job-card-container__metadata-item"},
		URL:       []string{"a.base-card__full-link", "a.job-card-container__link"},
		Posted:    []string{"time", ".job-card-list__footer-wrapper time"},
	},
}

// Naukri serves classic server-rendered result pages under a city-scoped
// path; start is a result offset. Container and field markup vary heavily
// across page variants, hence the long fallback chains.
var naukriSite = Site{
	Source:   model.SourceNaukri,
	PageSize: 20,
	MaxPages: 6,
	BuildTarget: func(role, location string, page int) string {
		q := url.QueryEscape(role)
		start := page * 20
		if location == "" {
			return fmt.Sprintf("https://www.naukri.com/jobs?k=%s&start=%d", q, start)
		}
		loc := url.QueryEscape(strings.ToLower(location))
		return fmt.Sprintf("https://www.naukri.com/%s-jobs?k=%s&start=%d", loc, q, start)
	},
	Rules: Rules{
		Container: ".jobTuple, .jobCard, .jobRow, .jobBlock, .srp-jobtuple-wrapper",
		Title:     []string{"a.title", "h2 a", ".jobTitle"},
		Company:   []string{".subTitle", ".comp-name", ".companyInfo", ".orgName"},
		Location:  []string{".loc", ".locWdth", ".location"},
		URL:       []string{"a.title", "h2 a"},
		Posted:    []string{".date", ".postedDate", ".job-post-day", "span.date"},
		BaseHost:  "https://www.naukri.com",
	},
}

var sites = map[model.Source]Site{
	model.SourceLinkedIn: linkedInSite,
	model.SourceNaukri:   naukriSite,
}

// SiteFor returns the configuration for a known source.
func SiteFor(source model.Source) (Site, bool) {
	s, ok := sites[source]
	return s, ok
}
