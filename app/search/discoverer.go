package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const DefaultLimit = 2

// Discoverer finds external articles related to a title, excluding the
// source's own domain and paid placements.
type Discoverer struct {
	searcher Searcher
	domain   string
	brand    string
	limit    int
}

func NewDiscoverer(searcher Searcher, domain, brand string) *Discoverer {
	return &Discoverer{
		searcher: searcher,
		domain:   strings.ToLower(domain),
		brand:    brand,
		limit:    DefaultLimit,
	}
}

func (d *Discoverer) Query(title string) string {
	return fmt.Sprintf("%s -site:%s", CleanTitle(title, d.brand), d.domain)
}

// Discover returns up to limit references in provider order. Fewer results
// than the limit is not an error.
func (d *Discoverer) Discover(ctx context.Context, title string) ([]Reference, error) {
	query := d.Query(title)

	results, err := d.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	refs := make([]Reference, 0, d.limit)
	for _, r := range results {
		if len(refs) == d.limit {
			break
		}
		if r.IsAd || r.Sponsored {
			continue
		}
		if !d.usable(r.Link) {
			continue
		}
		refs = append(refs, Reference{Title: strings.TrimSpace(r.Title), Link: r.Link})
	}

	slog.Debug("References discovered", "title", title, "query", query, "results", len(results), "usable", len(refs))

	return refs, nil
}

func (d *Discoverer) usable(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Hostname() == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return !SameSite(u.Hostname(), d.domain)
}

// SameSite reports whether host belongs to domain, comparing registrable
// domains (www.blog.example.co.uk and example.co.uk match).
func SameSite(host, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if host == "" || domain == "" {
		return false
	}

	hostRoot, err1 := publicsuffix.EffectiveTLDPlusOne(host)
	domainRoot, err2 := publicsuffix.EffectiveTLDPlusOne(domain)
	if err1 == nil && err2 == nil {
		return hostRoot == domainRoot
	}

	return host == domain || strings.HasSuffix(host, "."+domain)
}

var spaces = regexp.MustCompile(`\s+`)

// CleanTitle strips the brand token, with or without a leading separator,
// so searches are not biased towards the source itself.
func CleanTitle(title, brand string) string {
	if brand = strings.TrimSpace(brand); brand != "" {
		quoted := regexp.QuoteMeta(brand)
		withSeparator := regexp.MustCompile(`(?i)\s*[-|–—:]\s*` + quoted)
		bare := regexp.MustCompile(`(?i)` + quoted)

		title = withSeparator.ReplaceAllString(title, " ")
		title = bare.ReplaceAllString(title, " ")
	}

	return strings.TrimSpace(spaces.ReplaceAllString(title, " "))
}
