package crawl

import (
	"context"
	"log/slog"

	"github.com/blogsmith/refresher/app/metrics"
)

// Crawler walks listing pages backwards from a start page. Within a page
// items are taken in reverse document order, so the oldest entries of each
// page come first.
type Crawler struct {
	lister Lister
}

func NewCrawler(lister Lister) *Crawler {
	return &Crawler{lister: lister}
}

// Run collects up to target candidates. A failing page counts as empty and
// the walk moves on. Fewer than target candidates is not an error.
func (c *Crawler) Run(ctx context.Context, target, startPage int) []Candidate {
	var collected []Candidate
	seen := make(map[string]struct{})

	for page := startPage; len(collected) < target && page > 0; page-- {
		if ctx.Err() != nil {
			slog.Warn("Crawl cancelled", "page", page, "collected", len(collected), "error", ctx.Err())
			break
		}

		items, err := c.lister.List(ctx, page)
		if err != nil {
			slog.Warn("Listing page failed, trying next", "page", page, "stage", "crawl", "error", err)
			continue
		}

		slog.Debug("Listing page scraped", "page", page, "items", len(items))

		for i := len(items) - 1; i >= 0 && len(collected) < target; i-- {
			item := items[i]
			if item.Title == "" || item.Link == "" || item.Slug == "" {
				continue
			}
			if _, dup := seen[item.Slug]; dup {
				continue
			}
			seen[item.Slug] = struct{}{}

			collected = append(collected, item)
			metrics.CrawlCandidates.Inc()
			slog.Debug("Candidate collected", "slug", item.Slug, "title", item.Title, "page", page)
		}
	}

	if len(collected) < target {
		slog.Info("Listing pages exhausted", "collected", len(collected), "target", target)
	}

	return collected
}
