package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blogsmith/refresher/app/crawl"
	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/metrics"
)

// Ingester builds the corpus: crawl listing pages, fetch every candidate,
// extract it and upsert it by slug.
type Ingester struct {
	crawler   Crawler
	getter    Getter
	extractor Extractor
	repo      database.ArticleRepository
	source    string
}

func NewIngester(crawler Crawler, getter Getter, extractor Extractor, repo database.ArticleRepository, source string) *Ingester {
	return &Ingester{
		crawler:   crawler,
		getter:    getter,
		extractor: extractor,
		repo:      repo,
		source:    source,
	}
}

func (i *Ingester) Run(ctx context.Context, target, startPage int) IngestReport {
	start := time.Now()

	candidates := i.crawler.Run(ctx, target, startPage)
	report := IngestReport{Candidates: len(candidates)}

	for _, c := range candidates {
		if ctx.Err() != nil {
			slog.Warn("Ingest cancelled", "stored", report.Stored, "error", ctx.Err())
			break
		}

		id, err := i.ingest(ctx, c)
		if err != nil {
			slog.Error("Failed to ingest article", "slug", c.Slug, "title", c.Title, "stage", "ingest", "error", err)
			metrics.IngestedArticles.WithLabelValues("failed").Inc()
			report.Failed++
			continue
		}

		slog.Debug("Article stored", "id", id, "slug", c.Slug)
		metrics.IngestedArticles.WithLabelValues("stored").Inc()
		report.Stored++
	}

	report.Duration = time.Since(start)
	return report
}

func (i *Ingester) ingest(ctx context.Context, c crawl.Candidate) (int64, error) {
	data, err := i.getter.Get(ctx, c.Link)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch article: %w", err)
	}

	extracted, err := i.extractor.Run(data, c.Link)
	if err != nil {
		return 0, fmt.Errorf("failed to extract article: %w", err)
	}

	article := database.Article{
		Slug:        c.Slug,
		Title:       extracted.Title,
		Content:     extracted.Content,
		Excerpt:     extracted.Excerpt,
		Author:      extracted.Author,
		PublishedAt: extracted.PublishedAt,
		ImageURL:    extracted.ImageURL,
		URL:         c.Link,
		Source:      i.source,
	}
	if article.Title == "" {
		article.Title = c.Title
	}
	if article.Excerpt == "" {
		article.Excerpt = c.Excerpt
	}

	return i.repo.Upsert(ctx, article)
}
